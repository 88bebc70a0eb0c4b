// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sapcc/go-bits/logg"
)

// Watcher watches the config file backing a Config for changes, re-loading
// and invoking onChange whenever the file is written. Adapted from the
// teacher's store.Watcher (which watches the JSON database file and pauses
// itself during the adapter's own atomic rewrite); this watcher has no
// self-write to guard against, so it is simpler: just watch and reload.
type Watcher struct {
	backend    *fsnotify.Watcher
	configPath string
	onChange   func(*Config)
}

// NewWatcher starts watching configPath, calling onChange with the newly
// loaded Config each time the file changes. It runs its event loop on its
// own goroutine until Close is called.
func NewWatcher(configPath string, onChange func(*Config)) (*Watcher, error) {
	backend, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot initialize config watcher: %w", err)
	}
	if err := backend.Add(configPath); err != nil {
		backend.Close()
		return nil, fmt.Errorf("cannot watch config file %s: %w", configPath, err)
	}

	w := &Watcher{backend: backend, configPath: configPath, onChange: onChange}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.backend.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.configPath)
			if err != nil {
				logg.Error("config: reload of %s failed: %s", w.configPath, err.Error())
				continue
			}
			logg.Info("config: reloaded %s", w.configPath)
			w.onChange(cfg)
		case err, ok := <-w.backend.Errors:
			if !ok {
				return
			}
			logg.Error("config: watcher error: %s", err.Error())
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.backend.Close()
}
