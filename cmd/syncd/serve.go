// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sapcc/go-bits/logg"
	"github.com/spf13/cobra"

	appconfig "github.com/sapcc/ldapsync/internal/config"
	"github.com/sapcc/ldapsync/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler forever, reconciling every enabled sync config on its configured frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parentCtx context.Context) error {
	cfg, err := appconfig.Load(configFilePath)
	if err != nil {
		return err
	}

	repo, closeRepo, err := buildRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	sched, err := scheduler.New(repo, buildEngine(cfg, repo))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := appconfig.NewWatcher(appconfig.ResolvePath(configFilePath), func(*appconfig.Config) {
		// Only the enabled/frequency shape of SyncConfigs (read from the
		// repository, not from the config file) drives the job set, so a
		// config file change just needs to trigger a rebuild. The reloaded
		// Config itself is not applied: buildEngine keeps the credentials and
		// call timeout loaded at startup, and the repository (with its DSN or
		// memrepo LDAP seed) is not rebuilt, until the process restarts.
		if err := sched.Refresh(ctx); err != nil {
			logg.Error("syncd: could not refresh schedule after config change: %s", err.Error())
		}
	})
	if err != nil {
		logg.Error("syncd: config watcher disabled: %s", err.Error())
	} else {
		defer watcher.Close()
	}

	logg.Info("syncd: starting scheduler")
	sched.Start(ctx)

	<-ctx.Done()
	logg.Info("syncd: shutting down")
	return sched.Stop()
}
