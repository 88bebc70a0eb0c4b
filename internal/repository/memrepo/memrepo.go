// SPDX-License-Identifier: Apache-2.0

// Package memrepo is an in-memory Repository implementation, used by tests
// and by cmd/syncd's standalone/demo mode when no Postgres DSN is
// configured.
package memrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sapcc/ldapsync/internal/model"
)

// Repository is a mutex-guarded in-memory store. Nothing here survives
// process restart.
type Repository struct {
	mu          sync.Mutex
	ldapConfigs map[string]model.LDAPConfig
	syncConfigs map[string]model.SyncConfig
	logs        map[string]model.SyncLog
	details     []model.SyncLogDetail
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		ldapConfigs: map[string]model.LDAPConfig{},
		syncConfigs: map[string]model.SyncConfig{},
		logs:        map[string]model.SyncLog{},
	}
}

// PutLDAPConfig seeds or replaces an LDAPConfig, for test/demo setup.
func (r *Repository) PutLDAPConfig(c model.LDAPConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ldapConfigs[c.ID] = c
}

// PutSyncConfig seeds or replaces a SyncConfig, for test/demo setup.
func (r *Repository) PutSyncConfig(c model.SyncConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncConfigs[c.ID] = c
}

func (r *Repository) GetLDAPConfig(ctx context.Context, id string) (model.LDAPConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.ldapConfigs[id]
	if !ok {
		return model.LDAPConfig{}, &model.ConfigError{Reason: fmt.Sprintf("no LDAPConfig with id %q", id)}
	}
	return c, nil
}

func (r *Repository) GetSyncConfig(ctx context.Context, id string) (model.SyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.syncConfigs[id]
	if !ok {
		return model.SyncConfig{}, &model.ConfigError{Reason: fmt.Sprintf("no SyncConfig with id %q", id)}
	}
	return c, nil
}

func (r *Repository) ListEnabledSyncConfigs(ctx context.Context) ([]model.SyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncConfig
	for _, c := range r.syncConfigs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Repository) UpdateLastSyncTime(ctx context.Context, syncConfigID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.syncConfigs[syncConfigID]
	if !ok {
		return &model.ConfigError{Reason: fmt.Sprintf("no SyncConfig with id %q", syncConfigID)}
	}
	now := time.Now()
	c.LastSyncTime = &now
	r.syncConfigs[syncConfigID] = c
	return nil
}

func (r *Repository) CreateSyncLog(ctx context.Context, log model.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[log.ID] = log
	return nil
}

func (r *Repository) InsertSyncLogDetail(ctx context.Context, detail model.SyncLogDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details = append(r.details, detail)
	return nil
}

func (r *Repository) SealSyncLog(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[logID]
	if !ok {
		return &model.ConfigError{Reason: fmt.Sprintf("no SyncLog with id %q", logID)}
	}
	log.Success = success
	log.UsersSynced = usersSynced
	log.DepartmentsSynced = departmentsSynced
	r.logs[logID] = log
	return nil
}

// Details returns a snapshot of every recorded detail row, for assertions in
// tests.
func (r *Repository) Details() []model.SyncLogDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SyncLogDetail, len(r.details))
	copy(out, r.details)
	return out
}

// Log returns the current state of one SyncLog, for assertions in tests.
func (r *Repository) Log(id string) (model.SyncLog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	return l, ok
}
