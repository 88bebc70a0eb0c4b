// SPDX-License-Identifier: Apache-2.0

// Package repository defines the Config Repository contract from spec
// section 6: read-only access, from the engine, to LDAPConfig and
// SyncConfig records, plus write access to seal audit records and update
// last_sync_time.
package repository

import (
	"context"

	"github.com/sapcc/ldapsync/internal/model"
)

// Repository is everything the engine needs from the surrounding
// application's persistence layer. The engine never writes SyncConfig or
// LDAPConfig directly; it only updates last_sync_time and appends audit
// rows.
type Repository interface {
	GetLDAPConfig(ctx context.Context, id string) (model.LDAPConfig, error)
	GetSyncConfig(ctx context.Context, id string) (model.SyncConfig, error)
	ListEnabledSyncConfigs(ctx context.Context) ([]model.SyncConfig, error)
	UpdateLastSyncTime(ctx context.Context, syncConfigID string) error

	CreateSyncLog(ctx context.Context, log model.SyncLog) error
	InsertSyncLogDetail(ctx context.Context, detail model.SyncLogDetail) error
	SealSyncLog(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error
}
