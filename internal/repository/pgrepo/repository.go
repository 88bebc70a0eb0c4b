// SPDX-License-Identifier: Apache-2.0

package pgrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/repository"
)

// Repository implements repository.Repository on top of a Database.
type Repository struct {
	db *Database
}

var _ repository.Repository = (*Repository)(nil)

// New wraps db as a repository.Repository.
func New(db *Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetLDAPConfig(ctx context.Context, id string) (model.LDAPConfig, error) {
	row := new(ldapConfigRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return model.LDAPConfig{}, fmt.Errorf("failed to get ldap config %q: %w", id, err)
	}
	return model.LDAPConfig{
		ID: row.ID, ServerURI: row.ServerURI, BindDN: row.BindDN,
		BindPassword: row.BindPassword, BaseDN: row.BaseDN, UseSSL: row.UseSSL, Enabled: row.Enabled,
	}, nil
}

func (r *Repository) GetSyncConfig(ctx context.Context, id string) (model.SyncConfig, error) {
	row := new(syncConfigRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return model.SyncConfig{}, fmt.Errorf("failed to get sync config %q: %w", id, err)
	}
	return rowToSyncConfig(row), nil
}

func (r *Repository) ListEnabledSyncConfigs(ctx context.Context) ([]model.SyncConfig, error) {
	var rows []syncConfigRow
	err := r.db.NewSelect().Model(&rows).Where("enabled = ?", true).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled sync configs: %w", err)
	}
	out := make([]model.SyncConfig, len(rows))
	for i := range rows {
		out[i] = rowToSyncConfig(&rows[i])
	}
	return out, nil
}

func (r *Repository) UpdateLastSyncTime(ctx context.Context, syncConfigID string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*syncConfigRow)(nil)).
		Set("last_sync_time = ?", now).
		Where("id = ?", syncConfigID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update last_sync_time for %q: %w", syncConfigID, err)
	}
	return nil
}

func (r *Repository) CreateSyncLog(ctx context.Context, log model.SyncLog) error {
	row := &syncLogRow{
		ID: log.ID, SyncConfigID: log.SyncConfigID, StartedAt: log.StartedAt,
		Success: log.Success, UsersSynced: log.UsersSynced, DepartmentsSynced: log.DepartmentsSynced,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

func (r *Repository) InsertSyncLogDetail(ctx context.Context, detail model.SyncLogDetail) error {
	row := &syncLogDetailRow{
		ID: detail.ID, SyncLogID: detail.SyncLogID, CreatedAt: detail.CreatedAt,
		ObjectType: string(detail.ObjectType), Action: string(detail.Action),
		ObjectID: detail.ObjectID, ObjectName: detail.ObjectName,
		OldData: detail.OldData, NewData: detail.NewData, Details: detail.Details,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert sync log detail: %w", err)
	}
	return nil
}

func (r *Repository) SealSyncLog(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error {
	_, err := r.db.NewUpdate().
		Model((*syncLogRow)(nil)).
		Set("success = ?", success).
		Set("users_synced = ?", usersSynced).
		Set("departments_synced = ?", departmentsSynced).
		Where("id = ?", logID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seal sync log %q: %w", logID, err)
	}
	return nil
}

func rowToSyncConfig(row *syncConfigRow) model.SyncConfig {
	return model.SyncConfig{
		ID: row.ID, Name: row.Name, Provider: model.ProviderKind(row.Provider),
		LDAPConfigID: row.LDAPConfigID, SyncUsers: row.SyncUsers, SyncDepartments: row.SyncDepartments,
		UserOU: row.UserOU, DepartmentOU: row.DepartmentOU, Frequency: model.SyncFrequency(row.Frequency),
		LastSyncTime: row.LastSyncTime, Enabled: row.Enabled,
	}
}
