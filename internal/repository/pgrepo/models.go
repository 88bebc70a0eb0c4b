// SPDX-License-Identifier: Apache-2.0

package pgrepo

import (
	"time"

	"github.com/uptrace/bun"
)

type ldapConfigRow struct {
	bun.BaseModel `bun:"table:ldap_configs,alias:lc"`

	ID           string `bun:"id,pk"`
	ServerURI    string `bun:"server_uri,notnull"`
	BindDN       string `bun:"bind_dn,notnull"`
	BindPassword string `bun:"bind_password,notnull"`
	BaseDN       string `bun:"base_dn,notnull"`
	UseSSL       bool   `bun:"use_ssl,notnull"`
	Enabled      bool   `bun:"enabled,notnull"`
}

type syncConfigRow struct {
	bun.BaseModel `bun:"table:sync_configs,alias:sc"`

	ID              string     `bun:"id,pk"`
	Name            string     `bun:"name,notnull"`
	Provider        string     `bun:"provider,notnull"`
	LDAPConfigID    string     `bun:"ldap_config_id,notnull"`
	SyncUsers       bool       `bun:"sync_users,notnull"`
	SyncDepartments bool       `bun:"sync_departments,notnull"`
	UserOU          string     `bun:"user_ou"`
	DepartmentOU    string     `bun:"department_ou"`
	Frequency       string     `bun:"frequency,notnull"`
	LastSyncTime    *time.Time `bun:"last_sync_time"`
	Enabled         bool       `bun:"enabled,notnull"`
}

type syncLogRow struct {
	bun.BaseModel `bun:"table:sync_logs,alias:sl"`

	ID                string    `bun:"id,pk"`
	SyncConfigID      string    `bun:"sync_config_id,notnull"`
	StartedAt         time.Time `bun:"started_at,notnull"`
	Success           bool      `bun:"success,notnull"`
	UsersSynced       int       `bun:"users_synced,notnull"`
	DepartmentsSynced int       `bun:"departments_synced,notnull"`
}

type syncLogDetailRow struct {
	bun.BaseModel `bun:"table:sync_log_details,alias:sld"`

	ID         string            `bun:"id,pk"`
	SyncLogID  string            `bun:"sync_log_id,notnull"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	ObjectType string            `bun:"object_type,notnull"`
	Action     string            `bun:"action,notnull"`
	ObjectID   string            `bun:"object_id,notnull"`
	ObjectName string            `bun:"object_name"`
	OldData    map[string]string `bun:"old_data,type:jsonb"`
	NewData    map[string]string `bun:"new_data,type:jsonb"`
	Details    string            `bun:"details"`
}
