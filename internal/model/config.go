// SPDX-License-Identifier: Apache-2.0

// Package model contains the data types shared between the reconciliation
// engine, the scheduler, and the repository contract: sync configuration,
// LDAP connection configuration, audit log records, and the normalized
// upstream department/user shapes that every ProviderClient produces.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sapcc/go-bits/errext"

	"github.com/sapcc/ldapsync/internal/grammars"
)

// ProviderKind identifies which upstream identity provider a SyncConfig talks to.
type ProviderKind string

const (
	ProviderWeCom    ProviderKind = "wecom"
	ProviderFeishu   ProviderKind = "feishu"
	ProviderDingTalk ProviderKind = "dingtalk"
)

// IsValid reports whether this is one of the known provider kinds.
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderWeCom, ProviderFeishu, ProviderDingTalk:
		return true
	default:
		return false
	}
}

// SyncFrequency controls how often the scheduler triggers a SyncConfig.
type SyncFrequency string

const (
	FrequencyManual SyncFrequency = "manual"
	FrequencyHourly SyncFrequency = "hourly"
	FrequencyDaily  SyncFrequency = "daily"
	FrequencyWeekly SyncFrequency = "weekly"
)

// IsValid reports whether this is one of the known frequencies.
func (f SyncFrequency) IsValid() bool {
	switch f {
	case FrequencyManual, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	default:
		return false
	}
}

// LDAPConfig describes how to connect to the downstream LDAP directory.
type LDAPConfig struct {
	ID           string
	ServerURI    string // e.g. "ldaps://ldap.example.org:636"
	BindDN       string
	BindPassword string
	BaseDN       string
	UseSSL       bool
	Enabled      bool
}

// Validate checks the invariants on LDAPConfig. It does not attempt a
// network connection; that is TransportError territory (see errors.go).
func (c LDAPConfig) Validate() (errs errext.ErrorSet) {
	if strings.TrimSpace(c.ServerURI) == "" {
		errs.Add(fmt.Errorf("server_uri may not be empty"))
		return errs
	}
	u, err := url.Parse(c.ServerURI)
	if err != nil {
		errs.Add(fmt.Errorf("server_uri is not a valid URI: %w", err))
		return errs
	}
	switch u.Scheme {
	case "ldap":
		if c.UseSSL {
			errs.Add(fmt.Errorf("server_uri uses scheme ldap:// but use_ssl is true"))
		}
	case "ldaps":
		if !c.UseSSL {
			errs.Add(fmt.Errorf("server_uri uses scheme ldaps:// but use_ssl is false"))
		}
	default:
		errs.Add(fmt.Errorf("server_uri must use scheme ldap:// or ldaps://, got %q", u.Scheme))
	}
	if strings.TrimSpace(c.BaseDN) == "" {
		errs.Add(fmt.Errorf("base_dn may not be empty"))
	} else if !grammars.IsLDAPSuffix(c.BaseDN) {
		errs.Add(fmt.Errorf("base_dn %q is not a valid LDAP suffix (expected dc=...,dc=... form)", c.BaseDN))
	}
	if strings.TrimSpace(c.BindDN) == "" {
		errs.Add(fmt.Errorf("bind_dn may not be empty"))
	}
	return errs
}

// SyncConfig describes one provider/tenant pair to reconcile into LDAP.
type SyncConfig struct {
	ID              string
	Name            string
	Provider        ProviderKind
	LDAPConfigID    string
	SyncUsers       bool
	SyncDepartments bool
	UserOU          string
	DepartmentOU    string
	Frequency       SyncFrequency
	LastSyncTime    *time.Time
	Enabled         bool
}

// Validate checks the invariants on SyncConfig from spec section 3:
// UserOU/DepartmentOU are required whenever the respective sync flag is set.
func (c SyncConfig) Validate() (errs errext.ErrorSet) {
	if strings.TrimSpace(c.Name) == "" {
		errs.Add(fmt.Errorf("name may not be empty"))
	}
	if !c.Provider.IsValid() {
		errs.Add(fmt.Errorf("provider_kind %q is not recognized", c.Provider))
	}
	if !c.Frequency.IsValid() {
		errs.Add(fmt.Errorf("frequency %q is not recognized", c.Frequency))
	}
	if c.SyncDepartments && strings.TrimSpace(c.DepartmentOU) == "" {
		errs.Add(fmt.Errorf("department_ou may not be empty when sync_departments is enabled"))
	}
	if c.SyncUsers && strings.TrimSpace(c.UserOU) == "" {
		errs.Add(fmt.Errorf("user_ou may not be empty when sync_users is enabled"))
	}
	return errs
}

// BaseDepartmentOUDN computes "ou=<department_ou>,<base_dn>".
func (c SyncConfig) BaseDepartmentOUDN(baseDN string) string {
	return fmt.Sprintf("ou=%s,%s", c.DepartmentOU, baseDN)
}

// BaseUserOUDN computes "ou=<user_ou>,<base_dn>".
func (c SyncConfig) BaseUserOUDN(baseDN string) string {
	return fmt.Sprintf("ou=%s,%s", c.UserOU, baseDN)
}
