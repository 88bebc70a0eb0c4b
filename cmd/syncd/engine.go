// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/audit"
	"github.com/sapcc/ldapsync/internal/config"
	"github.com/sapcc/ldapsync/internal/ldapclient"
	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/provider"
	"github.com/sapcc/ldapsync/internal/provider/dingtalk"
	"github.com/sapcc/ldapsync/internal/provider/feishu"
	"github.com/sapcc/ldapsync/internal/provider/wecom"
	"github.com/sapcc/ldapsync/internal/reconcile"
	"github.com/sapcc/ldapsync/internal/repository"
)

// joinErrorSet flattens an errext.ErrorSet into a single message for
// wrapping into a ConfigError, which carries a plain string reason.
func joinErrorSet(errs errext.ErrorSet) string {
	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// buildEngine returns the scheduler.EngineFunc that wires one Reconciler per
// run: it resolves the SyncConfig's LDAPConfig and provider credentials,
// connects fresh LDAP/provider clients (a run never reuses a connection
// across ticks, matching the teacher's per-Adapter.Run connection lifetime),
// and drives the run to a sealed SyncLog.
func buildEngine(cfg *config.Config, repo repository.Repository) func(ctx context.Context, syncCfg model.SyncConfig) error {
	return func(ctx context.Context, syncCfg model.SyncConfig) error {
		writer := audit.NewBufferedWriter(audit.NewWriter(repo), 64)

		log, err := writer.Open(ctx, syncCfg)
		if err != nil {
			return fmt.Errorf("could not open sync log for %s: %w", syncCfg.ID, err)
		}

		result, runErr := runOnce(ctx, cfg, repo, syncCfg, writer, log.ID)

		if sealErr := writer.Seal(ctx, log.ID, result.Success, result.UsersSynced, result.DepartmentsSynced); sealErr != nil {
			logg.Error("engine: could not seal sync log %s: %s", log.ID, sealErr.Error())
		}
		if result.Success {
			if err := repo.UpdateLastSyncTime(ctx, syncCfg.ID); err != nil {
				logg.Error("engine: could not update last_sync_time for %s: %s", syncCfg.ID, err.Error())
			}
		}
		return runErr
	}
}

// runOnce performs the validation/connect/reconcile steps for one already-
// opened SyncLog. A ConfigError return means the log is sealed
// success=false without ever touching LDAP, per spec section 7's
// ConfigError contract.
func runOnce(ctx context.Context, cfg *config.Config, repo repository.Repository, syncCfg model.SyncConfig, writer audit.Writer, logID string) (reconcile.Result, error) {
	if errs := syncCfg.Validate(); len(errs) > 0 {
		return reconcile.Result{}, &model.ConfigError{Reason: joinErrorSet(errs)}
	}

	ldapCfg, err := repo.GetLDAPConfig(ctx, syncCfg.LDAPConfigID)
	if err != nil {
		return reconcile.Result{}, &model.ConfigError{Reason: fmt.Sprintf("no ldap config %s: %s", syncCfg.LDAPConfigID, err.Error())}
	}
	if errs := ldapCfg.Validate(); len(errs) > 0 {
		return reconcile.Result{}, &model.ConfigError{Reason: joinErrorSet(errs)}
	}

	providerClient, err := buildProviderClient(cfg, syncCfg.Provider)
	if err != nil {
		return reconcile.Result{}, &model.ConfigError{Reason: err.Error()}
	}

	ldapConn, err := ldapclient.Connect(ldapclient.Options{
		ServerURI:    ldapCfg.ServerURI,
		BindDN:       ldapCfg.BindDN,
		BindPassword: ldapCfg.BindPassword,
		CallTimeout:  callTimeout(cfg),
	})
	if err != nil {
		return reconcile.Result{}, err
	}
	defer ldapConn.Close()

	reconciler := &reconcile.Reconciler{LDAP: ldapConn, Provider: providerClient, Audit: writer}
	return reconciler.Sync(ctx, logID, syncCfg, ldapCfg.BaseDN)
}

func buildProviderClient(cfg *config.Config, kind model.ProviderKind) (provider.Client, error) {
	creds, err := cfg.CredentialsFor(string(kind))
	if err != nil {
		return nil, err
	}
	switch kind {
	case model.ProviderWeCom:
		return wecom.New(wecom.Config{CorpID: creds.CorpID, AppSecret: creds.Secret}, nil), nil
	case model.ProviderFeishu:
		return feishu.New(feishu.Config{AppID: creds.AppID, AppSecret: creds.Secret}, nil), nil
	case model.ProviderDingTalk:
		return dingtalk.New(dingtalk.Config{AppKey: creds.AppID, AppSecret: creds.Secret}, nil), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
