// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appconfig "github.com/sapcc/ldapsync/internal/config"
	"github.com/sapcc/ldapsync/internal/scheduler"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <config-id>",
		Short: "Run one on-demand reconciliation for a single sync config and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0])
		},
	}
}

func runSync(cmd *cobra.Command, configID string) error {
	cfg, err := appconfig.Load(configFilePath)
	if err != nil {
		return err
	}

	repo, closeRepo, err := buildRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	ctx := cmd.Context()
	syncCfg, err := repo.GetSyncConfig(ctx, configID)
	if err != nil {
		return fmt.Errorf("unknown sync config %q: %w", configID, err)
	}

	sched, err := scheduler.New(repo, buildEngine(cfg, repo))
	if err != nil {
		return err
	}
	if err := sched.RunNow(ctx, syncCfg); err != nil {
		return err
	}
	cmd.Println("sync completed for", syncCfg.Name)
	return nil
}
