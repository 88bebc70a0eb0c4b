// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"
)

var configFilePath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syncd",
		Short: "Identity directory synchronizer: reconciles WeCom/Feishu/DingTalk into LDAP",
	}
	root.PersistentFlags().StringVar(&configFilePath, "config", "", "path to syncd.yaml (default: $SYNCD_CONFIG or ./syncd.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the syncd version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("syncd " + version)
		},
	}
}
