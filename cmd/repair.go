/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/socialhub/apiserver/config"
	"github.com/socialhub/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// repairCmd restores follower/following symmetry on document backends.
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair asymmetric follow relationships",
	Long: `Scans every account and makes followers and following lists mirror
each other, dropping references to missing accounts and self-follows.
The relational backend enforces this with foreign keys and needs no repair.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		repos, err := server.OpenRepositories(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repos.Close(cmd.Context())

		if repos.Repairer == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s backend keeps relationships consistent; nothing to repair\n", cfg.DBDriver)
			return nil
		}
		fixed, err := repos.Repairer.RepairRelationships(cmd.Context())
		if err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repaired %d relationship entries\n", fixed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
