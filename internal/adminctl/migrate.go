package adminctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewMigrateCmd(backend Backend) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := backend.Migrator().Up(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			success(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	})

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be greater than 0, got %d", steps)
			}
			if err := backend.Migrator().Down(steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			success(cmd.OutOrStdout(), "Reverted %d migration(s)", steps)
			return nil
		},
	}
	downCmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to revert")
	migrateCmd.AddCommand(downCmd)

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := backend.Migrator().Version()
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			if version == 0 && !dirty {
				info(cmd.OutOrStdout(), "No migration has been applied")
				return nil
			}
			if dirty {
				info(cmd.OutOrStdout(), "Schema version %d (dirty, fix and force before migrating again)", version)
				return nil
			}
			info(cmd.OutOrStdout(), "Schema version %d", version)
			return nil
		},
	})

	return migrateCmd
}
