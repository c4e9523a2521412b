package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/internal/store"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeCmd focused on report store management.
//
// Note: migrate and clear only validate the config; opening the store would
// apply the latest migrations first.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage stored reports, snapshots and sweep runs",
	Long: `Manage the durable store of current reports, score snapshots and the sweep run log.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (nothing is kept)

Subcommands:
  status  - Show row counts and the last sweep
  history - Show the snapshots of one repository
  export  - Export runs, snapshots and outcomes to Parquet
  clear   - Remove all stored data
  migrate - Run database schema migrations

Examples:
  # Check store status
  repohealth store status

  # Export for analysis in pandas/DuckDB
  repohealth store export --output-file health`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := store.Manager.GetReportStore().GetStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get store status: %w", err)
		}
		store.PrintStoreStatus(os.Stdout, status)
		return nil
	},
}

// storeHistoryCmd prints the snapshots of a repository.
var storeHistoryCmd = &cobra.Command{
	Use:   "history <repository-id>",
	Short: "Show the score snapshots of a repository, newest first",
	Long: `Show the archived score snapshots of one repository, newest first.

A snapshot is appended only when the score or the check set version changed,
so consecutive rows always differ.

Examples:
  repohealth store history artifact-hub/hub --limit 5`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := store.Manager.GetReportStore().ListSnapshots(cmd.Context(), args[0], viper.GetInt("limit"))
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		return outwriter.NewOutWriter().WriteHistory(args[0], snapshots, cfg)
	},
}

// storeExportCmd exports store data to Parquet files.
var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sweep runs, snapshots and outcomes to Parquet files",
	Long: `Export the sweep run log and every snapshot to Parquet.

Three files are written next to each other:
  <output-file>.runs.parquet      - one row per sweep
  <output-file>.snapshots.parquet - one row per snapshot with category scores
  <output-file>.outcomes.parquet  - one row per check outcome of each snapshot

Examples:
  repohealth store export --output-file health`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := store.Export(cmd.Context(), store.Manager.GetReportStore(), cfg.OutputFile, os.Stdout); err != nil {
			return fmt.Errorf("failed to export store data: %w", err)
		}
		return nil
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored reports, snapshots and runs",
	Long: `Delete every stored report, snapshot, sweep run and cached metadata entry.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops all tables, including the migration version

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  repohealth store export --output-file backup
  repohealth store clear`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := store.ClearStore(cmd.Context(), cfg.StoreBackend, storeDBFilePath(), cfg.StoreDBConnect); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		fmt.Println("Store cleared successfully.")
		return nil
	},
}

// storeMigrateCmd runs the schema migrations.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long: `Apply or roll back the embedded schema migrations.

Every command that opens the store migrates to the latest version first, so
this is mostly useful to roll back or to prepare a database ahead of time.

Examples:
  # Migrate to the latest version
  repohealth store migrate

  # Roll back everything
  repohealth store migrate --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.StoreBackend == schema.NoneBackend {
			return errors.New("no store backend configured")
		}
		connStr := cfg.StoreDBConnect
		if cfg.StoreBackend == schema.SQLiteBackend && connStr == "" {
			connStr = contract.GetStoreDBFilePath()
		}
		res, err := store.Migrate(cfg.StoreBackend, connStr, viper.GetInt("target-version"))
		if err != nil {
			return err
		}
		if !res.Changed {
			fmt.Printf("Store schema already at version %d.\n", res.To)
			return nil
		}
		fmt.Printf("Store schema migrated from version %d to %d.\n", res.From, res.To)
		return nil
	},
}

// storeDBFilePath returns the SQLite file backing the store.
func storeDBFilePath() string {
	if cfg.StoreBackend == schema.SQLiteBackend && cfg.StoreDBConnect != "" {
		return cfg.StoreDBConnect
	}
	return contract.GetStoreDBFilePath()
}
