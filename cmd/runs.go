package cmd

import (
	"fmt"
	"strconv"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/iocache"
	"github.com/huangsam/ckscan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsSetup loads minimal configuration needed for run history operations.
// This is used by commands that need the run store without full shared setup.
func runsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, err := contract.ParseBackend(viper.GetString("analysis-backend"))
	if err != nil {
		return err
	}
	connStr := viper.GetString("analysis-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = connStr
	return nil
}

// runsStoreSetup opens the run store on top of runsSetup.
func runsStoreSetup(_ *cobra.Command, _ []string) error {
	if err := runsSetup(); err != nil {
		return err
	}
	// No release cache for run history commands
	if err := iocache.InitStores("", "", runBackend(cfg.AnalysisBackend), cfg.AnalysisDBConnect); err != nil {
		return fmt.Errorf("failed to initialize run history: %w", err)
	}
	return nil
}

// runsDBFilePath is the SQLite file holding run history.
func runsDBFilePath() string {
	if cfg.AnalysisBackend == schema.SQLiteBackend && cfg.AnalysisDBConnect != "" {
		return cfg.AnalysisDBConnect
	}
	return contract.GetRunsDBFilePath()
}

// runsCmd focused on run history management.
//
// Note: runs subcommands use minimal initialization instead of sharedSetup.
// This avoids token checks and analyzer validation for simple store operations.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded batch runs and exports",
	Long: `Manage the history of analysis batches.

When analysis-backend is set, ckscan records:
- One row per batch (start, end, duration, attempted, succeeded, configuration)
- One row per attempted repository (stage, skip reason, commit, CK metrics)

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, the default)

Subcommands:
  status  - Show run history statistics
  export  - Export run history to Parquet
  clear   - Remove all run history
  migrate - Run database schema migrations

Examples:
  # Check run history
  ckscan runs status

  # Export for analysis in pandas/DuckDB
  ckscan runs export history`,
}

// runsStatusCmd shows run history status.
var runsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display run history statistics and connection details",
	Args:    cobra.NoArgs,
	PreRunE: runsStoreSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := cacheManager.GetRunStore()
		if store == nil {
			return iocache.ErrRunsDisabled
		}
		status, err := store.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get run history status: %w", err)
		}
		iocache.PrintRunStatus(status)
		return nil
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export run history to Parquet files",
	Long: `Write run history as two Parquet files:
  <file>.batch_runs.parquet     - one row per batch
  <file>.repo_outcomes.parquet  - one row per attempted repository`,
	Args:    cobra.ExactArgs(1),
	PreRunE: runsStoreSetup,
	RunE: func(_ *cobra.Command, args []string) error {
		return iocache.ExecuteRunsExport(cacheManager.GetRunStore(), args[0])
	},
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded run history",
	Long: `Delete all stored batch runs and repository outcomes.

WARNING: This action cannot be undone. Consider exporting data first.`,
	Args: cobra.NoArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return runsSetup()
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := iocache.ClearRuns(cfg.AnalysisBackend, runsDBFilePath(), cfg.AnalysisDBConnect); err != nil {
			return fmt.Errorf("failed to clear run history: %w", err)
		}
		fmt.Println("Run history cleared successfully.")
		return nil
	},
}

// runsMigrateCmd runs schema migrations.
//
// It does NOT initialize stores or create tables, allowing migrations to
// run on a fresh database.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run run history schema migrations",
	Long: `Migrate the run history schema.

  ckscan runs migrate      - migrate to the latest version
  ckscan runs migrate 1    - migrate up or down to version 1
  ckscan runs migrate 0    - roll back every migration`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return runsSetup()
	},
	RunE: func(_ *cobra.Command, args []string) error {
		targetVersion := -1
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return fmt.Errorf("invalid migration version %q", args[0])
			}
			targetVersion = v
		}
		connStr := cfg.AnalysisDBConnect
		if cfg.AnalysisBackend == schema.SQLiteBackend {
			connStr = runsDBFilePath()
		}
		return iocache.MigrateRuns(cfg.AnalysisBackend, connStr, targetVersion)
	},
}
