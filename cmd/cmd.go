// Package cmd defines the command-line interface for repohealth.
package cmd

import (
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeHistoryCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file")
	pf.String("registry", "", "Path or URL of the repository data file")
	pf.String("github-token", "", "GitHub token for cloning and metadata (prefer REPOHEALTH_GITHUB_TOKEN)")
	pf.String("output", string(schema.TextOut), "Output format: text or csv or json")
	pf.String("output-file", "", "Optional path to write output to")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.Int("width", 0, "Terminal width override (0 = auto-detect)")
	pf.String("log-mode", "dev", "Log encoding: dev (console) or prod (JSON)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	pf.Int("workers", contract.DefaultWorkers, "Number of repositories processed concurrently")
	pf.Bool("force", false, "Archive a snapshot even when the score did not change")
	pf.Int("retries", contract.DefaultRetryBudget, "Retry budget for fetch errors per repository")
	pf.String("timeout", contract.DefaultTimeout.String(), "Deadline for each repository job and git invocation")
	pf.String("grace-period", contract.DefaultGracePeriod.String(), "Time in-flight jobs get to finish after an interrupt")
	pf.String("backoff", contract.DefaultBackoff.String(), "Initial delay between fetch retries")
	pf.String("backoff-max", contract.DefaultBackoffMax.String(), "Maximum delay between fetch retries")
	pf.String("check-timeout", contract.DefaultCheckTimeout.String(), "Deadline for each individual check")
	pf.Int("lint-workers", 0, "Checks evaluated concurrently per repository (0 = number of CPUs)")
	pf.String("error-policy", string(schema.ErrorAsFailed), "How check errors score: failed or excluded")

	pf.String("cache-dir", "", "Directory of the fetch cache (default: user cache dir)")
	pf.String("cache-ttl", "7d", "Evict clones unused for longer than this")
	pf.String("cache-max-size", contract.DefaultCacheMaxSize, "Size budget of the fetch cache (e.g., 20GB)")
	pf.String("metadata-cache-ttl", contract.DefaultMetadataCacheTTL.String(), "How long GitHub metadata is cached")

	pf.String("store-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or none")
	pf.String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	pf.String("lock-backend", string(schema.LocalLock), "Repository lock backend: local or postgresql or redis")
	pf.String("lock-connect", "", "Lock backend address (redis host:port or postgresql connection string)")
	pf.String("lock-ttl", contract.DefaultLockTTL.String(), "Expiry of redis locks held by a crashed process")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of lintCmd to Viper
	lintCmd.Flags().String("url", "", "Clone URL of the directory, used for remote metadata")
	lintCmd.Flags().String("role", string(schema.PrimaryRole), "Repository role: primary or secondary")
	lintCmd.Flags().String("check-sets", "", "Comma-separated check sets (default depends on the role)")
	lintCmd.Flags().Int("min-score", 0, "Fail when the global score is below this value")
	if err := viper.BindPFlags(lintCmd.Flags()); err != nil {
		contract.LogFatal("Error binding lint flags", err)
	}

	// Bind all flags of scheduleCmd to Viper
	scheduleCmd.Flags().String("cron", contract.DefaultSchedule, "Cron expression or descriptor of the sweep schedule")
	if err := viper.BindPFlags(scheduleCmd.Flags()); err != nil {
		contract.LogFatal("Error binding schedule flags", err)
	}

	// Bind all flags of checksCmd to Viper
	checksCmd.Flags().String("check-set", "", "Only list checks of this check set")
	checksCmd.Flags().String("category", "", "Only list checks of this category")
	if err := viper.BindPFlags(checksCmd.Flags()); err != nil {
		contract.LogFatal("Error binding checks flags", err)
	}

	// Bind all flags of storeHistoryCmd to Viper
	storeHistoryCmd.Flags().IntP("limit", "l", 20, "Number of snapshots to display (0 = all)")
	if err := viper.BindPFlags(storeHistoryCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
