package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/internal/store"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// log is the process logger, replaced once the log flags are known.
var log = logger.Nop()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "repohealth",
	Short: "Score open-source repositories against best-practice checks.",
	Long: `Repohealth fetches registered repositories, lints them against a fixed
catalogue of checks, scores the results per category and keeps a history of
snapshots whenever a score changes.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".repohealth")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("REPOHEALTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("lock-backend", schema.LocalLock)
	viper.SetDefault("lock-ttl", contract.DefaultLockTTL.String())
	viper.SetDefault("cache-ttl", "7d")
	viper.SetDefault("cache-max-size", contract.DefaultCacheMaxSize)
	viper.SetDefault("metadata-cache-ttl", contract.DefaultMetadataCacheTTL.String())
	viper.SetDefault("retries", contract.DefaultRetryBudget)
	viper.SetDefault("timeout", contract.DefaultTimeout.String())
	viper.SetDefault("grace-period", contract.DefaultGracePeriod.String())
	viper.SetDefault("backoff", contract.DefaultBackoff.String())
	viper.SetDefault("backoff-max", contract.DefaultBackoffMax.String())
	viper.SetDefault("check-timeout", contract.DefaultCheckTimeout.String())
	viper.SetDefault("error-policy", schema.ErrorAsFailed)
	viper.SetDefault("cron", contract.DefaultSchedule)
	viper.SetDefault("log-mode", "dev")
	viper.SetDefault("log-level", "info")
}

// loadConfig reads the config file and unmarshals every resolved value into input.
func loadConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return nil
}

// configSetup validates the configuration and builds the logger. It does not touch storage.
func configSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	l, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return err
	}
	log = l
	return nil
}

// sharedSetup validates the configuration and opens the stores.
func sharedSetup(cmd *cobra.Command, args []string) error {
	if err := configSetup(cmd, args); err != nil {
		return err
	}
	if err := store.InitStores(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// Execute runs the root command under ctx, then closes the stores and flushes the logger.
// Commands read ctx through cmd.Context().
func Execute(ctx context.Context) error {
	defer func() {
		store.CloseStores()
		log.Sync()
	}()
	return rootCmd.ExecuteContext(ctx)
}
