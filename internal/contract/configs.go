package contract

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/schema"
)

// Default values for configuration.
const (
	DefaultRetryBudget      = 2
	DefaultTimeout          = 5 * time.Minute
	DefaultGracePeriod      = 30 * time.Second
	DefaultBackoff          = 2 * time.Second
	DefaultBackoffMax       = time.Minute
	DefaultCheckTimeout     = 30 * time.Second
	DefaultCacheTTL         = 7 * 24 * time.Hour
	DefaultCacheMaxSize     = "20GB"
	DefaultLockTTL          = 30 * time.Minute
	DefaultMetadataCacheTTL = 6 * time.Hour
	DefaultSchedule         = "@every 6h"
	MaxWorkers              = 256
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// WeightsRawInput holds custom weights from the YAML config file.
type WeightsRawInput struct {
	Checks     map[string]uint `mapstructure:"checks"`
	Categories map[string]uint `mapstructure:"categories"`
}

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	Workers     int
	Force       bool
	RetryBudget int
	Timeout     time.Duration
	GracePeriod time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration

	CheckTimeout time.Duration
	LintWorkers  int

	CacheDir      string
	CacheTTL      time.Duration
	CacheMaxBytes int64

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	LockBackend schema.LockBackend
	LockConnect string // Please use env var as this is plaintext
	LockTTL     time.Duration

	RegistrySource   string // Path or URL of the repository data file
	GitHubToken      string // Please use env var as this is plaintext
	MetadataCacheTTL time.Duration

	Output     schema.OutputMode
	OutputFile string
	UseColors  bool
	Width      int

	LogMode  string
	LogLevel string

	Schedule    string
	ErrorPolicy schema.ErrorPolicy

	// CheckWeights overrides registry weights per check id.
	CheckWeights map[string]uint

	// CategoryWeights is the final category weight map, defaults merged with overrides.
	CategoryWeights map[schema.Category]uint
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Workers        int    `mapstructure:"workers"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Color          string `mapstructure:"color"`
	Width          int    `mapstructure:"width"`
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	LockBackend    string `mapstructure:"lock-backend"`
	LockConnect    string `mapstructure:"lock-connect"`
	LockTTL        string `mapstructure:"lock-ttl"`
	Registry       string `mapstructure:"registry"`
	GitHubToken    string `mapstructure:"github-token"`
	CacheDir       string `mapstructure:"cache-dir"`
	CacheTTL       string `mapstructure:"cache-ttl"`
	CacheMaxSize   string `mapstructure:"cache-max-size"`
	MetadataTTL    string `mapstructure:"metadata-cache-ttl"`
	LogMode        string `mapstructure:"log-mode"`
	LogLevel       string `mapstructure:"log-level"`

	// --- Fields from sweep/run flags ---
	Force        bool   `mapstructure:"force"`
	Retries      int    `mapstructure:"retries"`
	Timeout      string `mapstructure:"timeout"`
	GracePeriod  string `mapstructure:"grace-period"`
	Backoff      string `mapstructure:"backoff"`
	BackoffMax   string `mapstructure:"backoff-max"`
	CheckTimeout string `mapstructure:"check-timeout"`
	LintWorkers  int    `mapstructure:"lint-workers"`
	ErrorPolicy  string `mapstructure:"error-policy"`

	// --- Fields from scheduleCmd.Flags() ---
	Schedule string `mapstructure:"cron"`

	// --- Custom weights from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.CheckWeights != nil {
		clone.CheckWeights = maps.Clone(c.CheckWeights)
	}
	if c.CategoryWeights != nil {
		clone.CategoryWeights = maps.Clone(c.CategoryWeights)
	}
	return &clone
}

// RunConfig returns the sweep settings of the config.
func (c *Config) RunConfig() schema.RunConfig {
	return schema.RunConfig{
		Concurrency: c.Workers,
		Force:       c.Force,
		RetryBudget: c.RetryBudget,
		Timeout:     c.Timeout,
		GracePeriod: c.GracePeriod,
	}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processCache(cfg, input); err != nil {
		return err
	}
	return processCustomWeights(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Force = input.Force
	cfg.GitHubToken = strings.TrimSpace(input.GitHubToken)
	cfg.RegistrySource = strings.TrimSpace(input.Registry)
	cfg.LogMode = input.LogMode
	cfg.LogLevel = input.LogLevel
	cfg.Schedule = strings.TrimSpace(input.Schedule)

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 || input.Workers > MaxWorkers {
		return fmt.Errorf("workers must be greater than 0 and cannot exceed %d (received %d)", MaxWorkers, input.Workers)
	}
	cfg.Workers = input.Workers

	if input.LintWorkers < 0 {
		return fmt.Errorf("lint-workers cannot be negative (received %d)", input.LintWorkers)
	}
	cfg.LintWorkers = input.LintWorkers

	if input.Retries < 0 {
		return fmt.Errorf("retries cannot be negative (received %d)", input.Retries)
	}
	cfg.RetryBudget = input.Retries

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	cfg.ErrorPolicy = schema.ErrorPolicy(strings.ToLower(input.ErrorPolicy))
	if cfg.ErrorPolicy == "" {
		cfg.ErrorPolicy = schema.ErrorAsFailed
	}
	if _, ok := schema.ValidErrorPolicies[cfg.ErrorPolicy]; !ok {
		return fmt.Errorf("invalid error policy '%s'. must be failed or excluded", input.ErrorPolicy)
	}

	return nil
}

// processDurations parses every duration-valued input, falling back to defaults.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	fields := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"timeout", input.Timeout, DefaultTimeout, &cfg.Timeout},
		{"grace-period", input.GracePeriod, DefaultGracePeriod, &cfg.GracePeriod},
		{"backoff", input.Backoff, DefaultBackoff, &cfg.BackoffBase},
		{"backoff-max", input.BackoffMax, DefaultBackoffMax, &cfg.BackoffMax},
		{"check-timeout", input.CheckTimeout, DefaultCheckTimeout, &cfg.CheckTimeout},
		{"cache-ttl", input.CacheTTL, DefaultCacheTTL, &cfg.CacheTTL},
		{"lock-ttl", input.LockTTL, DefaultLockTTL, &cfg.LockTTL},
		{"metadata-cache-ttl", input.MetadataTTL, DefaultMetadataCacheTTL, &cfg.MetadataCacheTTL},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.dst = f.def
			continue
		}
		d, err := ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive (received %s)", f.name, f.raw)
		}
		*f.dst = d
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		return fmt.Errorf("backoff-max (%s) cannot be lower than backoff (%s)", cfg.BackoffMax, cfg.BackoffBase)
	}
	return nil
}

// validateBackendConfigs validates store and lock backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Store Backend Validation ---
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	// --- Lock Backend Validation ---
	cfg.LockBackend = schema.LockBackend(strings.ToLower(input.LockBackend))
	if cfg.LockBackend == "" {
		cfg.LockBackend = schema.LocalLock
	}
	if _, ok := schema.ValidLockBackends[cfg.LockBackend]; !ok {
		return fmt.Errorf("invalid lock backend '%s'. must be local, postgresql, redis", input.LockBackend)
	}
	cfg.LockConnect = input.LockConnect
	switch cfg.LockBackend {
	case schema.RedisLock:
		if cfg.LockConnect == "" {
			return fmt.Errorf("lock-connect is required when using %s locks (e.g., localhost:6379)", cfg.LockBackend)
		}
	case schema.PostgresLock:
		// Reuse the store connection when it already points at PostgreSQL.
		if cfg.LockConnect == "" && cfg.StoreBackend == schema.PostgreSQLBackend {
			cfg.LockConnect = cfg.StoreDBConnect
		}
		if err := ValidateDatabaseConnectionString(schema.PostgreSQLBackend, cfg.LockConnect); err != nil {
			return fmt.Errorf("invalid lock-connect: %w", err)
		}
	}

	return nil
}

// processCache resolves the fetch cache location and size budget.
func processCache(cfg *Config, input *ConfigRawInput) error {
	cfg.CacheDir = input.CacheDir
	if cfg.CacheDir == "" {
		cfg.CacheDir = GetFetchCacheDir()
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache-dir %q: %w", cfg.CacheDir, err)
	}
	cfg.CacheDir = abs

	size := input.CacheMaxSize
	if strings.TrimSpace(size) == "" {
		size = DefaultCacheMaxSize
	}
	maxBytes, err := humanize.ParseBytes(size)
	if err != nil {
		return fmt.Errorf("invalid cache-max-size %q: %w", size, err)
	}
	if maxBytes == 0 {
		return fmt.Errorf("cache-max-size must be greater than 0")
	}
	cfg.CacheMaxBytes = int64(maxBytes)
	return nil
}

// processCustomWeights merges default category weights with overrides and copies check overrides.
// Check ids are validated later against the registry.
func processCustomWeights(cfg *Config, input *ConfigRawInput) error {
	cfg.CategoryWeights = maps.Clone(schema.DefaultCategoryWeights)
	for name, w := range input.Weights.Categories {
		c := schema.Category(strings.ToLower(name))
		if _, ok := schema.ValidCategories[c]; !ok {
			return fmt.Errorf("invalid category %q in weights", name)
		}
		if w == 0 {
			return fmt.Errorf("weight for category %s must be greater than 0", c)
		}
		cfg.CategoryWeights[c] = w
	}

	cfg.CheckWeights = make(map[string]uint, len(input.Weights.Checks))
	for id, w := range input.Weights.Checks {
		if w == 0 {
			return fmt.Errorf("weight for check %s must be greater than 0", id)
		}
		cfg.CheckWeights[strings.ToLower(id)] = w
	}
	return nil
}

// ParseDuration parses a Go duration string, additionally accepting a day suffix like "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// GetFetchCacheDir returns the default directory of the fetch cache.
func GetFetchCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "repohealth", "repos")
	}
	return filepath.Join(os.TempDir(), "repohealth", "repos")
}

// GetStoreDBFilePath returns the path to the SQLite DB file for report storage.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".repohealth.db"
	}
	return filepath.Join(homeDir, ".repohealth.db")
}
