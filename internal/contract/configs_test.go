package contract

import (
	"testing"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns a raw input that passes validation.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Workers:      4,
		Output:       "text",
		Color:        "yes",
		StoreBackend: string(schema.SQLiteBackend),
		CacheDir:     "/tmp/repohealth-test",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
		check       func(*testing.T, *Config)
	}{
		{
			name: "valid minimal config",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.Workers)
				assert.Equal(t, DefaultTimeout, cfg.Timeout)
				assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
				assert.Equal(t, schema.LocalLock, cfg.LockBackend)
				assert.Equal(t, schema.ErrorAsFailed, cfg.ErrorPolicy)
				assert.Equal(t, int64(20_000_000_000), cfg.CacheMaxBytes)
				assert.Equal(t, uint(30), cfg.CategoryWeights[schema.DocumentationCategory])
				assert.True(t, cfg.UseColors)
			},
		},
		{
			name: "durations and sizes",
			mutate: func(in *ConfigRawInput) {
				in.Timeout = "90s"
				in.CacheTTL = "3d"
				in.CacheMaxSize = "512MB"
				in.Retries = 5
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 90*time.Second, cfg.Timeout)
				assert.Equal(t, 72*time.Hour, cfg.CacheTTL)
				assert.Equal(t, int64(512_000_000), cfg.CacheMaxBytes)
				assert.Equal(t, 5, cfg.RetryBudget)
			},
		},
		{
			name:        "zero workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: "workers must be greater than 0",
		},
		{
			name:        "negative retries",
			mutate:      func(in *ConfigRawInput) { in.Retries = -1 },
			expectError: "retries cannot be negative",
		},
		{
			name:        "invalid output",
			mutate:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: "invalid output format",
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "maybe" },
			expectError: "invalid --color value",
		},
		{
			name:        "invalid duration",
			mutate:      func(in *ConfigRawInput) { in.Timeout = "soon" },
			expectError: "invalid timeout",
		},
		{
			name: "backoff max below base",
			mutate: func(in *ConfigRawInput) {
				in.Backoff = "10s"
				in.BackoffMax = "1s"
			},
			expectError: "backoff-max",
		},
		{
			name:        "invalid store backend",
			mutate:      func(in *ConfigRawInput) { in.StoreBackend = "oracle" },
			expectError: "invalid store backend",
		},
		{
			name:        "mysql without connection",
			mutate:      func(in *ConfigRawInput) { in.StoreBackend = "mysql" },
			expectError: "store-db-connect is required",
		},
		{
			name:        "redis locks without address",
			mutate:      func(in *ConfigRawInput) { in.LockBackend = "redis" },
			expectError: "lock-connect is required",
		},
		{
			name: "postgres locks reuse store connection",
			mutate: func(in *ConfigRawInput) {
				in.StoreBackend = "postgresql"
				in.StoreDBConnect = "host=db dbname=health"
				in.LockBackend = "postgresql"
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "host=db dbname=health", cfg.LockConnect)
			},
		},
		{
			name:        "invalid cache size",
			mutate:      func(in *ConfigRawInput) { in.CacheMaxSize = "lots" },
			expectError: "invalid cache-max-size",
		},
		{
			name:        "invalid error policy",
			mutate:      func(in *ConfigRawInput) { in.ErrorPolicy = "ignore" },
			expectError: "invalid error policy",
		},
		{
			name: "custom weights",
			mutate: func(in *ConfigRawInput) {
				in.Weights = WeightsRawInput{
					Checks:     map[string]uint{"README": 20},
					Categories: map[string]uint{"legal": 5},
				}
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, uint(20), cfg.CheckWeights["readme"])
				assert.Equal(t, uint(5), cfg.CategoryWeights[schema.LegalCategory])
				assert.Equal(t, uint(20), cfg.CategoryWeights[schema.SecurityCategory])
			},
		},
		{
			name: "unknown category weight",
			mutate: func(in *ConfigRawInput) {
				in.Weights.Categories = map[string]uint{"speed": 5}
			},
			expectError: "invalid category",
		},
		{
			name: "zero check weight",
			mutate: func(in *ConfigRawInput) {
				in.Weights.Checks = map[string]uint{"readme": 0}
			},
			expectError: "must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			if tt.mutate != nil {
				tt.mutate(input)
			}
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{
		Workers:         2,
		CheckWeights:    map[string]uint{"readme": 3},
		CategoryWeights: map[schema.Category]uint{schema.LegalCategory: 1},
	}
	clone := cfg.Clone()
	clone.CheckWeights["readme"] = 9
	clone.CategoryWeights[schema.LegalCategory] = 9

	assert.Equal(t, uint(3), cfg.CheckWeights["readme"])
	assert.Equal(t, uint(1), cfg.CategoryWeights[schema.LegalCategory])
}

func TestRunConfig(t *testing.T) {
	cfg := &Config{Workers: 3, Force: true, RetryBudget: 2, Timeout: time.Minute, GracePeriod: time.Second}
	assert.Equal(t, schema.RunConfig{
		Concurrency: 3,
		Force:       true,
		RetryBudget: 2,
		Timeout:     time.Minute,
		GracePeriod: time.Second,
	}, cfg.RunConfig())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "2h", want: 2 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: " 1d ", want: 24 * time.Hour},
		{in: "xd", wantErr: true},
		{in: "forever", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func FuzzParseDuration(f *testing.F) {
	for _, seed := range []string{"1d", "30s", "", "d", "-5d", "1h30m"} {
		f.Add(seed)
	}
	f.Fuzz(func(_ *testing.T, s string) {
		_, _ = ParseDuration(s)
	})
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@tcp(localhost:3306)/db"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@localhost/db"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@tcp(localhost:3306)"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=x dbname=y"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "dbname=y"))
}
