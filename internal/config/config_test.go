package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "discrete fields",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "app",
				Password: "secret",
				Database: "library",
			},
			want: "app:secret@tcp(localhost:3306)/library?parseTime=true&loc=UTC",
		},
		{
			name: "connection string passes through",
			cfg: DatabaseConfig{
				ConnectionString: "app:secret@tcp(db:3306)/library?parseTime=true&loc=UTC",
			},
			want: "app:secret@tcp(db:3306)/library?parseTime=true&loc=UTC",
		},
		{
			name: "connection string gains parseTime and loc",
			cfg: DatabaseConfig{
				ConnectionString: "app:secret@tcp(db:3306)/library",
			},
			want: "app:secret@tcp(db:3306)/library?parseTime=true&loc=UTC",
		},
		{
			name: "connection string with existing params",
			cfg: DatabaseConfig{
				ConnectionString: "app:secret@tcp(db:3306)/library?charset=utf8mb4",
			},
			want: "app:secret@tcp(db:3306)/library?charset=utf8mb4&parseTime=true&loc=UTC",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

func TestDatabaseConfig_EffectiveDatabaseName(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		want    string
		wantErr string
	}{
		{
			name: "discrete name",
			cfg:  DatabaseConfig{Database: "library"},
			want: "library",
		},
		{
			name: "name from dsn",
			cfg:  DatabaseConfig{ConnectionString: "app:x@tcp(db:3306)/library"},
			want: "library",
		},
		{
			name: "matching name and dsn",
			cfg: DatabaseConfig{
				Database:         "library",
				ConnectionString: "app:x@tcp(db:3306)/library",
			},
			want: "library",
		},
		{
			name: "mismatched name and dsn",
			cfg: DatabaseConfig{
				Database:         "library",
				ConnectionString: "app:x@tcp(db:3306)/other",
			},
			wantErr: "database mismatch",
		},
		{
			name:    "no name anywhere",
			cfg:     DatabaseConfig{ConnectionString: "app:x@tcp(db:3306)/"},
			wantErr: "no database name configured",
		},
		{
			name:    "invalid dsn",
			cfg:     DatabaseConfig{ConnectionString: "not a dsn"},
			wantErr: "database.dsn is invalid",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.EffectiveDatabaseName()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "app",
			Database: "library",
			Pool:     PoolConfig{MaxOpen: 25, MaxIdle: 5, MaxLifetime: 5 * time.Minute},
		},
		Service: ServiceConfig{DefaultPageSize: 25, MaxPageSize: 100},
		Observability: ObservabilityConfig{
			ServiceName:    "recordql",
			MetricsEnabled: true,
			MetricsPort:    9090,
			Logging:        LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:      "missing host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantField: "database.host",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Database.Port = 70000 },
			wantField: "database.port",
		},
		{
			name:      "missing user",
			mutate:    func(c *Config) { c.Database.User = "" },
			wantField: "database.user",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantField: "database.database",
		},
		{
			name:      "idle exceeds open",
			mutate:    func(c *Config) { c.Database.Pool.MaxIdle = 50 },
			wantField: "database.pool.max_idle",
		},
		{
			name:      "zero default page size",
			mutate:    func(c *Config) { c.Service.DefaultPageSize = 0 },
			wantField: "service.default_page_size",
		},
		{
			name:      "default exceeds max page size",
			mutate:    func(c *Config) { c.Service.DefaultPageSize = 200 },
			wantField: "service.default_page_size",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Observability.Logging.Level = "verbose" },
			wantField: "observability.logging.level",
		},
		{
			name:      "bad log format",
			mutate:    func(c *Config) { c.Observability.Logging.Format = "xml" },
			wantField: "observability.logging.format",
		},
		{
			name:      "metrics port out of range",
			mutate:    func(c *Config) { c.Observability.MetricsPort = 0 },
			wantField: "observability.metrics_port",
		},
		{
			name: "metrics port ignored when disabled",
			mutate: func(c *Config) {
				c.Observability.MetricsEnabled = false
				c.Observability.MetricsPort = 0
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			result := cfg.Validate()
			if tc.wantField == "" {
				assert.False(t, result.HasErrors(), "unexpected errors: %s", result.Error())
				return
			}
			require.True(t, result.HasErrors())
			found := false
			for _, e := range result.Errors {
				if e.Field == tc.wantField {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got: %s", tc.wantField, result.Error())
		})
	}
}

func TestReadSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))

	got, err := readSecretFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = readSecretFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestValidateSingleStdinFileSource(t *testing.T) {
	v := viper.New()
	v.Set("database.dsn_file", "@-")
	v.Set("database.password_file", "/run/secrets/db-password")
	assert.NoError(t, validateSingleStdinFileSource(v))

	v.Set("database.password_file", "@-")
	err := validateSingleStdinFileSource(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin")
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "database.port", Message: "port 0 out of range", Hint: "valid range is 1-65535"}
	assert.Equal(t, "database.port: port 0 out of range (hint: valid range is 1-65535)", err.Error())

	bare := ValidationError{Field: "database.host", Message: "host must not be empty"}
	assert.Equal(t, "database.host: host must not be empty", bare.Error())
}
