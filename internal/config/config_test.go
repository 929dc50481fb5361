package config

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/pkg/testsupport"
	"github.com/goliatone/go-webstats/stats"
	"github.com/goliatone/go-webstats/valuestore"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Endpoint != "0.0.0.0:8080" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.ResponseCacheTTL != time.Second {
		t.Errorf("unexpected response cache ttl %v", cfg.ResponseCacheTTL)
	}
	if !reflect.DeepEqual(cfg.Objectives, []string{"*"}) {
		t.Errorf("expected all objectives by default, got %v", cfg.Objectives)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
	if err := cfg.Database.Validate(); err == nil {
		t.Error("expected default database without a path to be invalid")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("WEBSTATS_DB_PASSWORD", "from-env")
	t.Setenv("WEBSTATS_DB_PORT", "6543")

	v := NewViper()
	v.SetConfigFile(testsupport.FixturePath("webstats.yaml"))
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Endpoint != "127.0.0.1:9090" || cfg.LogLevel != "debug" || cfg.StatePath != "state.json" {
		t.Errorf("unexpected server settings %+v", cfg)
	}
	if !cfg.PersistOnRemoval {
		t.Error("expected persist-on-removal")
	}
	if cfg.ResponseCacheTTL != 5*time.Second {
		t.Errorf("unexpected ttl %v", cfg.ResponseCacheTTL)
	}
	wantColumns := []stats.Column{
		{Field: "%vault_eco_balance%", Label: "Balance"},
		{Field: "%statistic_time_played%", Label: "Time played"},
	}
	if !reflect.DeepEqual(cfg.Placeholders, wantColumns) {
		t.Errorf("Placeholders = %v, want %v", cfg.Placeholders, wantColumns)
	}
	if !reflect.DeepEqual(cfg.Fields(), []string{"%vault_eco_balance%", "%statistic_time_played%"}) {
		t.Errorf("unexpected fields %v", cfg.Fields())
	}
	if !reflect.DeepEqual(cfg.Objectives, []string{"Kills", "Deaths"}) {
		t.Errorf("unexpected objectives %v", cfg.Objectives)
	}

	// the file wins over the environment, the environment fills the gaps
	want := valuestore.Options{
		Driver:   valuestore.DriverPostgres,
		Hostname: "db.internal",
		Port:     6543,
		Username: "webstats",
		Password: "secret",
		Database: "stats",
	}
	if got := cfg.Database.Options(); got != want {
		t.Errorf("Options() = %+v, want %+v", got, want)
	}
	if err := cfg.Database.Validate(); err != nil {
		t.Errorf("expected database to be valid, got %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WEBSTATS_ENDPOINT", ":7070")
	t.Setenv("WEBSTATS_DB_PATH", "stats.db")

	v := NewViper()
	v.SetDefault("endpoint", Default().Endpoint)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != ":7070" {
		t.Errorf("expected endpoint from env, got %q", cfg.Endpoint)
	}
	if cfg.Database.Driver != valuestore.DriverSQLite || cfg.Database.Path != "stats.db" {
		t.Errorf("unexpected database %+v", cfg.Database)
	}
	if err := cfg.Database.Validate(); err != nil {
		t.Errorf("expected sqlite database to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "default",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing endpoint",
			mutate:    func(c *Config) { c.Endpoint = "" },
			wantField: "endpoint",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.LogLevel = "verbose" },
			wantField: "log-level",
		},
		{
			name:      "negative ttl",
			mutate:    func(c *Config) { c.ResponseCacheTTL = -time.Second },
			wantField: "response-cache-ttl",
		},
		{
			name: "placeholder without label",
			mutate: func(c *Config) {
				c.Placeholders = []stats.Column{{Field: "%a%", Label: "A"}, {Field: "%b%"}}
			},
			wantField: "placeholders[1].label",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			var cfgErr *cache.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestDatabase_Validate(t *testing.T) {
	tests := []struct {
		name      string
		db        Database
		wantField string
	}{
		{
			name: "sqlite",
			db:   Database{Driver: "sqlite3", Path: "stats.db"},
		},
		{
			name:      "sqlite without path",
			db:        Database{Driver: "sqlite3"},
			wantField: "database.path",
		},
		{
			name: "postgres",
			db:   Database{Driver: "postgres", Hostname: "db", Port: 5432, Username: "u", Name: "stats"},
		},
		{
			name:      "postgres without hostname",
			db:        Database{Driver: "postgres", Port: 5432, Username: "u", Name: "stats"},
			wantField: "database.hostname",
		},
		{
			name:      "postgres with bad port",
			db:        Database{Driver: "postgres", Hostname: "db", Port: 70000, Username: "u", Name: "stats"},
			wantField: "database.port",
		},
		{
			name:      "unknown driver",
			db:        Database{Driver: "mysql"},
			wantField: "database.driver",
		},
		{
			name:      "no driver",
			db:        Database{},
			wantField: "database.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.db.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			var cfgErr *cache.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
		})
	}
}
