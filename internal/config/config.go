// Package config loads the server configuration from flags, an optional
// config file and WEBSTATS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/stats"
	"github.com/goliatone/go-webstats/valuestore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("config")

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "WEBSTATS"

// Config is the full server configuration.
type Config struct {
	Endpoint         string         `mapstructure:"endpoint" json:"endpoint"`
	LogLevel         string         `mapstructure:"log-level" json:"log-level"`
	StatePath        string         `mapstructure:"state" json:"state"`
	Placeholders     []stats.Column `mapstructure:"placeholders" json:"placeholders"`
	Objectives       []string       `mapstructure:"objectives" json:"objectives"`
	PersistOnRemoval bool           `mapstructure:"persist-on-removal" json:"persist-on-removal"`
	ResponseCacheTTL time.Duration  `mapstructure:"response-cache-ttl" json:"response-cache-ttl"`
	Database         Database       `mapstructure:"database" json:"database"`
}

// Database holds the value store connection parameters. They are read from
// WEBSTATS_DB_* variables first and overridden by the config file.
type Database struct {
	Driver   string `mapstructure:"driver" json:"driver" env:"DRIVER" envDefault:"sqlite3"`
	Path     string `mapstructure:"path" json:"path" env:"PATH"`
	Hostname string `mapstructure:"hostname" json:"hostname" env:"HOSTNAME"`
	Port     int    `mapstructure:"port" json:"port" env:"PORT" envDefault:"5432"`
	Username string `mapstructure:"username" json:"username" env:"USERNAME"`
	Password string `mapstructure:"password" json:"password" env:"PASSWORD"`
	Name     string `mapstructure:"name" json:"name" env:"NAME"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Endpoint:         "0.0.0.0:8080",
		LogLevel:         "info",
		Objectives:       []string{stats.AllObjectives},
		ResponseCacheTTL: time.Second,
		Database: Database{
			Driver: valuestore.DriverSQLite,
			Port:   5432,
		},
	}
}

// Load builds the configuration: defaults, then WEBSTATS_DB_* variables,
// then everything v knows from flags, config file and environment.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if err := env.ParseWithOptions(&cfg.Database, env.Options{Prefix: EnvPrefix + "_DB_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewViper returns a viper instance reading WEBSTATS_ variables, with "-" and
// "." in keys mapped to "_".
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate checks the server settings. Database settings are checked on
// their own by Database.Validate, since a broken database only disables the
// placeholder cache.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "warning", "error")),
		validation.Field(&c.ResponseCacheTTL, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return toConfigError(err)
	}

	for i, p := range c.Placeholders {
		err := validation.ValidateStruct(&p,
			validation.Field(&p.Field, validation.Required),
			validation.Field(&p.Label, validation.Required),
		)
		if err != nil {
			cfgErr := toConfigError(err)
			cfgErr.Field = fmt.Sprintf("placeholders[%d].%s", i, cfgErr.Field)
			return cfgErr
		}
	}
	return nil
}

// Validate checks that the parameters for the configured driver are set.
func (d Database) Validate() error {
	sqlite := d.Driver == valuestore.DriverSQLite
	postgres := d.Driver == valuestore.DriverPostgres

	err := validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(valuestore.DriverSQLite, valuestore.DriverPostgres)),
		validation.Field(&d.Path, validation.When(sqlite, validation.Required)),
		validation.Field(&d.Hostname, validation.When(postgres, validation.Required)),
		validation.Field(&d.Port, validation.When(postgres, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&d.Username, validation.When(postgres, validation.Required)),
		validation.Field(&d.Name, validation.When(postgres, validation.Required)),
	)
	if err != nil {
		cfgErr := toConfigError(err)
		cfgErr.Field = "database." + cfgErr.Field
		return cfgErr
	}
	return nil
}

// Options converts the settings to value store options.
func (d Database) Options() valuestore.Options {
	return valuestore.Options{
		Driver:   d.Driver,
		Path:     d.Path,
		Hostname: d.Hostname,
		Port:     d.Port,
		Username: d.Username,
		Password: d.Password,
		Database: d.Name,
	}
}

// Fields returns the configured placeholder expressions.
func (c Config) Fields() []string {
	fields := make([]string, len(c.Placeholders))
	for i, p := range c.Placeholders {
		fields[i] = p.Field
	}
	return fields
}

// toConfigError reports the first failing field, in name order, as a
// ConfigError.
func toConfigError(err error) *cache.ConfigError {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &cache.ConfigError{Field: "config", Message: err.Error()}
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &cache.ConfigError{Field: fields[0], Message: errs[fields[0]].Error()}
}
