// Package config loads session settings from defaults, an optional config
// file, an optional .env file, LIBRARY_* environment variables and command
// line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "LIBRARY"

type (
	Config struct {
		Catalog Catalog `mapstructure:"catalog"`
		Store   Store   `mapstructure:"store"`
		Lending Lending `mapstructure:"lending"`
		Log     Log     `mapstructure:"log"`
	}

	Catalog struct {
		BooksFile string `mapstructure:"books_file" validate:"required"`
		UsersFile string `mapstructure:"users_file" validate:"required"`
		Seed      bool   `mapstructure:"seed"` // demo data when the files yield nothing
	}
	Store struct {
		Backend   string `mapstructure:"backend" validate:"oneof=memory sqlite"`
		StrictIDs bool   `mapstructure:"strict_ids"`
	}
	Lending struct {
		DefaultPolicy string `mapstructure:"default_policy" validate:"oneof=queue strict"`
	}
	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=text json"`
	}
)

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"books":          "catalog.books_file",
	"users":          "catalog.users_file",
	"seed":           "catalog.seed",
	"store":          "store.backend",
	"strict-ids":     "store.strict_ids",
	"default-policy": "lending.default_policy",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.books_file", "books.csv")
	v.SetDefault("catalog.users_file", "users.csv")
	v.SetDefault("catalog.seed", false)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.strict_ids", false)
	v.SetDefault("lending.default_policy", "queue")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load builds the configuration. configFile and flags are optional.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Lending.DefaultPolicy = strings.ToLower(cfg.Lending.DefaultPolicy)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Logger builds the session logger.
func (c Log) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
