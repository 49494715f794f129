// Package config loads connection settings and compiler features from a YAML
// file, the environment and .env files.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asaidimu/go-arangoql/arangodb"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration and schema files are read from.
var AppFs = afero.NewOsFs()

const (
	// FileName is the configuration file name, without extension.
	FileName = ".arangoql"
	// EnvPrefix prefixes every environment override, e.g. ARANGOQL_CONNECTION_DATABASE.
	EnvPrefix = "ARANGOQL"
)

// Config holds the application configuration.
type Config struct {
	Connection arangodb.ConnectionConfig `mapstructure:"connection"`
	Features   arangodb.Features         `mapstructure:"features"`
	// LogLevel is "debug" for a development logger, anything else for production.
	LogLevel string `mapstructure:"log_level"`
	// Routes maps model types to database aliases.
	Routes map[string]string `mapstructure:"routes"`
}

// Load reads the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "arangoql"))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loadDotEnv()

	cfg := &Config{Features: arangodb.DefaultFeatures()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if len(cfg.Connection.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.endpoints", []string{"http://localhost:8529"})
	v.SetDefault("connection.database", "_system")
	v.SetDefault("connection.username", "root")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.batch_size", arangodb.DefaultBatchSize)
	v.SetDefault("features.chunked_reads", true)
	v.SetDefault("features.inline_params", false)
	v.SetDefault("log_level", "info")
}

// loadDotEnv exports .env and then .env.local into the process environment.
// Values from .env.local win.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// Save writes cfg to the user configuration directory and returns the path.
func Save(cfg *Config) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.Set("connection.endpoints", cfg.Connection.Endpoints)
	v.Set("connection.database", cfg.Connection.Database)
	v.Set("connection.username", cfg.Connection.Username)
	v.Set("connection.batch_size", cfg.Connection.BatchSize)
	v.Set("features.chunked_reads", cfg.Features.CanUseChunkedReads)
	v.Set("features.inline_params", cfg.Features.InlineParameters)
	v.Set("log_level", cfg.LogLevel)
	if len(cfg.Routes) > 0 {
		v.Set("routes", cfg.Routes)
	}

	dir := filepath.Join(home, ".config", "arangoql")
	if err := AppFs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName+".yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, nil
}

// ReadFile reads a file through AppFs.
func ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(AppFs, path)
}
