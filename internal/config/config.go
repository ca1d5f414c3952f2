// Package config holds the application settings and the runtime key/value
// configuration read by metadata sources.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides, e.g.
// MEDIAMETA_DATABASE.
const EnvPrefix = "MEDIAMETA"

// Setting keys understood by Load
const (
	KeyDatabase = "database"
	KeyListen   = "listen"
	KeyLogLevel = "log_level"
)

// Settings holds process level settings
type Settings struct {
	Database string `mapstructure:"database"`
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
}

// ConfigDir returns the directory holding the config file and database
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mediameta"), nil
}

// DefaultSettings returns the default settings
func DefaultSettings() Settings {
	database := "mediameta.db"
	if dir, err := ConfigDir(); err == nil {
		database = filepath.Join(dir, "mediameta.db")
	}
	return Settings{
		Database: database,
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// NewViper returns a viper instance with defaults, the optional
// mediameta.yaml config file locations and environment overrides set up.
func NewViper() *viper.Viper {
	v := viper.New()
	defaults := DefaultSettings()
	v.SetDefault(KeyDatabase, defaults.Database)
	v.SetDefault(KeyListen, defaults.Listen)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)

	v.SetConfigName("mediameta")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the settings from v. A missing config file is not an error.
func Load(v *viper.Viper) (Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	return s, nil
}
