package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration options for the application
type Config struct {
	// Project configuration
	Dir string `mapstructure:"dir"` // Working directory patches are applied under

	// Output configuration
	Quiet  bool `mapstructure:"quiet"`   // Suppress the commit summary, print only Done!
	DryRun bool `mapstructure:"dry_run"` // Parse and build commits but write nothing

	// Logging configuration. The CLI overwrites both fields with its
	// --debug and --log-file flag values after Load, so values from the
	// config file or environment do not enable or redirect logging.
	Debug   bool   `mapstructure:"debug"`    // Enable debug logging
	LogFile string `mapstructure:"log_file"` // Path to log file
}

const (
	// DefaultConfigDir is the directory under $HOME holding the config file
	DefaultConfigDir = ".applypatch"
)

// Load loads configuration from the config file and environment variables
func Load() (*Config, error) {
	config := &Config{
		Dir: getWorkingDirectory(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Register every key so env overrides survive Unmarshal
	v.SetDefault("dir", "")
	v.SetDefault("quiet", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")

	configDir := getConfigDir()
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("APPLYPATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Dir == "" {
		config.Dir = getWorkingDirectory()
	}

	return config, nil
}

// getConfigDir returns the path to the config directory
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		os.MkdirAll(configDir, 0755)
	}

	return configDir
}

// getWorkingDirectory returns the current working directory
func getWorkingDirectory() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}
