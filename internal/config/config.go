package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AppName names the configuration directory and default file names.
const AppName = "dirbackup"

// Compression level bounds accepted by the Deflate writer.
const (
	MinCompressionLevel = -2
	MaxCompressionLevel = 9
)

// Config is the top-level configuration
type Config struct {
	Profiles ProfilesConfig `yaml:"profiles"`
	Backup   BackupConfig   `yaml:"backup"`
	Restore  RestoreConfig  `yaml:"restore"`
	History  HistoryConfig  `yaml:"history"`
}

// ProfilesConfig locates the profile store
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// BackupConfig holds archive creation settings
type BackupConfig struct {
	OutputDir        string `yaml:"output_dir"`
	CompressionLevel int    `yaml:"compression_level"`
}

// RestoreConfig holds restore and elevation settings
type RestoreConfig struct {
	AutoStartDelay   time.Duration `yaml:"auto_start_delay"`
	ElevationCommand string        `yaml:"elevation_command"`
}

// HistoryConfig holds run history settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backup: BackupConfig{
			OutputDir:        ".",
			CompressionLevel: 6,
		},
		Restore: RestoreConfig{
			AutoStartDelay: 500 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Backup.CompressionLevel < MinCompressionLevel || c.Backup.CompressionLevel > MaxCompressionLevel {
		return fmt.Errorf("backup.compression_level %d out of range %d..%d",
			c.Backup.CompressionLevel, MinCompressionLevel, MaxCompressionLevel)
	}
	if c.Restore.AutoStartDelay < 0 {
		return fmt.Errorf("restore.auto_start_delay must not be negative")
	}
	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		AppName + ".yaml",
		filepath.Join("/etc", AppName, AppName+".yaml"),
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", AppName, AppName+".yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// ProfilesPath returns the profile store file, defaulting to the user
// config directory.
func (c *Config) ProfilesPath() (string, error) {
	if c.Profiles.Path != "" {
		return c.Profiles.Path, nil
	}
	return userFile("profiles.json")
}

// HistoryDBPath returns the run history database, defaulting to the user
// config directory.
func (c *Config) HistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}
	return userFile("history.db")
}

func userFile(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, AppName, name), nil
}
