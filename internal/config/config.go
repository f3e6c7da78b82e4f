package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reposync/internal/engine"
	"reposync/internal/logging"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "reposync" // application name used for config and data directories

// Config holds the persisted application state: global settings plus the
// registry of managed repositories.
type Config struct {
	// StorageDir is the default directory new clones are placed under.
	StorageDir string `yaml:"storage_dir"`
	Version    string `yaml:"version"`   // Track config version
	InitTime   int64  `yaml:"init_time"` // Unix timestamp of first setup

	// Repositories is the registry of managed repository handles, in the
	// order they were added.
	Repositories []engine.Repository `yaml:"repositories"`
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, APP_NAME)
	configPath := filepath.Join(configDir, "config.yaml")

	logging.Debug("Determined config path", "path", configPath)
	return configPath, nil
}

// DefaultStorageDir returns the default directory cloned repositories are
// placed under, inside the platform data directory.
func DefaultStorageDir() string {
	return filepath.Join(xdg.DataHome, APP_NAME)
}

// Load loads the config from the standard location
// If no config exists, it returns an error indicating first run is needed
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	logging.Debug("Loading config from", "path", configPath)
	if !exists {
		return nil, fmt.Errorf("no configuration found, first-time setup required")
	}

	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// FindConfigFile returns the path to an existing config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}

	// Check primary location first
	if _, err := os.Stat(primary); err == nil {
		logging.Debug("Config found at primary path", "path", primary)
		return primary, true
	}

	// Return primary path for new config
	return primary, false
}

// IsFirstRun checks if this is the first time the application is run
func IsFirstRun() bool {
	_, exists := FindConfigFile()
	return !exists
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	path := DefaultStorageDir()
	logging.Debug("Using default storage directory", "path", path)

	return Config{
		StorageDir: path,
		Version:    "1.0",
		InitTime:   0, // Will be set during first save
	}
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Set init time if this is the first save
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600) for security
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// FindRepository returns the registered repository with the given ID.
func (c *Config) FindRepository(id string) (engine.Repository, bool) {
	for _, repo := range c.Repositories {
		if repo.ID == id {
			return repo, true
		}
	}
	return engine.Repository{}, false
}

// FindRepositoryByName returns the registered repository with the given
// display name.
func (c *Config) FindRepositoryByName(name string) (engine.Repository, bool) {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	return engine.Repository{}, false
}

// ResolveRepository looks a repository up by ID first, then by name.
func (c *Config) ResolveRepository(ref string) (engine.Repository, bool) {
	if repo, ok := c.FindRepository(ref); ok {
		return repo, true
	}
	return c.FindRepositoryByName(ref)
}

// AddRepository appends a repository to the registry after checking that its
// identity and local path do not collide with an existing entry.
func (c *Config) AddRepository(repo engine.Repository) error {
	if strings.TrimSpace(repo.ID) == "" {
		return fmt.Errorf("repository ID must not be empty")
	}
	if strings.TrimSpace(repo.Name) == "" {
		return fmt.Errorf("repository name must not be empty")
	}
	if strings.TrimSpace(repo.RemoteURL) == "" {
		return fmt.Errorf("repository remote URL must not be empty")
	}
	if strings.TrimSpace(repo.LocalPath) == "" {
		return fmt.Errorf("repository local path must not be empty")
	}

	for _, existing := range c.Repositories {
		if existing.ID == repo.ID {
			return fmt.Errorf("a repository with ID %q is already registered", repo.ID)
		}
		if existing.Name == repo.Name {
			return fmt.Errorf("a repository named %q is already registered", repo.Name)
		}
		if existing.LocalPath == repo.LocalPath {
			return fmt.Errorf("a repository already uses local path %q", repo.LocalPath)
		}
	}

	c.Repositories = append(c.Repositories, repo)
	return nil
}

// UpdateRepository replaces the registered repository that has the same ID.
func (c *Config) UpdateRepository(repo engine.Repository) error {
	for i, existing := range c.Repositories {
		if existing.ID == repo.ID {
			c.Repositories[i] = repo
			return nil
		}
	}
	return fmt.Errorf("no repository with ID %q is registered", repo.ID)
}

// RemoveRepository deletes the repository with the given ID from the registry.
// The local working tree is left on disk.
func (c *Config) RemoveRepository(id string) error {
	for i, existing := range c.Repositories {
		if existing.ID == id {
			c.Repositories = append(c.Repositories[:i], c.Repositories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no repository with ID %q is registered", id)
}

// CreateNewConfig initializes a new configuration with the specified storage directory
func CreateNewConfig(storageDir string) (*Config, error) {
	cfg := DefaultConfig()
	if storageDir != "" {
		cfg.StorageDir = storageDir
	}

	// Ensure storage directory exists
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	// Save the config to the standard location
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	logging.Info("Configuration created successfully", "storage_dir", cfg.StorageDir)
	return &cfg, nil
}
