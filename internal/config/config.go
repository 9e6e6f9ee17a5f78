package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phillarmonic/credstore/internal/secrets"
)

// DefaultFilename is the config file looked up in the user config directory
const DefaultFilename = "credstore.yaml"

// Config is the credstore configuration file
type Config struct {
	Backend         string              `yaml:"backend"`
	Target          string              `yaml:"target"`
	LogLevel        string              `yaml:"log_level"`
	Workers         int                 `yaml:"workers"`
	MetricsTextfile string              `yaml:"metrics_textfile"`
	SecretService   SecretServiceConfig `yaml:"secret_service"`
	Keyutils        KeyutilsConfig      `yaml:"keyutils"`
}

// SecretServiceConfig is the secret_service section
type SecretServiceConfig struct {
	Encryption string `yaml:"encryption"`
}

// KeyutilsConfig is the keyutils section. Persistent is a pointer so an
// absent key keeps the default.
type KeyutilsConfig struct {
	Persistent *bool `yaml:"persistent"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Backend:  string(secrets.BackendAuto),
		LogLevel: "warn",
		Workers:  4,
		SecretService: SecretServiceConfig{
			Encryption: "dh",
		},
	}
}

// FindConfigFile resolves the configuration file to use. An explicit path
// must exist; otherwise the user config directory is checked and an empty
// result means no file.
func FindConfigFile(filename string) (string, error) {
	if filename != "" {
		if _, err := os.Stat(filename); err != nil {
			return "", fmt.Errorf("specified config file '%s' not found", filename)
		}
		return filename, nil
	}

	for _, location := range defaultLocations() {
		if info, err := os.Stat(location); err == nil && !info.IsDir() {
			return location, nil
		}
	}
	return "", nil
}

func defaultLocations() []string {
	var locations []string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		locations = append(locations, filepath.Join(dir, "credstore", DefaultFilename))
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "credstore", DefaultFilename))
	}
	return locations
}

// Load reads the configuration from filename, or from the default
// locations when filename is empty. Missing defaults are filled in.
func Load(filename string) (*Config, error) {
	path, err := FindConfigFile(filename)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Backend == "" {
		cfg.Backend = string(secrets.BackendAuto)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.SecretService.Encryption == "" {
		cfg.SecretService.Encryption = "dh"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding
func (c *Config) Validate() error {
	var errs []error
	if _, err := secrets.ParseBackendKind(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	switch strings.ToLower(c.SecretService.Encryption) {
	case "dh", "plain":
	default:
		errs = append(errs, fmt.Errorf("secret_service.encryption must be 'dh' or 'plain', got %q", c.SecretService.Encryption))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BackendKind returns the configured backend
func (c *Config) BackendKind() secrets.BackendKind {
	kind, err := secrets.ParseBackendKind(c.Backend)
	if err != nil {
		return secrets.BackendAuto
	}
	return kind
}

// BackendConfig translates the file settings for backend construction
func (c *Config) BackendConfig() secrets.BackendConfig {
	cfg := secrets.BackendConfig{
		SecretService: secrets.SecretServiceConfig{
			Encryption: strings.ToLower(c.SecretService.Encryption),
		},
	}
	if c.Keyutils.Persistent != nil {
		cfg.Keyutils.SkipPersistent = !*c.Keyutils.Persistent
	}
	return cfg
}
