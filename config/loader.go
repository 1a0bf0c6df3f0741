// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format represents the configuration file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Loader handles configuration loading from files and the environment
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"/etc/kestrel",
			os.Getenv("HOME") + "/.kestrel",
		},
		envPrefix:     "KESTREL",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file, falling back to the
// defaults plus environment overrides when filename is empty
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.finish(l.defaults())
	}
	return l.LoadFromFile(filename)
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatForFile(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return l.finish(l.mergeConfig(l.defaults(), config))
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.finish(l.mergeConfig(l.defaults(), config))
}

// AutoLoad discovers a configuration file in the search paths and loads it,
// falling back to defaults when none exists
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if err != nil {
		if err == ErrConfigFileNotFound {
			return l.finish(l.defaults())
		}
		return nil, err
	}
	return l.LoadFromFile(configFile)
}

// defaults returns a copy of the default configuration
func (l *Loader) defaults() *Config {
	base := l.defaultConfig
	if base == nil {
		base = DefaultConfig()
	}
	copied := *base
	return &copied
}

// finish applies environment overrides and validates
func (l *Loader) finish(config *Config) (*Config, error) {
	l.loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"kestrel.yaml", "kestrel.yml",
		"kestrel.toml",
		"kestrel.json",
		"config.yaml", "config.yml",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// formatForFile determines the configuration format from a file extension
func formatForFile(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format Format) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) {
	if val := os.Getenv(l.envPrefix + "_NODE_NAME"); val != "" {
		config.Node.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_NODE_ENVIRONMENT"); val != "" {
		config.Node.Environment = Environment(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(val)
	}
	if val := os.Getenv(l.envPrefix + "_MAILBOX_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Runtime.MailboxCapacity = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Runtime.ShutdownTimeout = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_INGEST_ADDRESS"); val != "" {
		config.Ingest.Address = val
	}
	if val := os.Getenv(l.envPrefix + "_TELEMETRY_ADDRESS"); val != "" {
		config.Telemetry.Address = val
	}
	if val := os.Getenv(l.envPrefix + "_ALLOCATOR_ENDPOINT"); val != "" {
		config.Allocator.Endpoint = val
	}
}

// mergeConfig merges user config with default config
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	merged := *defaultConfig

	if userConfig.Node.Name != "" {
		merged.Node.Name = userConfig.Node.Name
	}
	if userConfig.Node.Environment != "" {
		merged.Node.Environment = userConfig.Node.Environment
	}
	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Runtime.MailboxCapacity != 0 {
		merged.Runtime.MailboxCapacity = userConfig.Runtime.MailboxCapacity
	}
	if userConfig.Runtime.GossipMailboxCapacity != 0 {
		merged.Runtime.GossipMailboxCapacity = userConfig.Runtime.GossipMailboxCapacity
	}
	if userConfig.Runtime.FlushInterval != 0 {
		merged.Runtime.FlushInterval = userConfig.Runtime.FlushInterval
	}
	if userConfig.Runtime.ShutdownTimeout != 0 {
		merged.Runtime.ShutdownTimeout = userConfig.Runtime.ShutdownTimeout
	}
	if userConfig.Ingest.Address != "" {
		merged.Ingest.Address = userConfig.Ingest.Address
	}
	if userConfig.Ingest.MaxBodyBytes != 0 {
		merged.Ingest.MaxBodyBytes = userConfig.Ingest.MaxBodyBytes
	}
	if userConfig.Telemetry.Address != "" {
		merged.Telemetry.Address = userConfig.Telemetry.Address
	}
	if userConfig.Allocator.Endpoint != "" {
		merged.Allocator.Endpoint = userConfig.Allocator.Endpoint
	}
	if userConfig.Allocator.Timeout != 0 {
		merged.Allocator.Timeout = userConfig.Allocator.Timeout
	}

	return &merged
}
