// Package config provides configuration management for a Kestrel node
package config

import (
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Config represents the complete node configuration
type Config struct {
	// Node identity and environment
	Node NodeConfig `yaml:"node" json:"node" toml:"node"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Actor runtime configuration
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime" toml:"runtime"`

	// Ingestion endpoint configuration
	Ingest IngestConfig `yaml:"ingest" json:"ingest" toml:"ingest"`

	// Telemetry endpoint configuration
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry" toml:"telemetry"`

	// Sequence allocator configuration
	Allocator AllocatorConfig `yaml:"allocator" json:"allocator" toml:"allocator"`
}

// NodeConfig contains node-level configuration
type NodeConfig struct {
	// Node name, used as the root label of the context tree
	Name string `yaml:"name" json:"name" toml:"name"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`
}

// RuntimeConfig contains actor runtime settings
type RuntimeConfig struct {
	// Default mailbox capacity for subsystem actors
	MailboxCapacity int `yaml:"mailbox_capacity" json:"mailbox_capacity" toml:"mailbox_capacity"`

	// Mailbox capacity for the gossip relay, which tolerates loss and
	// uses the reject policy
	GossipMailboxCapacity int `yaml:"gossip_mailbox_capacity" json:"gossip_mailbox_capacity" toml:"gossip_mailbox_capacity"`

	// Interval between storage flushes
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" toml:"flush_interval"`

	// Deadline for coordinated shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout"`
}

// IngestConfig contains ingestion endpoint settings
type IngestConfig struct {
	// Listening address for the submission endpoint
	Address string `yaml:"address" json:"address" toml:"address"`

	// Maximum accepted submission size in bytes
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes" toml:"max_body_bytes"`
}

// TelemetryConfig contains telemetry endpoint settings
type TelemetryConfig struct {
	// Listening address for the metrics endpoint
	Address string `yaml:"address" json:"address" toml:"address"`
}

// AllocatorConfig contains sequence allocator settings
type AllocatorConfig struct {
	// Endpoint of a remote sequence allocator. Empty selects the
	// embedded in-memory allocator.
	Endpoint string `yaml:"endpoint" json:"endpoint" toml:"endpoint"`

	// Per-request timeout for remote allocator calls
	Timeout time.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
}

// DefaultConfig returns the default node configuration
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Name:        "kestrel",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
		Runtime: RuntimeConfig{
			MailboxCapacity:       1024,
			GossipMailboxCapacity: 256,
			FlushInterval:         2 * time.Second,
			ShutdownTimeout:       15 * time.Second,
		},
		Ingest: IngestConfig{
			Address:      ":8480",
			MaxBodyBytes: 1 << 20,
		},
		Telemetry: TelemetryConfig{
			Address: ":9480",
		},
		Allocator: AllocatorConfig{
			Endpoint: "",
			Timeout:  3 * time.Second,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Node.Name == "" {
		return ErrInvalidNodeName
	}
	if !c.Node.Environment.IsValid() {
		return ErrInvalidEnvironment
	}
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Runtime.MailboxCapacity < 1 {
		return ErrInvalidMailboxCapacity
	}
	if c.Runtime.GossipMailboxCapacity < 1 {
		return ErrInvalidMailboxCapacity
	}
	if c.Runtime.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}
	if c.Ingest.Address == "" {
		return ErrInvalidAddress
	}
	if c.Ingest.MaxBodyBytes < 1 {
		return ErrInvalidBodyLimit
	}
	if c.Telemetry.Address == "" {
		return ErrInvalidAddress
	}
	return nil
}
