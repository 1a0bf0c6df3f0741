// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidNodeName        = errors.New("invalid node name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidMailboxCapacity = errors.New("invalid mailbox capacity")
	ErrInvalidShutdownTimeout = errors.New("invalid shutdown timeout")
	ErrInvalidAddress         = errors.New("invalid listen address")
	ErrInvalidBodyLimit       = errors.New("invalid body size limit")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrUnsupportedFormat  = errors.New("unsupported configuration format")
)
