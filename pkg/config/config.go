// Package config provides unified configuration for the relais gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAIS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the relais gateway.
type Config struct {
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	Backend Backend `yaml:"backend"`
	Log     Log     `yaml:"log"`
}

// Server holds HTTP server settings.
type Server struct {
	Port            int           `yaml:"port"`             // default: 8317
	APIKey          string        `yaml:"api_key"`          // inbound bearer token, empty disables the check
	APIKeyFile      string        `yaml:"api_key_file"`     // _file variant for api_key
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`   // default: 10 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// Addr returns the listen address for the configured port.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Auth holds upstream credential settings.
type Auth struct {
	CredentialsFile string `yaml:"credentials_file"` // default: ~/.relais/oauth_creds.json
	ProjectID       string `yaml:"project_id"`       // optional, skips project discovery
}

// Backend holds upstream endpoint settings.
type Backend struct {
	// Hosts overrides the built-in Code Assist endpoint list. Hosts are
	// tried in order; mainly useful for pointing at a mock backend.
	Hosts []string `yaml:"hosts"`
}

// Log holds structured logging settings.
type Log struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            8317,
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: Auth{
			CredentialsFile: "~/.relais/oauth_creds.json",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}
