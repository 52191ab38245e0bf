package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, RELAIS_CONFIG env, ./config.yaml, /etc/relais/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := expandCredentialsPath(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. RELAIS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/relais/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("RELAIS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/relais/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps RELAIS_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RELAIS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RELAIS_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("RELAIS_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("RELAIS_CREDENTIALS_FILE"); v != "" {
		cfg.Auth.CredentialsFile = v
	}
	if v := os.Getenv("RELAIS_PROJECT_ID"); v != "" {
		cfg.Auth.ProjectID = v
	}
	if v := os.Getenv("RELAIS_BACKEND_HOSTS"); v != "" {
		var hosts []string
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		if len(hosts) > 0 {
			cfg.Backend.Hosts = hosts
		}
	}
	if v := os.Getenv("RELAIS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RELAIS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. The file field only applies when the value field is empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Server.APIKeyFile != "" && cfg.Server.APIKey == "" {
		val, err := readSecretFile(cfg.Server.APIKeyFile)
		if err != nil {
			return fmt.Errorf("server.api_key_file: %w", err)
		}
		cfg.Server.APIKey = val
	}
	return nil
}

// expandCredentialsPath resolves a leading "~/" in auth.credentials_file
// against the current user's home directory.
func expandCredentialsPath(cfg *Config) error {
	path := cfg.Auth.CredentialsFile
	if !strings.HasPrefix(path, "~/") {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving auth.credentials_file: %w", err)
	}
	cfg.Auth.CredentialsFile = filepath.Join(home, path[2:])
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
