// Package config defines the top-level application configuration and the
// Loader that reads it from disk, modeled on the teacher's
// internal/config/config.go: a plain struct with yaml+json tags, default
// path resolution under the user's config directory, and an explicit
// Validate step rather than validation scattered through the loader.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level application configuration, loaded from
// ~/.config/sentinel/config.yaml and never committed with real secrets —
// every field that would otherwise hold a credential instead holds a
// credential_ref resolved at runtime through internal/secrets.
type Config struct {
	Graph      GraphConfig      `yaml:"graph"      json:"graph"`
	Postgres   PostgresConfig   `yaml:"postgres"   json:"postgres"`
	Engram     EngramConfig     `yaml:"engram"     json:"engram"`
	Connectors []ConnectorEntry `yaml:"connectors" json:"connectors"`
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`
	Scan       ScanConfig       `yaml:"scan"       json:"scan"`
	LogLevel   string           `yaml:"log_level"  json:"log_level"`
}

// GraphConfig addresses the Neo4j graph backend.
type GraphConfig struct {
	URI             string        `yaml:"uri"              json:"uri"`
	Username        string        `yaml:"username"         json:"username"`
	PasswordRef     string        `yaml:"password_ref"     json:"password_ref"`
	MaxTransactionRetry time.Duration `yaml:"max_transaction_retry" json:"max_transaction_retry"`
}

// PostgresConfig addresses the relational app-state store.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// EngramConfig addresses the append-only session log.
type EngramConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// ConnectorEntry configures one instance of a connector to run.
type ConnectorEntry struct {
	Name          string            `yaml:"name"           json:"name"`
	Type          string            `yaml:"type"           json:"type"`
	TenantID      string            `yaml:"tenant_id"      json:"tenant_id"`
	CredentialRef string            `yaml:"credential_ref" json:"credential_ref"`
	Regions       []string          `yaml:"regions"        json:"regions"`
	Schedule      string            `yaml:"schedule"       json:"schedule"`
	Options       map[string]string `yaml:"options"        json:"options"`
}

// EnrichmentConfig configures the vulnerability-intelligence sweep.
type EnrichmentConfig struct {
	NVDAPIKeyRef    string        `yaml:"nvd_api_key_ref"    json:"nvd_api_key_ref"`
	KEVRefresh      time.Duration `yaml:"kev_refresh"        json:"kev_refresh"`
	SweepInterval   time.Duration `yaml:"sweep_interval"     json:"sweep_interval"`
	CPEMapPath      string        `yaml:"cpe_map_path"       json:"cpe_map_path"`
}

// ScanConfig configures the scan orchestrator's defaults.
type ScanConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout" json:"default_timeout"`
}

// Loader is the interface for reading Config from disk. The default
// implementation (FileLoader) reads ~/.config/sentinel/config.yaml.
type Loader interface {
	// Load reads, parses, and validates the configuration file.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}

// Validate checks the structural invariants a loaded Config must satisfy
// before anything is wired up from it. It never checks reachability of
// external systems (that's HealthCheck's job on the components themselves).
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return fmt.Errorf("config: graph.uri is required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	if c.Engram.Directory == "" {
		return fmt.Errorf("config: engram.directory is required")
	}
	seen := map[string]bool{}
	for _, conn := range c.Connectors {
		if conn.Name == "" {
			return fmt.Errorf("config: connector entry missing name")
		}
		if seen[conn.Name] {
			return fmt.Errorf("config: duplicate connector name %q", conn.Name)
		}
		seen[conn.Name] = true
		if conn.Type == "" {
			return fmt.Errorf("config: connector %q missing type", conn.Name)
		}
		if conn.TenantID == "" {
			return fmt.Errorf("config: connector %q missing tenant_id", conn.Name)
		}
	}
	return nil
}
