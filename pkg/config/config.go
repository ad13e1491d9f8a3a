// Package config loads server configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/smart-mobility/smartcity-go/pkg/ai"
	"github.com/smart-mobility/smartcity-go/pkg/images"
)

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Graph      GraphConfig     `yaml:"graph"`
	Auth       AuthConfig      `yaml:"auth"`
	Model      ai.ClientConfig `yaml:"model"`
	Cloudinary images.Config   `yaml:"cloudinary"`
	Snapshot   SnapshotConfig  `yaml:"snapshot"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// GraphConfig holds the ontology file settings.
type GraphConfig struct {
	OntologyPath string `yaml:"ontology_path"`
	Watch        bool   `yaml:"watch"`
}

// AuthConfig holds the credential database settings.
type AuthConfig struct {
	DatabasePath  string `yaml:"database_path"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// SnapshotConfig controls the optional periodic graph snapshot job.
type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
	Path     string `yaml:"path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Graph: GraphConfig{
			OntologyPath: "data/ontologie.ttl",
		},
		Auth: AuthConfig{
			DatabasePath:  "data/auth.db",
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
		Model: ai.ClientConfig{
			Provider: ai.ProviderGemini,
			Timeout:  30,
		},
		Snapshot: SnapshotConfig{
			Schedule: "@hourly",
		},
	}
}

// Load reads the configuration file (when path is non-empty) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SMARTCITY_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SMARTCITY_PORT", c.Server.Port)
	c.Graph.OntologyPath = getEnv("SMARTCITY_ONTOLOGY", c.Graph.OntologyPath)
	c.Auth.DatabasePath = getEnv("SMARTCITY_AUTH_DB", c.Auth.DatabasePath)
	c.Auth.AdminUsername = getEnv("SMARTCITY_ADMIN_USER", c.Auth.AdminUsername)
	c.Auth.AdminPassword = getEnv("SMARTCITY_ADMIN_PASSWORD", c.Auth.AdminPassword)
	c.Model.APIKey = getEnv("GEMINI_API_KEY", c.Model.APIKey)
	c.Model.Model = getEnv("GEMINI_MODEL", c.Model.Model)
	c.Cloudinary.CloudName = getEnv("CLOUDINARY_CLOUD_NAME", c.Cloudinary.CloudName)
	c.Cloudinary.APIKey = getEnv("CLOUDINARY_API_KEY", c.Cloudinary.APIKey)
	c.Cloudinary.APISecret = getEnv("CLOUDINARY_API_SECRET", c.Cloudinary.APISecret)
}

// Validate checks settings that would otherwise only fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Graph.OntologyPath == "" {
		return fmt.Errorf("graph.ontology_path is required")
	}
	if c.Snapshot.Enabled && c.Snapshot.Schedule == "" {
		return fmt.Errorf("snapshot.schedule is required when snapshots are enabled")
	}
	return nil
}

// Addr returns the listener address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
