package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("unexpected default port %d", cfg.Server.Port)
	}
	if cfg.Graph.OntologyPath != "data/ontologie.ttl" {
		t.Errorf("unexpected default ontology path %q", cfg.Graph.OntologyPath)
	}
	if cfg.Auth.AdminUsername != "admin" {
		t.Errorf("unexpected default admin %q", cfg.Auth.AdminUsername)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
graph:
  ontology_path: /tmp/graph.ttl
  watch: true
snapshot:
  enabled: true
  schedule: "0 * * * *"
  path: /tmp/snapshot.ttl
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.Graph.Watch {
		t.Error("watch flag not loaded")
	}
	if !cfg.Snapshot.Enabled || cfg.Snapshot.Schedule != "0 * * * *" {
		t.Errorf("snapshot config not loaded: %+v", cfg.Snapshot)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SMARTCITY_PORT", "9001")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("env port override ignored: %d", cfg.Server.Port)
	}
	if cfg.Model.APIKey != "env-key" {
		t.Errorf("env API key override ignored: %q", cfg.Model.APIKey)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative port")
	}
}
