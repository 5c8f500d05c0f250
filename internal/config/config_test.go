package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dentsim/dentsim-backend/internal/data/repos/testutil"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testutil.Logger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Server.Port)
	}
	if cfg.Model.Name != "gemini-2.5-flash" || cfg.Model.TimeoutSeconds != 60 {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("Driver = %q", cfg.Database.Driver)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`
server:
  port: "9090"
model:
  name: gemini-2.0-flash
content:
  default_case_id: perio_001
database:
  driver: postgres
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, testutil.Logger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Server.Port)
	}
	if cfg.Model.Name != "gemini-2.0-flash" {
		t.Fatalf("Model = %q", cfg.Model.Name)
	}
	if cfg.Content.DefaultCaseID != "perio_001" {
		t.Fatalf("DefaultCaseID = %q", cfg.Content.DefaultCaseID)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Content.RulesPath != "data/scoring_rules.json" {
		t.Fatalf("RulesPath = %q", cfg.Content.RulesPath)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("Driver = %q", cfg.Database.Driver)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "15")
	t.Setenv("DEFAULT_CASE_ID", "behcet_01")

	cfg, err := Load(path, testutil.Logger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("Port = %q", cfg.Server.Port)
	}
	if cfg.Model.TimeoutSeconds != 15 {
		t.Fatalf("TimeoutSeconds = %d", cfg.Model.TimeoutSeconds)
	}
	if cfg.Content.DefaultCaseID != "behcet_01" {
		t.Fatalf("DefaultCaseID = %q", cfg.Content.DefaultCaseID)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path, testutil.Logger(t)); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
