// Package config loads the application configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dentsim/dentsim-backend/internal/platform/logger"
	"github.com/dentsim/dentsim-backend/internal/utils"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Content  ContentConfig  `yaml:"content"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// ModelConfig configures the external language model boundary.
type ModelConfig struct {
	Name string `yaml:"name"`
	// Endpoint is the API base URL; empty means the provider default.
	Endpoint       string  `yaml:"endpoint"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// ContentConfig points at the static case and rule tables.
type ContentConfig struct {
	RulesPath string `yaml:"rules_path"`
	CasesPath string `yaml:"cases_path"`
	// DefaultCaseID is the case assigned to brand-new sessions when none is
	// requested. Empty falls back to the first case in the case table.
	DefaultCaseID string `yaml:"default_case_id"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
	// SQLitePath is the database file for the sqlite driver;
	// ":memory:" keeps everything in process.
	SQLitePath string `yaml:"sqlite_path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Model: ModelConfig{
			Name:           "gemini-2.5-flash",
			Temperature:    0.2,
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		Content: ContentConfig{
			RulesPath: "data/scoring_rules.json",
			CasesPath: "data/case_scenarios.json",
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "simulator.db",
		},
	}
}

// Load reads path (when non-empty and present) over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string, log *logger.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			if log != nil {
				log.Warn("Config file not found, using defaults", "path", path)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Server.Port = utils.GetEnv("PORT", cfg.Server.Port, log)
	cfg.Model.Name = utils.GetEnv("GEMINI_MODEL", cfg.Model.Name, log)
	cfg.Model.Endpoint = utils.GetEnv("GEMINI_BASE_URL", cfg.Model.Endpoint, log)
	cfg.Model.TimeoutSeconds = utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", cfg.Model.TimeoutSeconds, log)
	cfg.Model.MaxRetries = utils.GetEnvAsInt("GEMINI_MAX_RETRIES", cfg.Model.MaxRetries, log)
	cfg.Model.Temperature = utils.GetEnvAsFloat("GEMINI_TEMPERATURE", cfg.Model.Temperature, log)
	cfg.Content.RulesPath = utils.GetEnv("SCORING_RULES_PATH", cfg.Content.RulesPath, log)
	cfg.Content.CasesPath = utils.GetEnv("CASE_SCENARIOS_PATH", cfg.Content.CasesPath, log)
	cfg.Content.DefaultCaseID = utils.GetEnv("DEFAULT_CASE_ID", cfg.Content.DefaultCaseID, log)
	cfg.Database.Driver = utils.GetEnv("DB_DRIVER", cfg.Database.Driver, log)
	cfg.Database.SQLitePath = utils.GetEnv("SQLITE_PATH", cfg.Database.SQLitePath, log)

	return cfg, nil
}
