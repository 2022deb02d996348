package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"aegisd/internal/common/fsutil"
	"aegisd/pkg/types"
)

// Guardian holds health-probing parameters.
// Zero values mean "unspecified" and are replaced by defaults downstream.
type Guardian struct {
	ProbeInterval   types.Duration `json:"probe_interval" yaml:"probe_interval" toml:"probe_interval"`
	ProbeTimeout    types.Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	HeartbeatFactor int            `json:"heartbeat_factor" yaml:"heartbeat_factor" toml:"heartbeat_factor"`
}

// Boot holds sequencer parameters.
type Boot struct {
	StageTimeout types.Duration `json:"stage_timeout" yaml:"stage_timeout" toml:"stage_timeout"`
	DrainTimeout types.Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
}

// Memory holds accelerator budget parameters.
type Memory struct {
	BudgetMB      int64          `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	AgingInterval types.Duration `json:"aging_interval" yaml:"aging_interval" toml:"aging_interval"`
}

// Activity configures the optional audit log.
type Activity struct {
	DBPath string `json:"db_path" yaml:"db_path" toml:"db_path"`
	Size   int    `json:"size" yaml:"size" toml:"size"`
}

// Alerts configures the escalation webhook.
type Alerts struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" toml:"webhook_url"`
}

// CORS configures cross-origin access for the HTTP API.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Edge is one declared dependency: Dependent requires DependsOn.
type Edge struct {
	Dependent string `json:"dependent" yaml:"dependent" toml:"dependent"`
	DependsOn string `json:"depends_on" yaml:"depends_on" toml:"depends_on"`
}

// Config holds all startup parameters for the supervisor.
type Config struct {
	Addr     string                    `json:"addr" yaml:"addr" toml:"addr"`
	Memory   Memory                    `json:"memory" yaml:"memory" toml:"memory"`
	Models   []types.Model             `json:"models" yaml:"models" toml:"models"`
	Services []types.ServiceDescriptor `json:"services" yaml:"services" toml:"services"`
	Edges    []Edge                    `json:"edges" yaml:"edges" toml:"edges"`
	Guardian Guardian                  `json:"guardian" yaml:"guardian" toml:"guardian"`
	Boot     Boot                      `json:"boot" yaml:"boot" toml:"boot"`
	Activity Activity                  `json:"activity" yaml:"activity" toml:"activity"`
	Alerts   Alerts                    `json:"alerts" yaml:"alerts" toml:"alerts"`
	CORS     CORS                      `json:"cors" yaml:"cors" toml:"cors"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate rejects configurations that must halt startup: duplicate ids,
// edges naming unknown services, and probe timing that cannot work.
func Validate(cfg Config) error {
	models := make(map[string]struct{}, len(cfg.Models))
	for _, m := range cfg.Models {
		if m.ID == "" {
			return fmt.Errorf("model with empty id")
		}
		if _, dup := models[m.ID]; dup {
			return fmt.Errorf("duplicate model id: %s", m.ID)
		}
		models[m.ID] = struct{}{}
	}
	services := make(map[string]struct{}, len(cfg.Services))
	for _, s := range cfg.Services {
		if s.ID == "" {
			return fmt.Errorf("service with empty id")
		}
		if _, dup := services[s.ID]; dup {
			return fmt.Errorf("duplicate service id: %s", s.ID)
		}
		services[s.ID] = struct{}{}
	}
	for _, s := range cfg.Services {
		for _, dep := range s.DependsOn {
			if _, ok := services[dep]; !ok {
				return fmt.Errorf("service %s depends on unknown service %s", s.ID, dep)
			}
		}
	}
	for _, e := range cfg.Edges {
		if _, ok := services[e.Dependent]; !ok {
			return fmt.Errorf("edge references unknown service %s", e.Dependent)
		}
		if _, ok := services[e.DependsOn]; !ok {
			return fmt.Errorf("edge references unknown service %s", e.DependsOn)
		}
	}
	if cfg.Guardian.ProbeTimeout.Std() > 0 && cfg.Guardian.ProbeInterval.Std() > 0 &&
		cfg.Guardian.ProbeTimeout.Std() >= cfg.Guardian.ProbeInterval.Std() {
		return fmt.Errorf("probe_timeout must be shorter than probe_interval")
	}
	return nil
}
