package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"aegisd/pkg/types"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const yamlCfg = `addr: :9999
memory:
  budget_mb: 16384
  aging_interval: 10s
models:
  - id: llama-local
    locality: local
    capabilities: [chat]
    est_mem_mb: 10240
    cost_class: 0
    endpoint: http://127.0.0.1:30001
  - id: cloud-gpt
    locality: remote
    capabilities: [chat]
    cost_class: 2
services:
  - id: infra
    kind: infrastructure
    health_url: http://127.0.0.1:9200/healthz
  - id: app
    kind: client
    health_url: http://127.0.0.1:9300/healthz
    depends_on: [infra]
    restart:
      max_attempts: 3
      backoff: 500ms
guardian:
  probe_interval: 30s
  probe_timeout: 2s
  heartbeat_factor: 4
boot:
  stage_timeout: 60s
`

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", yamlCfg)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Memory.BudgetMB != 16384 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Models) != 2 || cfg.Models[0].ID != "llama-local" || cfg.Models[1].Locality != types.LocalityRemote {
		t.Fatalf("unexpected models: %+v", cfg.Models)
	}
	if len(cfg.Services) != 2 || cfg.Services[1].DependsOn[0] != "infra" {
		t.Fatalf("unexpected services: %+v", cfg.Services)
	}
	if cfg.Services[1].Restart.Backoff.Std() != 500*time.Millisecond {
		t.Fatalf("backoff not parsed: %v", cfg.Services[1].Restart.Backoff)
	}
	if cfg.Guardian.ProbeInterval.Std() != 30*time.Second || cfg.Guardian.HeartbeatFactor != 4 {
		t.Fatalf("unexpected guardian cfg: %+v", cfg.Guardian)
	}
	if cfg.Boot.StageTimeout.Std() != time.Minute {
		t.Fatalf("unexpected boot cfg: %+v", cfg.Boot)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"addr":":7070","memory":{"budget_mb":42},"guardian":{"probe_interval":"15s"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Memory.BudgetMB != 42 || cfg.Guardian.ProbeInterval.Std() != 15*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\n[memory]\nbudget_mb=9\n[boot]\nstage_timeout=\"45s\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.Memory.BudgetMB != 9 || cfg.Boot.StageTimeout.Std() != 45*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	bad := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func validCfg() Config {
	return Config{
		Models: []types.Model{{ID: "m1"}, {ID: "m2"}},
		Services: []types.ServiceDescriptor{
			{ID: "infra"},
			{ID: "app", DependsOn: []string{"infra"}},
		},
		Edges: []Edge{{Dependent: "app", DependsOn: "infra"}},
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validCfg()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"duplicate model", func(c *Config) { c.Models = append(c.Models, types.Model{ID: "m1"}) }},
		{"duplicate service", func(c *Config) { c.Services = append(c.Services, types.ServiceDescriptor{ID: "app"}) }},
		{"empty model id", func(c *Config) { c.Models = append(c.Models, types.Model{}) }},
		{"unknown dep", func(c *Config) { c.Services[1].DependsOn = []string{"ghost"} }},
		{"unknown edge endpoint", func(c *Config) { c.Edges = append(c.Edges, Edge{Dependent: "app", DependsOn: "ghost"}) }},
		{"probe timeout too long", func(c *Config) {
			c.Guardian.ProbeInterval = types.Duration(time.Second)
			c.Guardian.ProbeTimeout = types.Duration(2 * time.Second)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validCfg()
			tc.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
