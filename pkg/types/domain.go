package types

import "time"

// Locality says where an inference backend runs.
type Locality string

const (
	LocalityLocal  Locality = "local"
	LocalityRemote Locality = "remote"
)

// Model describes an inference backend known to the registry.
type Model struct {
	// Stable identifier for the backend.
	// example: llama-8b-local
	ID string `json:"id" yaml:"id" toml:"id" example:"llama-8b-local"`
	// Human-friendly name.
	// example: Llama 3.1 8B (local)
	Name string `json:"name,omitempty" yaml:"name" toml:"name" example:"Llama 3.1 8B (local)"`
	// Where the backend runs: local (counts against the memory budget) or remote.
	// example: local
	Locality Locality `json:"locality" yaml:"locality" toml:"locality" example:"local"`
	// Capability tags this backend can serve.
	// example: ["chat","summarize"]
	Capabilities []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
	// Estimated accelerator memory footprint in MB. Zero for remote backends.
	// example: 10240
	EstMemMB int64 `json:"est_mem_mb,omitempty" yaml:"est_mem_mb" toml:"est_mem_mb" example:"10240"`
	// Cost class; 0 for local backends, higher is more expensive.
	// example: 2
	CostClass int `json:"cost_class" yaml:"cost_class" toml:"cost_class" example:"2"`
	// Relative throughput class; higher is faster.
	// example: 3
	ThroughputClass int `json:"throughput_class,omitempty" yaml:"throughput_class" toml:"throughput_class" example:"3"`
	// Base URL of the backend's OpenAI-compatible API.
	// example: http://127.0.0.1:30001
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint" toml:"endpoint" example:"http://127.0.0.1:30001"`
	// Environment variable holding the API key for remote backends.
	// example: OPENAI_API_KEY
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env" toml:"api_key_env" example:"OPENAI_API_KEY"`
	// Upstream model name passed to the backend; defaults to ID.
	// example: gpt-4o-mini
	UpstreamModel string `json:"upstream_model,omitempty" yaml:"upstream_model" toml:"upstream_model" example:"gpt-4o-mini"`
}

// Supports reports whether the model serves the given capability tag.
func (m Model) Supports(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ServiceKind classifies a registered service.
type ServiceKind string

const (
	KindBackend        ServiceKind = "backend"
	KindClient         ServiceKind = "client"
	KindInfrastructure ServiceKind = "infrastructure"
)

// ServiceState is the lifecycle state of a registered service.
type ServiceState string

const (
	StateUnknown  ServiceState = "unknown"
	StateBooting  ServiceState = "booting"
	StateHealthy  ServiceState = "healthy"
	StateDegraded ServiceState = "degraded"
	StateFailed   ServiceState = "failed"
	StateStopped  ServiceState = "stopped"
)

// RestartPolicy bounds automatic recovery for one service.
type RestartPolicy struct {
	// Maximum consecutive restart attempts before escalation.
	// example: 3
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts" toml:"max_attempts" example:"3"`
	// Base backoff between restart attempts; doubled per attempt.
	// example: 500ms
	Backoff Duration `json:"backoff,omitempty" yaml:"backoff" toml:"backoff" swaggertype:"string" example:"500ms"`
}

// ControlSpec says how the supervisor starts and stops a service.
type ControlSpec struct {
	// Controller type: http, docker, exec or none.
	// example: http
	Type string `json:"type,omitempty" yaml:"type" toml:"type" example:"http"`
	// Control server base URL (type=http).
	// example: http://127.0.0.1:9301
	URL string `json:"url,omitempty" yaml:"url" toml:"url" example:"http://127.0.0.1:9301"`
	// Container name or ID (type=docker).
	// example: aegis-llama
	Container string `json:"container,omitempty" yaml:"container" toml:"container" example:"aegis-llama"`
	// Command and args to spawn (type=exec).
	Command []string `json:"command,omitempty" yaml:"command" toml:"command"`
}

// ServiceDescriptor is what a client application registers with the supervisor.
type ServiceDescriptor struct {
	// Unique service id.
	// example: crm-dashboard
	ID string `json:"id" yaml:"id" toml:"id" example:"crm-dashboard"`
	// backend, client or infrastructure.
	// example: client
	Kind ServiceKind `json:"kind" yaml:"kind" toml:"kind" example:"client"`
	// URL probed by the health guardian; 2xx means alive.
	// example: http://127.0.0.1:9300/healthz
	HealthURL string `json:"health_url" yaml:"health_url" toml:"health_url" example:"http://127.0.0.1:9300/healthz"`
	// Service ids this service depends on.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on" toml:"depends_on"`
	// Bounded restart behavior on probe failure.
	Restart RestartPolicy `json:"restart,omitempty" yaml:"restart" toml:"restart"`
	// How the supervisor starts/stops this service.
	Control ControlSpec `json:"control,omitempty" yaml:"control" toml:"control"`
	// Accelerator memory footprint in MB, for backend services.
	// example: 10240
	EstMemMB int64 `json:"est_mem_mb,omitempty" yaml:"est_mem_mb" toml:"est_mem_mb" example:"10240"`
}

// HealthRecord is a point-in-time view of one service's probe history.
type HealthRecord struct {
	// Service id.
	// example: crm-dashboard
	ServiceID string `json:"service_id" example:"crm-dashboard"`
	// Current lifecycle state.
	// example: healthy
	State ServiceState `json:"state" example:"healthy"`
	// Last probe time (unix seconds); zero if never probed.
	// example: 1700000000
	LastProbeUnix int64 `json:"last_probe_unix,omitempty" example:"1700000000"`
	// Consecutive failed probes; reset on any success.
	// example: 0
	ConsecutiveFailures int `json:"consecutive_failures" example:"0"`
	// Restart attempts issued since the last successful probe.
	// example: 0
	RestartAttempts int `json:"restart_attempts" example:"0"`
}

// Duration is a time.Duration that marshals as a human-readable string
// ("30s", "500ms") in JSON, YAML and TOML config.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
