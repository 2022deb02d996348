package types

// RouteRequest is a routing call: resolve a capability to a backend and
// dispatch the payload with fallback.
type RouteRequest struct {
	// Capability to serve.
	// example: chat
	Capability string `json:"capability" example:"chat"`
	// Prompt or payload forwarded to the chosen backend.
	// example: Summarize this meeting transcript.
	Payload string `json:"payload" example:"Summarize this meeting transcript."`
	// Scheduling priority; higher wins memory admission.
	// example: 5
	Priority int `json:"priority,omitempty" example:"5"`
	// Overall deadline for the request.
	// example: 30s
	Deadline Duration `json:"deadline,omitempty" swaggertype:"string" example:"30s"`
	// Explicit ordered fallback chain of backend ids. When empty the
	// registry's resolution order is used.
	FallbackChain []string `json:"fallback_chain,omitempty"`
	// Maximum tokens to generate.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
}

// RouteAttempt records one candidate tried during routing.
type RouteAttempt struct {
	// Backend id tried.
	// example: llama-8b-local
	Backend string `json:"backend" example:"llama-8b-local"`
	// Why the candidate was skipped or failed; empty on the winning attempt.
	// example: unhealthy
	Reason string `json:"reason,omitempty" example:"unhealthy"`
}

// RouteResponse is the result of a routed request.
type RouteResponse struct {
	// Request id assigned by the router.
	// example: 6f1c0e1a-9c2d-4b5e-8f00-0a1b2c3d4e5f
	RequestID string `json:"request_id" example:"6f1c0e1a-9c2d-4b5e-8f00-0a1b2c3d4e5f"`
	// Backend that actually served the request.
	// example: cloud-gpt
	BackendUsed string `json:"backend_used" example:"cloud-gpt"`
	// Cost class of the serving backend.
	// example: 2
	Cost int `json:"cost" example:"2"`
	// End-to-end latency in milliseconds.
	// example: 412
	LatencyMS int64 `json:"latency_ms" example:"412"`
	// Generated result.
	Result string `json:"result"`
	// Candidates tried before the winner, in order.
	Attempts []RouteAttempt `json:"attempts,omitempty"`
}

// AllocationStatus describes one resident allocation for /status.
type AllocationStatus struct {
	// Model id owning the allocation.
	// example: llama-8b-local
	ModelID string `json:"model_id" example:"llama-8b-local"`
	// Allocated bytes, in MB.
	// example: 10240
	SizeMB int64 `json:"size_mb" example:"10240"`
	// Priority the allocation was granted at.
	// example: 5
	Priority int `json:"priority" example:"5"`
	// Last time the allocation was used (unix seconds).
	// example: 1700000000
	LastUsedUnix int64 `json:"last_used_unix" example:"1700000000"`
}

// LedgerStatus is the memory scheduler's view for /status.
type LedgerStatus struct {
	// Total budget in MB.
	// example: 16384
	BudgetMB int64 `json:"budget_mb" example:"16384"`
	// Currently allocated MB.
	// example: 10240
	AllocatedMB int64 `json:"allocated_mb" example:"10240"`
	// Resident allocations.
	Allocations []AllocationStatus `json:"allocations,omitempty"`
	// Requests waiting for memory.
	// example: 1
	QueueLen int `json:"queue_len" example:"1"`
	// Evictions performed since start.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
}

// ServiceStatus pairs a descriptor with its live health record.
type ServiceStatus struct {
	Descriptor ServiceDescriptor `json:"descriptor"`
	Health     HealthRecord      `json:"health"`
	// Whether the service and all its dependencies are healthy.
	// example: true
	EffectiveHealthy bool `json:"effective_healthy" example:"true"`
}

// StageReport describes one boot stage outcome.
type StageReport struct {
	// Stage index, zero-based.
	// example: 0
	Stage int `json:"stage" example:"0"`
	// Services started in this stage.
	Services []string `json:"services"`
	// Services that failed to become healthy within the stage timeout.
	Unhealthy []string `json:"unhealthy,omitempty"`
	// Stage duration in milliseconds.
	// example: 1500
	DurationMS int64 `json:"duration_ms" example:"1500"`
}

// BootReport is the record of the last boot attempt.
type BootReport struct {
	// Whether every stage completed.
	// example: true
	Completed bool `json:"completed" example:"true"`
	// Per-stage outcomes, in order.
	Stages []StageReport `json:"stages,omitempty"`
	// Boot start time (unix seconds).
	// example: 1700000000
	StartedUnix int64 `json:"started_unix,omitempty" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Registered services and their health.
	Services []ServiceStatus `json:"services"`
	// Memory ledger view.
	Ledger LedgerStatus `json:"ledger"`
	// Last boot report, if a boot has run.
	Boot *BootReport `json:"boot,omitempty"`
	// Escalation alerts emitted since start.
	// example: 1
	EscalationsTotal uint64 `json:"escalations_total" example:"1"`
	// Uptime of the supervisor in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ModelsResponse wraps the registry catalogue returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ServicesResponse wraps GET /services.
type ServicesResponse struct {
	Services []ServiceStatus `json:"services"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: cycle detected: infra -> app
	Error string `json:"error" example:"cycle detected: infra -> app"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}
