package types

// GenerateRequest is the POST /generate payload. The embedded parameters are
// merged over the server's defaults before validation.
type GenerateRequest struct {
	InferenceParams
}

// BatchGenerateRequest is the POST /batch payload.
type BatchGenerateRequest struct {
	Requests []BatchRequest `json:"requests"`
}

// BatchGenerateResponse wraps the per-item outcomes of POST /batch.
type BatchGenerateResponse struct {
	Results []BatchResult `json:"results"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Current engine lifecycle state.
	// example: idle
	State string `json:"state" example:"idle"`
	// Model currently bound to the engine, if any.
	Model *Model `json:"model,omitempty"`
	// Requests currently executing.
	ActiveInferences int `json:"active_inferences"`
	// Admission slots in use / total.
	InflightSlots int `json:"inflight_slots"`
	MaxConcurrent int `json:"max_concurrent"`
	// Whether the pause flag is raised.
	Paused bool `json:"paused"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
