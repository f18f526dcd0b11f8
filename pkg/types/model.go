package types

// Model represents a discoverable NPU model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: qwen2-1.5b-w8a8
	ID string `json:"id" example:"qwen2-1.5b-w8a8"`
	// Human-friendly name.
	// example: Qwen2 1.5B (W8A8)
	Name string `json:"name" example:"Qwen2 1.5B (W8A8)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2-1.5b-w8a8.rkllm
	Path string `json:"path" example:"/home/user/models/qwen2-1.5b-w8a8.rkllm"`
	// Quantization level or variant string.
	// example: w8a8
	Quant string `json:"quant" example:"w8a8"`
	// Optional family (e.g., qwen, llama, phi).
	// example: qwen
	Family string `json:"family,omitempty" example:"qwen"`
}
