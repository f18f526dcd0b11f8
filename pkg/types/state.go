package types

// State is the engine lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateStreaming       State = "streaming"
	StateBatchProcessing State = "batch_processing"
	StatePaused          State = "paused"
	StateError           State = "error"
)

// Active reports whether the state represents in-flight work.
func (s State) Active() bool {
	switch s {
	case StateRunning, StateStreaming, StateBatchProcessing:
		return true
	}
	return false
}
