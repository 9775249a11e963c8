package playback

// State is the lifecycle state of a Player.
type State int

const (
	StateStopped State = iota
	StateBuffering
	StatePlaying
	StatePaused
	StateFinished
	StateDisposed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// active reports whether a session is running in this state.
func (s State) active() bool {
	return s == StateBuffering || s == StatePlaying || s == StatePaused
}
