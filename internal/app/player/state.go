// Package player implements the per-guild playback session state machine.
package player

// State represents the playback state of a session.
type State int

const (
	StateIdle       State = iota // No output binding or queue exhausted
	StateConnecting              // Output binding requested, not yet playing
	StatePlaying                 // Track is playing
	StatePaused                  // Track is paused
	StateStalled                 // Output lost unexpectedly, awaiting manual recovery
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// LoopMode governs the advance transition after a track ends.
type LoopMode int

const (
	LoopNone LoopMode = iota // Played tracks move into history
	LoopOne                  // Replay the current track
	LoopAll                  // Finished tracks are re-enqueued at the tail
)

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopOne:
		return "one"
	case LoopAll:
		return "all"
	default:
		return "none"
	}
}

// Next cycles none -> one -> all -> none.
func (m LoopMode) Next() LoopMode {
	return (m + 1) % 3
}
