package player

import "github.com/mcarli/jambox/internal/domain/track"

// EventType represents a session event type.
type EventType int

const (
	EventTrackStarted   EventType = iota // Playback of the current track started
	EventTrackEnded                      // Track finished or errored out
	EventTrackDiscarded                  // Track dropped after failed resolution
	EventQueueEmpty                      // No playable track remains
	EventStateChanged                    // Pause/resume/stall or reset
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackDiscarded:
		return "track_discarded"
	case EventQueueEmpty:
		return "queue_empty"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a session event. Track is a copy of the track the event
// refers to and is nil for queue-level events.
type Event struct {
	Type  EventType
	Track *track.Track
	State State
}
