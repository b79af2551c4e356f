package backend

import (
	"fmt"

	"github.com/audioroom/maestro/internal/track"
)

// EndReason explains why a track stopped rendering.
type EndReason string

// End reason constants mirror the backend's track-end semantics.
const (
	// EndFinished indicates natural end of the track.
	EndFinished EndReason = "finished"

	// EndLoadFailed indicates the backend could not load the track.
	EndLoadFailed EndReason = "load_failed"

	// EndStopped indicates the track was terminated on request.
	EndStopped EndReason = "stopped"

	// EndReplaced indicates a new render directive superseded the track.
	EndReplaced EndReason = "replaced"
)

// String implements fmt.Stringer.
func (r EndReason) String() string {
	return string(r)
}

// IsValid checks whether the end reason is known.
func (r EndReason) IsValid() bool {
	switch r {
	case EndFinished, EndLoadFailed, EndStopped, EndReplaced:
		return true
	default:
		return false
	}
}

// MayAdvance reports whether this reason participates in loop re-insertion
// before auto-advance. Stopped and Replaced never re-insert.
func (r EndReason) MayAdvance() bool {
	return r == EndFinished || r == EndLoadFailed
}

// ParseEndReason parses a string into an EndReason.
func ParseEndReason(s string) (EndReason, error) {
	r := EndReason(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid end reason: %q", s)
	}
	return r, nil
}

// Event is a lifecycle notification from the rendering backend. Exactly one
// of the typed payloads below implements it.
type Event interface {
	// RoomID identifies the room the event targets; empty for node-scoped
	// events.
	EventRoomID() string
}

// TrackStartEvent fires when the backend begins rendering a track.
type TrackStartEvent struct {
	RoomID string
	Track  track.Track
}

// TrackEndEvent fires when a track stops rendering for any reason.
type TrackEndEvent struct {
	RoomID string
	Track  track.Track
	Reason EndReason
}

// TrackExceptionEvent fires when rendering hit an error mid-track.
type TrackExceptionEvent struct {
	RoomID string
	Track  track.Track
	Err    string
}

// TrackStuckEvent fires when the backend made no progress for ThresholdMS.
type TrackStuckEvent struct {
	RoomID      string
	Track       track.Track
	ThresholdMS int64
}

// NodeReadyEvent fires when the rendering node (re)establishes its link.
type NodeReadyEvent struct{}

// NodeDisconnectedEvent fires when the rendering node link drops.
type NodeDisconnectedEvent struct {
	Code   int
	Reason string
}

func (e TrackStartEvent) EventRoomID() string     { return e.RoomID }
func (e TrackEndEvent) EventRoomID() string       { return e.RoomID }
func (e TrackExceptionEvent) EventRoomID() string { return e.RoomID }
func (e TrackStuckEvent) EventRoomID() string     { return e.RoomID }
func (e NodeReadyEvent) EventRoomID() string      { return "" }
func (e NodeDisconnectedEvent) EventRoomID() string {
	return ""
}
