// Package track defines the playable unit handled by queues and rooms.
package track

import "time"

// Track is an immutable descriptor of a playable unit. The requester fields
// are attached once at enqueue time and never mutated afterwards; loop modes
// re-enqueue the same value.
type Track struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	DurationMS int64  `json:"duration_ms"` // 0 when unknown (live streams)
	ArtworkURL string `json:"artwork_url,omitempty"`
	Source     Source `json:"source"`

	// Requester identity, fixed at enqueue time.
	RequesterID   string `json:"requester_id,omitempty"`
	RequestedInCh string `json:"requested_in_channel,omitempty"`
}

// Duration returns the track length, or zero when unknown.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// IsLive reports whether the track has no known end.
func (t Track) IsLive() bool {
	return t.DurationMS == 0
}

// WithRequester returns a copy of the track with requester identity attached.
func (t Track) WithRequester(userID, channelID string) Track {
	t.RequesterID = userID
	t.RequestedInCh = channelID
	return t
}
