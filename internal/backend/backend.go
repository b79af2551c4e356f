// Package backend defines the contract with the remote audio-rendering
// service. The orchestrator only ever talks to the Client interface; the
// wire protocol lives behind it.
package backend

import (
	"context"
	"errors"

	"github.com/audioroom/maestro/internal/track"
)

var (
	// ErrUnavailable is returned when the rendering node is not reachable.
	ErrUnavailable = errors.New("rendering backend unavailable")

	// ErrNoResults is returned when a search matched nothing.
	ErrNoResults = errors.New("no results")
)

// ResultKind tags what a search resolved to.
type ResultKind string

const (
	ResultTrack    ResultKind = "track"
	ResultPlaylist ResultKind = "playlist"
	ResultEmpty    ResultKind = "empty"
)

// SearchResult carries either a single track or a playlist of tracks.
type SearchResult struct {
	Kind         ResultKind
	Tracks       []track.Track
	PlaylistName string
}

// FilterConfig describes the DSP filter chain strength applied server-side.
type FilterConfig struct {
	Preset string `json:"preset"` // off, low, medium, high
}

// Client is the rendering backend as seen by the orchestrator. All calls are
// room-scoped except Search and Events. Implementations must be safe for
// concurrent use by multiple room loops.
type Client interface {
	Search(ctx context.Context, query string) (SearchResult, error)

	// Connect binds the backend to a voice channel and returns an opaque
	// connection handle used for Disconnect.
	Connect(ctx context.Context, roomID, channelID string) (string, error)
	Disconnect(ctx context.Context, roomID, handle string) error

	Play(ctx context.Context, roomID string, t track.Track) error
	Stop(ctx context.Context, roomID string) error
	SetPaused(ctx context.Context, roomID string, paused bool) error
	SetVolume(ctx context.Context, roomID string, percent int) error
	SetFilter(ctx context.Context, roomID string, cfg FilterConfig) error

	// Events returns the stream of lifecycle events emitted by the backend.
	// The channel is closed when the backend shuts down.
	Events() <-chan Event
}
