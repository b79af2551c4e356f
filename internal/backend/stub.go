package backend

import (
	"context"
	"sync"

	"github.com/audioroom/maestro/internal/track"
	"github.com/google/uuid"
)

// Stub is an in-memory Client used in virtual mode and tests. Search results
// are scripted per query; render directives immediately emit TrackStart, and
// tests drive the rest of the lifecycle through the Emit helpers.
type Stub struct {
	mu        sync.Mutex
	results   map[string]SearchResult
	current   map[string]track.Track
	handles   map[string]string
	paused    map[string]bool
	volume    map[string]int
	filters   map[string]FilterConfig
	down      bool
	autoStart bool

	events chan Event
	closed bool
}

// NewStub creates a stub backend. With autoStart, Play emits TrackStart on
// its own, which is what virtual mode and most tests want.
func NewStub(autoStart bool) *Stub {
	return &Stub{
		results:   make(map[string]SearchResult),
		current:   make(map[string]track.Track),
		handles:   make(map[string]string),
		paused:    make(map[string]bool),
		volume:    make(map[string]int),
		filters:   make(map[string]FilterConfig),
		autoStart: autoStart,
		events:    make(chan Event, 64),
	}
}

// Script registers the search result returned for query.
func (s *Stub) Script(query string, res SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[query] = res
}

// SetDown toggles simulated node loss for subsequent calls.
func (s *Stub) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *Stub) Search(_ context.Context, query string) (SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return SearchResult{}, ErrUnavailable
	}
	res, ok := s.results[query]
	if !ok || res.Kind == ResultEmpty || len(res.Tracks) == 0 {
		return SearchResult{Kind: ResultEmpty}, ErrNoResults
	}
	return res, nil
}

func (s *Stub) Connect(_ context.Context, roomID, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return "", ErrUnavailable
	}
	h := uuid.NewString()
	s.handles[roomID] = h
	_ = channelID
	return h, nil
}

func (s *Stub) Disconnect(_ context.Context, roomID, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles[roomID] != handle {
		return nil // already gone, disconnect is idempotent
	}
	delete(s.handles, roomID)
	delete(s.current, roomID)
	return nil
}

func (s *Stub) Play(_ context.Context, roomID string, t track.Track) error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return ErrUnavailable
	}
	prev, hadPrev := s.current[roomID]
	s.current[roomID] = t
	s.paused[roomID] = false
	auto := s.autoStart
	s.mu.Unlock()

	if hadPrev {
		s.emit(TrackEndEvent{RoomID: roomID, Track: prev, Reason: EndReplaced})
	}
	if auto {
		s.emit(TrackStartEvent{RoomID: roomID, Track: t})
	}
	return nil
}

func (s *Stub) Stop(_ context.Context, roomID string) error {
	s.mu.Lock()
	cur, ok := s.current[roomID]
	delete(s.current, roomID)
	s.mu.Unlock()
	if ok {
		s.emit(TrackEndEvent{RoomID: roomID, Track: cur, Reason: EndStopped})
	}
	return nil
}

func (s *Stub) SetPaused(_ context.Context, roomID string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrUnavailable
	}
	s.paused[roomID] = paused
	return nil
}

func (s *Stub) SetVolume(_ context.Context, roomID string, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrUnavailable
	}
	s.volume[roomID] = percent
	return nil
}

func (s *Stub) SetFilter(_ context.Context, roomID string, cfg FilterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrUnavailable
	}
	s.filters[roomID] = cfg
	return nil
}

func (s *Stub) Events() <-chan Event {
	return s.events
}

// Current returns the track the stub believes is rendering for the room.
func (s *Stub) Current(roomID string) (track.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.current[roomID]
	return t, ok
}

// Volume returns the last volume set for the room.
func (s *Stub) Volume(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume[roomID]
}

// Filter returns the last filter config set for the room.
func (s *Stub) Filter(roomID string) FilterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters[roomID]
}

// FinishCurrent simulates natural end of the rendering track.
func (s *Stub) FinishCurrent(roomID string) {
	s.mu.Lock()
	cur, ok := s.current[roomID]
	delete(s.current, roomID)
	s.mu.Unlock()
	if ok {
		s.emit(TrackEndEvent{RoomID: roomID, Track: cur, Reason: EndFinished})
	}
}

// Emit injects an arbitrary lifecycle event, for tests.
func (s *Stub) Emit(e Event) {
	s.emit(e)
}

// Close shuts the event stream down.
func (s *Stub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *Stub) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		// Test-only transport; dropping beats blocking a room loop.
	}
}
