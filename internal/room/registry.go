package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Registry maps room IDs to live rooms. Creation runs the caller-supplied
// connect directive at most once per key, so concurrent first commands for
// the same room share one connection attempt; different keys never contend.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	group singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Get returns the room for id, or ErrNotConnected.
func (reg *Registry) Get(id string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	if !ok {
		return nil, ErrNotConnected
	}
	return r, nil
}

// GetOrCreate returns the existing room for id, or runs connect to build a
// fresh one. The created flag tags which path was taken. A failed connect
// registers nothing: callers never observe a half-constructed room.
func (reg *Registry) GetOrCreate(ctx context.Context, id string, connect func(context.Context) (*Room, error)) (*Room, bool, error) {
	reg.mu.RLock()
	if r, ok := reg.rooms[id]; ok {
		reg.mu.RUnlock()
		return r, false, nil
	}
	reg.mu.RUnlock()

	created := false
	v, err, _ := reg.group.Do(id, func() (interface{}, error) {
		reg.mu.RLock()
		if r, ok := reg.rooms[id]; ok {
			reg.mu.RUnlock()
			return r, nil
		}
		reg.mu.RUnlock()

		r, err := connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect room %s: %w", id, err)
		}

		reg.mu.Lock()
		reg.rooms[id] = r
		reg.mu.Unlock()

		created = true
		metrics.RoomsActive.Inc()
		lg := log.WithRoom("registry", id)
		lg.Info().
			Str(log.FieldEvent, "room.created").
			Str(log.FieldChannelID, r.VoiceChannelID).
			Msg("room registered")
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Room), created, nil
}

// Remove detaches and stops the room. Removing an absent room returns
// ErrNotConnected.
func (reg *Registry) Remove(id string) error {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if ok {
		delete(reg.rooms, id)
	}
	reg.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}
	r.Close()
	metrics.RoomsActive.Dec()
	lg := log.WithRoom("registry", id)
	lg.Info().
		Str(log.FieldEvent, "room.removed").
		Msg("room removed")
	return nil
}

// All returns a snapshot of the live rooms.
func (reg *Registry) All() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// Len returns the number of registered rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
