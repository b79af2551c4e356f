// Package idle implements the inactivity supervisor: a per-room,
// single-flight delayed check that tears an idle room down.
package idle

import (
	"sync"
	"time"

	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/metrics"
)

// CheckFunc re-examines a room after the delay elapsed. It runs on the
// timer goroutine and must route any state access through the room loop.
type CheckFunc func(roomID string)

// Supervisor owns at most one live timer per room. Arming replaces and
// cancels the predecessor, never appends.
type Supervisor struct {
	check CheckFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	gen    map[string]uint64
}

// NewSupervisor creates a supervisor firing check after each armed delay.
func NewSupervisor(check CheckFunc) *Supervisor {
	return &Supervisor{
		check:  check,
		timers: make(map[string]*time.Timer),
		gen:    make(map[string]uint64),
	}
}

// Arm schedules a check for the room after delay, cancelling any timer armed
// earlier for the same room.
func (s *Supervisor) Arm(roomID string, delay time.Duration) {
	s.mu.Lock()
	if old, ok := s.timers[roomID]; ok {
		old.Stop()
	}
	s.gen[roomID]++
	gen := s.gen[roomID]
	s.timers[roomID] = time.AfterFunc(delay, func() {
		s.fire(roomID, gen)
	})
	s.mu.Unlock()

	metrics.IdleTimersArmedTotal.Inc()
	lg := log.WithRoom("idle", roomID)
	lg.Debug().
		Str(log.FieldEvent, "idle.armed").
		Dur("delay", delay).
		Msg("inactivity timer armed")
}

// Disarm cancels the room's timer if one is armed. Disarming an absent or
// already-fired timer is a no-op.
func (s *Supervisor) Disarm(roomID string) {
	s.mu.Lock()
	t, ok := s.timers[roomID]
	if ok {
		t.Stop()
		delete(s.timers, roomID)
		s.gen[roomID]++
	}
	s.mu.Unlock()

	if ok {
		lg := log.WithRoom("idle", roomID)
		lg.Debug().
			Str(log.FieldEvent, "idle.disarmed").
			Msg("inactivity timer disarmed")
	}
}

// Armed reports whether the room currently has a live timer.
func (s *Supervisor) Armed(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[roomID]
	return ok
}

// StopAll cancels every timer, for shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		s.gen[id]++
	}
}

func (s *Supervisor) fire(roomID string, gen uint64) {
	s.mu.Lock()
	// A timer that was replaced or disarmed after scheduling loses the
	// generation race and must not run its check.
	if s.gen[roomID] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, roomID)
	s.mu.Unlock()

	s.check(roomID)
}
