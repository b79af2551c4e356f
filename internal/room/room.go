// Package room holds the per-session playback aggregate and the process-wide
// registry. Each room owns one goroutine that applies commands and backend
// events strictly in arrival order; state fields are only ever touched from
// inside that loop.
package room

import (
	"context"
	"sync"

	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/metrics"
	"github.com/audioroom/maestro/internal/queue"
	"github.com/audioroom/maestro/internal/track"
	"github.com/rs/zerolog"
)

// State is the derived playback state of a room.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

const mailboxSize = 256

// Room is one independent playback session. All exported state fields belong
// to the room loop: read or write them only from inside a Do/Post task.
type Room struct {
	ID string

	Queue   *queue.Queue
	Current *track.Track
	Loop    LoopMode
	Paused  bool

	VoiceChannelID string
	TextChannelID  string
	Volume         int
	Filter         backend.FilterConfig

	// Handle is the backend connection handle returned by Connect.
	Handle string

	// NodeDown marks the rendering node link as lost; commands that need
	// the backend fail fast until NodeReady clears it.
	NodeDown bool

	logger zerolog.Logger

	tasks chan task
	stopc chan struct{}
	stop  sync.Once

	// sendMu orders task submission against Close: once closed is set
	// under the write lock, no further task can enter the mailbox, so the
	// drain in run observes every submitted task.
	sendMu sync.RWMutex
	closed bool
}

type task struct {
	fn   func()
	done chan struct{} // nil for posted (async) tasks
}

// New constructs a room and starts its loop.
func New(id, voiceChannelID, textChannelID string, capacity, volume int, handle string) *Room {
	r := &Room{
		ID:             id,
		Queue:          queue.New(capacity),
		Loop:           LoopOff,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		Volume:         volume,
		Handle:         handle,
		logger:         log.WithRoom("room", id),
		tasks:          make(chan task, mailboxSize),
		stopc:          make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case <-r.stopc:
			// Drain queued tasks so no Do caller is left waiting. The
			// tasks are not executed; their error stays ErrClosed.
			for {
				select {
				case t := <-r.tasks:
					if t.done != nil {
						close(t.done)
					}
				default:
					return
				}
			}
		case t := <-r.tasks:
			t.fn()
			if t.done != nil {
				close(t.done)
			}
		}
	}
}

// Do runs fn inside the room loop and waits for it. Tasks are applied in
// submission order, interleaved FIFO with posted events. Submitting to a
// closed room returns ErrClosed.
func (r *Room) Do(ctx context.Context, fn func() error) error {
	err := ErrClosed
	t := task{done: make(chan struct{})}
	t.fn = func() {
		err = fn()
	}

	r.sendMu.RLock()
	if r.closed {
		r.sendMu.RUnlock()
		return ErrClosed
	}
	select {
	case r.tasks <- t:
		r.sendMu.RUnlock()
	case <-ctx.Done():
		r.sendMu.RUnlock()
		return ctx.Err()
	}

	<-t.done
	return err
}

// Post enqueues fn without waiting. It is used for backend events; when the
// mailbox is full the event is dropped and counted rather than blocking the
// fan-in goroutine.
func (r *Room) Post(event string, fn func()) bool {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.tasks <- task{fn: fn}:
		return true
	default:
		metrics.IncMailboxDrop(event)
		r.logger.Warn().
			Str(log.FieldEvent, "room.mailbox_full").
			Str("dropped", event).
			Msg("dropping backend event, mailbox full")
		return false
	}
}

// Close stops the room loop. Idempotent. Safe to call from inside a task.
func (r *Room) Close() {
	r.stop.Do(func() {
		r.sendMu.Lock()
		r.closed = true
		r.sendMu.Unlock()
		close(r.stopc)
	})
}

// Closed reports whether the room loop has been stopped.
func (r *Room) Closed() bool {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	return r.closed
}

// State derives the playback state. Call from inside the room loop.
func (r *Room) State() State {
	switch {
	case r.Current == nil:
		return StateIdle
	case r.Paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// Logger returns the room-scoped logger.
func (r *Room) Logger() zerolog.Logger {
	return r.logger
}
