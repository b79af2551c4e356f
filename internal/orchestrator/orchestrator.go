// Package orchestrator drives playback for all rooms. It consumes lifecycle
// events from the rendering backend, applies the next-track policy, and
// exposes the command surface used by the chat gateway and the HTTP API.
//
// Every mutation of a room runs inside that room's loop, so commands and
// events for one room are linearized in arrival order while rooms proceed
// independently of each other.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/idle"
	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/metrics"
	"github.com/audioroom/maestro/internal/platform"
	"github.com/audioroom/maestro/internal/room"
	"github.com/audioroom/maestro/internal/track"
	"github.com/rs/zerolog"
)

// Options are the tunables consumed per command. They are read through a
// provider so config hot reloads take effect without restarting rooms.
type Options struct {
	QueueCapacity int
	PlaylistCap   int
	PageSize      int
	DefaultVolume int
	IdleDelay     time.Duration
}

// Orchestrator is the control loop shared by all rooms.
type Orchestrator struct {
	registry *room.Registry
	backend  backend.Client
	voice    platform.VoiceStates
	notify   platform.Notifier
	idle     *idle.Supervisor
	opts     func() Options
	logger   zerolog.Logger
}

// New wires an orchestrator. opts is called on every command, so a config
// holder can back it.
func New(reg *room.Registry, be backend.Client, voice platform.VoiceStates, notify platform.Notifier, opts func() Options) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		backend:  be,
		voice:    voice,
		notify:   notify,
		opts:     opts,
		logger:   log.WithComponent("orchestrator"),
	}
	o.idle = idle.NewSupervisor(o.idleCheck)
	return o
}

// Registry exposes the room registry, mainly for the API layer.
func (o *Orchestrator) Registry() *room.Registry {
	return o.registry
}

// Run consumes backend events until ctx is cancelled or the event stream
// closes. It must be running for auto-advance to work.
func (o *Orchestrator) Run(ctx context.Context) error {
	events := o.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				o.logger.Info().
					Str(log.FieldEvent, "backend.events_closed").
					Msg("backend event stream closed")
				return nil
			}
			o.dispatch(ctx, ev)
		}
	}
}

// Close tears down every room. Used on daemon shutdown.
func (o *Orchestrator) Close(ctx context.Context) {
	o.idle.StopAll()
	for _, r := range o.registry.All() {
		r := r
		_ = r.Do(ctx, func() error {
			return o.teardown(ctx, r, "shutdown")
		})
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, ev backend.Event) {
	switch e := ev.(type) {
	case backend.NodeReadyEvent:
		o.logger.Info().Str(log.FieldEvent, "node.ready").Msg("rendering node ready")
		o.broadcast("node_ready", func(r *room.Room) { r.NodeDown = false })
	case backend.NodeDisconnectedEvent:
		o.logger.Warn().
			Str(log.FieldEvent, "node.disconnected").
			Int("code", e.Code).
			Str(log.FieldReason, e.Reason).
			Msg("rendering node link lost")
		o.broadcast("node_disconnected", func(r *room.Room) { r.NodeDown = true })
	default:
		o.routeToRoom(ctx, ev)
	}
}

func (o *Orchestrator) broadcast(event string, fn func(*room.Room)) {
	for _, r := range o.registry.All() {
		r := r
		r.Post(event, func() { fn(r) })
	}
}

func (o *Orchestrator) routeToRoom(ctx context.Context, ev backend.Event) {
	r, err := o.registry.Get(ev.EventRoomID())
	if err != nil {
		// Stale event for a torn-down room. Expected during disconnect.
		o.logger.Debug().
			Str(log.FieldRoomID, ev.EventRoomID()).
			Str(log.FieldEvent, "event.orphaned").
			Msg("dropping event for unknown room")
		return
	}

	switch e := ev.(type) {
	case backend.TrackStartEvent:
		r.Post("track_start", func() { o.onTrackStart(r, e) })
	case backend.TrackEndEvent:
		r.Post("track_end", func() { o.onTrackEnd(ctx, r, e) })
	case backend.TrackExceptionEvent:
		r.Post("track_exception", func() { o.onTrackException(ctx, r, e) })
	case backend.TrackStuckEvent:
		r.Post("track_stuck", func() { o.onTrackStuck(ctx, r, e) })
	}
}

func (o *Orchestrator) onTrackStart(r *room.Room, e backend.TrackStartEvent) {
	old := r.State()
	t := e.Track
	r.Current = &t
	r.Paused = false
	o.idle.Disarm(r.ID)
	o.transition(r, old)
	lg1 := r.Logger()
	lg1.Info().
		Str(log.FieldEvent, "track.started").
		Str(log.FieldTrackID, t.ID).
		Str(log.FieldTrackTitle, t.Title).
		Msg("track started")
}

func (o *Orchestrator) onTrackEnd(ctx context.Context, r *room.Room, e backend.TrackEndEvent) {
	lg2 := r.Logger()
	lg2.Info().
		Str(log.FieldEvent, "track.ended").
		Str(log.FieldTrackID, e.Track.ID).
		Str(log.FieldReason, e.Reason.String()).
		Msg("track ended")

	if e.Reason == backend.EndReplaced {
		// A newer render directive superseded this track; that directive's
		// TrackStart carries the state forward.
		return
	}
	if r.Current == nil || r.Current.ID != e.Track.ID {
		// Stale end for a track that already left the slot, e.g. the
		// backend's stop confirmation after a stuck-track force-skip.
		return
	}

	old := r.State()
	if e.Reason.MayAdvance() {
		switch r.Loop {
		case room.LoopTrack:
			// Front re-insert so the track plays again immediately. The
			// capacity check is waived: the track reclaims the slot it
			// just vacated.
			r.Queue.PushFront(e.Track)
		case room.LoopQueue:
			if err := r.Queue.Insert(e.Track); err != nil {
				metrics.IncQueueDrop("loop_requeue")
				lg3 := r.Logger()
				lg3.Warn().
					Str(log.FieldEvent, "loop.requeue_dropped").
					Str(log.FieldTrackID, e.Track.ID).
					Msg("queue full, dropping loop re-insert")
			}
		}
	}

	o.advance(ctx, r, old)
}

func (o *Orchestrator) onTrackException(ctx context.Context, r *room.Room, e backend.TrackExceptionEvent) {
	lg4 := r.Logger()
	lg4.Error().
		Str(log.FieldEvent, "track.exception").
		Str(log.FieldTrackID, e.Track.ID).
		Str("error", e.Err).
		Msg("track exception")
	o.notifyRoom(ctx, r, fmt.Sprintf("Playback error on %q: %s", e.Track.Title, e.Err))
	// No auto-advance: a systemic backend fault would otherwise burn
	// through the whole queue. The user skips or retries.
}

func (o *Orchestrator) onTrackStuck(ctx context.Context, r *room.Room, e backend.TrackStuckEvent) {
	if r.Current == nil || r.Current.ID != e.Track.ID {
		return
	}
	lg5 := r.Logger()
	lg5.Warn().
		Str(log.FieldEvent, "track.stuck").
		Str(log.FieldTrackID, e.Track.ID).
		Int64("threshold_ms", e.ThresholdMS).
		Msg("track stuck, skipping")
	o.notifyRoom(ctx, r, fmt.Sprintf("%q got stuck, skipping.", e.Track.Title))

	old := r.State()
	if err := o.backend.Stop(ctx, r.ID); err != nil {
		lg6 := r.Logger()
		lg6.Error().Err(err).Msg("force-stop after stuck track failed")
	}
	// Forced advance: do not wait for the backend's TrackEnd, the stream
	// is already wedged.
	o.advance(ctx, r, old)
}

// advance pops the next track and issues a render directive, or parks the
// room and arms the inactivity supervisor.
func (o *Orchestrator) advance(ctx context.Context, r *room.Room, old room.State) {
	next, ok := r.Queue.PopFront()
	if !ok {
		r.Current = nil
		r.Paused = false
		o.transition(r, old)
		o.idle.Arm(r.ID, o.opts().IdleDelay)
		lg7 := r.Logger()
		lg7.Info().
			Str(log.FieldEvent, "playback.idle").
			Msg("queue exhausted, inactivity timer armed")
		return
	}

	if err := o.backend.Play(ctx, r.ID, next); err != nil {
		lg8 := r.Logger()
		lg8.Error().Err(err).
			Str(log.FieldEvent, "playback.render_failed").
			Str(log.FieldTrackID, next.ID).
			Msg("render directive failed")
		o.notifyRoom(ctx, r, fmt.Sprintf("Could not play %q.", next.Title))
		r.Current = nil
		r.Paused = false
		o.transition(r, old)
		o.idle.Arm(r.ID, o.opts().IdleDelay)
		return
	}

	r.Current = &next
	r.Paused = false
	o.idle.Disarm(r.ID)
	o.transition(r, old)
}

// idleCheck fires on the supervisor goroutine after the armed delay. It
// re-reads state through the room loop and tears down only a genuinely idle
// room; a vanished room is a no-op.
func (o *Orchestrator) idleCheck(roomID string) {
	r, err := o.registry.Get(roomID)
	if err != nil {
		return
	}
	r.Post("idle_check", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		idleNow := r.Current == nil && r.Queue.Len() == 0
		if !idleNow {
			// Also leave when nobody is listening anymore, even if a
			// paused track lingers.
			if n, herr := o.voice.HumanCount(ctx, r.VoiceChannelID); herr != nil || n > 0 {
				return
			}
		}

		lg9 := r.Logger()
		lg9.Info().
			Str(log.FieldEvent, "idle.disconnect").
			Msg("disconnecting idle room")
		metrics.IdleDisconnectsTotal.Inc()
		if err := o.teardown(ctx, r, "inactivity"); err != nil {
			lg10 := r.Logger()
			lg10.Error().Err(err).Msg("idle teardown failed")
		}
	})
}

// teardown releases everything a room holds. Runs inside the room loop.
func (o *Orchestrator) teardown(ctx context.Context, r *room.Room, reason string) error {
	o.idle.Disarm(r.ID)
	r.Queue.Clear()
	r.Current = nil

	if err := o.backend.Stop(ctx, r.ID); err != nil {
		lg11 := r.Logger()
		lg11.Warn().Err(err).Msg("backend stop during teardown failed")
	}
	if err := o.backend.Disconnect(ctx, r.ID, r.Handle); err != nil {
		lg12 := r.Logger()
		lg12.Warn().Err(err).Msg("backend disconnect during teardown failed")
	}

	lg13 := r.Logger()
	lg13.Info().
		Str(log.FieldEvent, "room.teardown").
		Str(log.FieldReason, reason).
		Msg("room torn down")
	return o.registry.Remove(r.ID)
}

func (o *Orchestrator) transition(r *room.Room, old room.State) {
	now := r.State()
	if now != old {
		metrics.RecordTransition(string(old), string(now))
	}
}

func (o *Orchestrator) notifyRoom(ctx context.Context, r *room.Room, msg string) {
	if r.TextChannelID == "" {
		return
	}
	if err := o.notify.Notify(ctx, r.TextChannelID, msg); err != nil {
		lg14 := r.Logger()
		lg14.Warn().Err(err).Msg("channel notification failed")
	}
}

// startNext pops the queue head and issues the render directive. Runs inside
// the room loop; returns the started track.
func (o *Orchestrator) startNext(ctx context.Context, r *room.Room) (*track.Track, error) {
	old := r.State()
	next, ok := r.Queue.PopFront()
	if !ok {
		return nil, nil
	}
	if err := o.backend.Play(ctx, r.ID, next); err != nil {
		// Put it back so a retry can pick it up.
		r.Queue.PushFront(next)
		return nil, fmt.Errorf("render directive: %w", err)
	}
	r.Current = &next
	r.Paused = false
	o.idle.Disarm(r.ID)
	o.transition(r, old)
	return &next, nil
}
