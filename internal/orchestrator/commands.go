package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/metrics"
	"github.com/audioroom/maestro/internal/queue"
	"github.com/audioroom/maestro/internal/room"
	"github.com/audioroom/maestro/internal/track"
)

// PlayResult reports what a play command did. Rejected counts are always
// surfaced so capped playlists are never silently truncated.
type PlayResult struct {
	Started               bool         `json:"started"`
	Track                 *track.Track `json:"track,omitempty"`
	PlaylistName          string       `json:"playlist_name,omitempty"`
	Enqueued              int          `json:"enqueued"`
	RejectedByPlaylistCap int          `json:"rejected_by_playlist_cap"`
	RejectedByCapacity    int          `json:"rejected_by_capacity"`
	QueueLen              int          `json:"queue_len"`
}

// NowPlaying is a read-only snapshot of a room's playback slot.
type NowPlaying struct {
	State    room.State           `json:"state"`
	Track    *track.Track         `json:"track,omitempty"`
	Loop     room.LoopMode        `json:"loop"`
	Volume   int                  `json:"volume"`
	Filter   backend.FilterConfig `json:"filter"`
	QueueLen int                  `json:"queue_len"`
}

// QueuePageResult is one display page of a room's queue.
type QueuePageResult struct {
	Items      []track.Track `json:"items"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	QueueLen   int           `json:"queue_len"`
}

// Play searches the backend for query and enqueues the result, creating and
// connecting the room on first use. If nothing is rendering, playback starts
// immediately.
func (o *Orchestrator) Play(ctx context.Context, roomID, userID, textChannelID, query string) (PlayResult, error) {
	var res PlayResult

	userCh, err := o.voice.UserChannel(ctx, roomID, userID)
	if err != nil {
		return res, fmt.Errorf("voice lookup: %w", err)
	}
	if userCh == "" {
		o.countCommand("play", room.ErrWrongChannel)
		return res, fmt.Errorf("%w: join a voice channel first", room.ErrWrongChannel)
	}

	opts := o.opts()
	r, created, err := o.registry.GetOrCreate(ctx, roomID, func(ctx context.Context) (*room.Room, error) {
		handle, cerr := o.backend.Connect(ctx, roomID, userCh)
		if cerr != nil {
			return nil, cerr
		}
		nr := room.New(roomID, userCh, textChannelID, opts.QueueCapacity, opts.DefaultVolume, handle)
		if verr := o.backend.SetVolume(ctx, roomID, opts.DefaultVolume); verr != nil {
			lg1 := nr.Logger()
			lg1.Warn().Err(verr).Msg("setting default volume failed")
		}
		return nr, nil
	})
	if err != nil {
		o.countCommand("play", err)
		return res, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	if created {
		o.logger.Info().
			Str(log.FieldRoomID, roomID).
			Str(log.FieldEvent, "room.connected").
			Str(log.FieldChannelID, userCh).
			Msg("connected to voice channel")
	}

	err = r.Do(ctx, func() error {
		if userCh != r.VoiceChannelID {
			return room.ErrWrongChannel
		}
		if r.NodeDown {
			return backend.ErrUnavailable
		}

		found, serr := o.backend.Search(ctx, query)
		if serr != nil {
			return serr
		}

		switch found.Kind {
		case backend.ResultPlaylist:
			tracks := make([]track.Track, len(found.Tracks))
			for i, t := range found.Tracks {
				tracks[i] = t.WithRequester(userID, textChannelID)
			}
			rep := r.Queue.BulkInsert(tracks, opts.PlaylistCap)
			res.PlaylistName = found.PlaylistName
			res.Enqueued = rep.Accepted
			res.RejectedByPlaylistCap = rep.RejectedByPlaylistCap
			res.RejectedByCapacity = rep.RejectedByCapacity
			if rep.RejectedByPlaylistCap > 0 {
				metrics.QueueDropsTotal.WithLabelValues("playlist_cap").Add(float64(rep.RejectedByPlaylistCap))
			}
			if rep.RejectedByCapacity > 0 {
				metrics.QueueDropsTotal.WithLabelValues("queue_full").Add(float64(rep.RejectedByCapacity))
			}
			if rep.Accepted == 0 && rep.RejectedByCapacity > 0 {
				return queue.ErrFull
			}
		case backend.ResultTrack:
			t := found.Tracks[0].WithRequester(userID, textChannelID)
			if ierr := r.Queue.Insert(t); ierr != nil {
				metrics.IncQueueDrop("queue_full")
				return ierr
			}
			res.Track = &t
			res.Enqueued = 1
		default:
			return backend.ErrNoResults
		}

		if r.Current == nil {
			started, perr := o.startNext(ctx, r)
			if perr != nil {
				return perr
			}
			if started != nil {
				res.Started = true
				res.Track = started
			}
		}
		res.QueueLen = r.Queue.Len()
		return nil
	})

	o.countCommand("play", err)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Skip force-terminates the current track. The backend's TrackEnd event
// drives the actual advance, so skips and natural ends cannot double-pop.
func (o *Orchestrator) Skip(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "skip", roomID, userID, func(r *room.Room) error {
		if r.Current == nil {
			return fmt.Errorf("%w: nothing is playing", ErrInvalidState)
		}
		return o.backend.Stop(ctx, r.ID)
	})
}

// Pause suspends rendering.
func (o *Orchestrator) Pause(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "pause", roomID, userID, func(r *room.Room) error {
		if r.State() != room.StatePlaying {
			return fmt.Errorf("%w: not playing", ErrInvalidState)
		}
		if err := o.backend.SetPaused(ctx, r.ID, true); err != nil {
			return err
		}
		old := r.State()
		r.Paused = true
		o.transition(r, old)
		return nil
	})
}

// Resume continues a paused track.
func (o *Orchestrator) Resume(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "resume", roomID, userID, func(r *room.Room) error {
		if r.State() != room.StatePaused {
			return fmt.Errorf("%w: not paused", ErrInvalidState)
		}
		if err := o.backend.SetPaused(ctx, r.ID, false); err != nil {
			return err
		}
		old := r.State()
		r.Paused = false
		o.transition(r, old)
		return nil
	})
}

// Stop clears the queue and terminates the current track. The backend's
// TrackEnd(stopped) then parks the room and arms the inactivity timer.
func (o *Orchestrator) Stop(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "stop", roomID, userID, func(r *room.Room) error {
		r.Queue.Clear()
		if r.Current != nil {
			return o.backend.Stop(ctx, r.ID)
		}
		o.idle.Arm(r.ID, o.opts().IdleDelay)
		return nil
	})
}

// Loop cycles the loop mode Off -> Track -> Queue -> Off and returns the new
// mode. Entering Track requires something to loop.
func (o *Orchestrator) Loop(ctx context.Context, roomID, userID string) (room.LoopMode, error) {
	var mode room.LoopMode
	err := o.withRoom(ctx, "loop", roomID, userID, func(r *room.Room) error {
		next := r.Loop.Next()
		if next == room.LoopTrack && r.Current == nil && r.Queue.Len() == 0 {
			return ErrNothingToLoop
		}
		lg2 := r.Logger()
		lg2.Info().
			Str(log.FieldEvent, "loop.changed").
			Str(log.FieldOldState, r.Loop.String()).
			Str(log.FieldNewState, next.String()).
			Msg("loop mode changed")
		r.Loop = next
		mode = next
		return nil
	})
	return mode, err
}

// Shuffle randomizes the queued items.
func (o *Orchestrator) Shuffle(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "shuffle", roomID, userID, func(r *room.Room) error {
		if r.Queue.Len() < 2 {
			return fmt.Errorf("%w: need at least two queued tracks to shuffle", ErrInvalidState)
		}
		r.Queue.Shuffle()
		return nil
	})
}

// Volume sets the playback volume, clamped to [0, 200].
func (o *Orchestrator) Volume(ctx context.Context, roomID, userID string, percent int) (int, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 200 {
		percent = 200
	}
	err := o.withRoom(ctx, "volume", roomID, userID, func(r *room.Room) error {
		if err := o.backend.SetVolume(ctx, r.ID, percent); err != nil {
			return err
		}
		r.Volume = percent
		return nil
	})
	return percent, err
}

// SetFilter applies a named filter preset.
func (o *Orchestrator) SetFilter(ctx context.Context, roomID, userID, preset string) error {
	preset = strings.ToLower(strings.TrimSpace(preset))
	switch preset {
	case "off", "low", "medium", "high":
	default:
		return fmt.Errorf("%w: unknown filter preset %q", ErrInvalidState, preset)
	}
	return o.withRoom(ctx, "filter", roomID, userID, func(r *room.Room) error {
		cfg := backend.FilterConfig{Preset: preset}
		if err := o.backend.SetFilter(ctx, r.ID, cfg); err != nil {
			return err
		}
		r.Filter = cfg
		return nil
	})
}

// QueuePage returns one display page of the queue.
func (o *Orchestrator) QueuePage(ctx context.Context, roomID, userID string, page int) (QueuePageResult, error) {
	var out QueuePageResult
	err := o.withRoom(ctx, "queue", roomID, userID, func(r *room.Room) error {
		items, total, err := r.Queue.Page(o.opts().PageSize, page)
		if err != nil {
			return err
		}
		out = QueuePageResult{Items: items, Page: page, TotalPages: total, QueueLen: r.Queue.Len()}
		return nil
	})
	return out, err
}

// Now returns a snapshot of the current playback slot.
func (o *Orchestrator) Now(ctx context.Context, roomID, userID string) (NowPlaying, error) {
	var out NowPlaying
	err := o.withRoom(ctx, "now", roomID, userID, func(r *room.Room) error {
		out = NowPlaying{
			State:    r.State(),
			Loop:     r.Loop,
			Volume:   r.Volume,
			Filter:   r.Filter,
			QueueLen: r.Queue.Len(),
		}
		if r.Current != nil {
			cp := *r.Current
			out.Track = &cp
		}
		return nil
	})
	return out, err
}

// Remove deletes the queued item at the given 1-based position.
func (o *Orchestrator) Remove(ctx context.Context, roomID, userID string, pos int) (*track.Track, error) {
	var removed *track.Track
	err := o.withRoom(ctx, "remove", roomID, userID, func(r *room.Room) error {
		t, ok := r.Queue.Remove(pos)
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
		}
		removed = &t
		return nil
	})
	return removed, err
}

// Move relocates a queued item between 1-based positions.
func (o *Orchestrator) Move(ctx context.Context, roomID, userID string, from, to int) error {
	return o.withRoom(ctx, "move", roomID, userID, func(r *room.Room) error {
		if _, ok := r.Queue.Move(from, to); !ok {
			return fmt.Errorf("%w: %d -> %d", ErrInvalidPosition, from, to)
		}
		return nil
	})
}

// Disconnect tears the room down and removes it from the registry.
// Disconnecting an absent room returns ErrNotConnected.
func (o *Orchestrator) Disconnect(ctx context.Context, roomID, userID string) error {
	return o.withRoom(ctx, "disconnect", roomID, userID, func(r *room.Room) error {
		return o.teardown(ctx, r, "requested")
	})
}

// withRoom resolves the room, enters its loop, applies the cross-room guard
// and runs fn. All command metrics flow through here.
func (o *Orchestrator) withRoom(ctx context.Context, command, roomID, userID string, fn func(*room.Room) error) error {
	r, err := o.registry.Get(roomID)
	if err != nil {
		o.countCommand(command, err)
		return err
	}
	err = r.Do(ctx, func() error {
		if gerr := o.guard(ctx, r, userID); gerr != nil {
			return gerr
		}
		return fn(r)
	})
	if errors.Is(err, room.ErrClosed) {
		err = room.ErrNotConnected
	}
	o.countCommand(command, err)
	return err
}

// guard verifies the invoking user occupies the room's bound voice channel.
// Internal callers pass an empty userID to bypass it.
func (o *Orchestrator) guard(ctx context.Context, r *room.Room, userID string) error {
	if userID == "" {
		return nil
	}
	ch, err := o.voice.UserChannel(ctx, r.ID, userID)
	if err != nil {
		return fmt.Errorf("voice lookup: %w", err)
	}
	if ch != r.VoiceChannelID {
		return room.ErrWrongChannel
	}
	return nil
}

func (o *Orchestrator) countCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(command, result).Inc()
}
