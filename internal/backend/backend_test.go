package backend

import (
	"context"
	"testing"

	"github.com/audioroom/maestro/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndReasonMayAdvance(t *testing.T) {
	assert.True(t, EndFinished.MayAdvance())
	assert.True(t, EndLoadFailed.MayAdvance())
	assert.False(t, EndStopped.MayAdvance())
	assert.False(t, EndReplaced.MayAdvance())
}

func TestParseEndReason(t *testing.T) {
	r, err := ParseEndReason("finished")
	require.NoError(t, err)
	assert.Equal(t, EndFinished, r)

	_, err = ParseEndReason("exploded")
	assert.Error(t, err)
}

func TestStubSearch(t *testing.T) {
	s := NewStub(false)
	defer s.Close()

	s.Script("q", SearchResult{Kind: ResultTrack, Tracks: []track.Track{{ID: "t1"}}})

	res, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, ResultTrack, res.Kind)

	_, err = s.Search(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoResults)

	s.SetDown(true)
	_, err = s.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStubPlayEmitsLifecycle(t *testing.T) {
	s := NewStub(true)
	defer s.Close()

	require.NoError(t, s.Play(context.Background(), "g1", track.Track{ID: "a"}))
	ev := <-s.Events()
	start, ok := ev.(TrackStartEvent)
	require.True(t, ok)
	assert.Equal(t, "a", start.Track.ID)
	assert.Equal(t, "g1", start.EventRoomID())

	// A second directive replaces the first.
	require.NoError(t, s.Play(context.Background(), "g1", track.Track{ID: "b"}))
	ev = <-s.Events()
	end, ok := ev.(TrackEndEvent)
	require.True(t, ok)
	assert.Equal(t, "a", end.Track.ID)
	assert.Equal(t, EndReplaced, end.Reason)
	<-s.Events() // start of b

	s.FinishCurrent("g1")
	ev = <-s.Events()
	end, ok = ev.(TrackEndEvent)
	require.True(t, ok)
	assert.Equal(t, "b", end.Track.ID)
	assert.Equal(t, EndFinished, end.Reason)

	_, playing := s.Current("g1")
	assert.False(t, playing)
}

func TestStubConnectDisconnect(t *testing.T) {
	s := NewStub(false)
	defer s.Close()

	h, err := s.Connect(context.Background(), "g1", "vc1")
	require.NoError(t, err)
	require.NotEmpty(t, h)

	require.NoError(t, s.Disconnect(context.Background(), "g1", h))
	// Idempotent: a stale handle is a no-op.
	require.NoError(t, s.Disconnect(context.Background(), "g1", h))
}

func TestStubCloseStopsEvents(t *testing.T) {
	s := NewStub(true)
	s.Close()
	s.Close() // idempotent

	_, open := <-s.Events()
	assert.False(t, open)

	// Emitting after close must not panic.
	s.Emit(NodeReadyEvent{})
}
