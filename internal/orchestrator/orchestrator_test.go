package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/platform"
	"github.com/audioroom/maestro/internal/queue"
	"github.com/audioroom/maestro/internal/room"
	"github.com/audioroom/maestro/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testRoom  = "guild-1"
	testUser  = "user-1"
	testVoice = "voice-1"
	testText  = "text-1"
)

type fixture struct {
	orch *Orchestrator
	be   *backend.Stub
	plat *platform.Stub
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = 100
	}
	if opts.PlaylistCap == 0 {
		opts.PlaylistCap = 50
	}
	if opts.PageSize == 0 {
		opts.PageSize = 10
	}
	if opts.DefaultVolume == 0 {
		opts.DefaultVolume = 100
	}
	if opts.IdleDelay == 0 {
		opts.IdleDelay = time.Hour
	}

	be := backend.NewStub(true)
	plat := platform.NewStub()
	plat.Join(testRoom, testUser, testVoice)

	orch := New(room.NewRegistry(), be, plat, plat, func() Options { return opts })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()

	t.Cleanup(func() {
		shutdownCtx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		orch.Close(shutdownCtx)
		cancel()
		<-done
		be.Close()
		goleak.VerifyNone(t)
	})

	return &fixture{orch: orch, be: be, plat: plat}
}

func single(id string) backend.SearchResult {
	return backend.SearchResult{
		Kind: backend.ResultTrack,
		Tracks: []track.Track{{
			ID: id, URI: "https://example.com/" + id, Title: "Track " + id, Source: track.SourceHTTP, DurationMS: 180_000,
		}},
	}
}

func playlist(name string, n int) backend.SearchResult {
	res := backend.SearchResult{Kind: backend.ResultPlaylist, PlaylistName: name}
	for i := 0; i < n; i++ {
		id := name + "-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		res.Tracks = append(res.Tracks, track.Track{
			ID: id, URI: "https://example.com/" + id, Title: id, Source: track.SourceHTTP, DurationMS: 60_000,
		})
	}
	return res
}

func (f *fixture) play(t *testing.T, query string) PlayResult {
	t.Helper()
	res, err := f.orch.Play(context.Background(), testRoom, testUser, testText, query)
	require.NoError(t, err)
	return res
}

// now reads room state through the internal path, bypassing the guard.
func (f *fixture) now(t *testing.T) NowPlaying {
	t.Helper()
	np, err := f.orch.Now(context.Background(), testRoom, "")
	require.NoError(t, err)
	return np
}

func (f *fixture) waitState(t *testing.T, want room.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		np, err := f.orch.Now(context.Background(), testRoom, "")
		return err == nil && np.State == want
	}, 2*time.Second, 5*time.Millisecond, "room never reached state %s", want)
}

func (f *fixture) waitCurrent(t *testing.T, wantID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		np, err := f.orch.Now(context.Background(), testRoom, "")
		return err == nil && np.Track != nil && np.Track.ID == wantID
	}, 2*time.Second, 5*time.Millisecond, "track %s never became current", wantID)
}

func TestPlayStartsImmediately(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("s1"))

	res := f.play(t, "song")
	assert.True(t, res.Started)
	require.NotNil(t, res.Track)
	assert.Equal(t, "s1", res.Track.ID)
	assert.Equal(t, testUser, res.Track.RequesterID)
	assert.Equal(t, 0, res.QueueLen)

	f.waitState(t, room.StatePlaying)
}

func TestPlayQueuesBehindCurrent(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))

	f.play(t, "one")
	res := f.play(t, "two")

	assert.False(t, res.Started)
	assert.Equal(t, 1, res.QueueLen)
	f.waitCurrent(t, "t1")
}

func TestAutoAdvance(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))

	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "t1")

	f.be.FinishCurrent(testRoom)
	f.waitCurrent(t, "t2")
	assert.Equal(t, 0, f.now(t).QueueLen)

	f.be.FinishCurrent(testRoom)
	f.waitState(t, room.StateIdle)
	assert.True(t, f.orch.idle.Armed(testRoom), "idle timer armed after queue exhausted")
}

func TestLoopTrackRepeatsSameTrack(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("loop-me"))
	f.play(t, "song")
	f.waitCurrent(t, "loop-me")

	mode, err := f.orch.Loop(context.Background(), testRoom, testUser)
	require.NoError(t, err)
	assert.Equal(t, room.LoopTrack, mode)

	for i := 0; i < 3; i++ {
		f.be.FinishCurrent(testRoom)
		f.waitCurrent(t, "loop-me")
		assert.Equal(t, room.StatePlaying, f.now(t).State)
	}
}

func TestLoopQueueCyclesFinishedToTail(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("a"))
	f.be.Script("two", single("b"))

	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "a")

	// Off -> Track -> Queue
	_, err := f.orch.Loop(context.Background(), testRoom, testUser)
	require.NoError(t, err)
	mode, err := f.orch.Loop(context.Background(), testRoom, testUser)
	require.NoError(t, err)
	require.Equal(t, room.LoopQueue, mode)

	f.be.FinishCurrent(testRoom)
	f.waitCurrent(t, "b")

	page, err := f.orch.QueuePage(context.Background(), testRoom, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].ID, "finished track reappears at the tail")
}

func TestLoopNothingToLoop(t *testing.T) {
	f := newFixture(t, Options{IdleDelay: time.Hour})
	f.be.Script("song", single("x"))
	f.play(t, "song")
	f.be.FinishCurrent(testRoom)
	f.waitState(t, room.StateIdle)

	_, err := f.orch.Loop(context.Background(), testRoom, testUser)
	assert.ErrorIs(t, err, ErrNothingToLoop)
}

func TestPlaylistCapsReported(t *testing.T) {
	f := newFixture(t, Options{QueueCapacity: 5, PlaylistCap: 10})
	f.be.Script("album", playlist("alb", 30))

	res := f.play(t, "album")
	assert.Equal(t, "alb", res.PlaylistName)
	assert.Equal(t, 5, res.Enqueued)
	assert.Equal(t, 20, res.RejectedByPlaylistCap)
	assert.Equal(t, 5, res.RejectedByCapacity)
	assert.True(t, res.Started)
	assert.Equal(t, 4, res.QueueLen, "one of the five accepted tracks started")
}

func TestQueueFullRejectsSingle(t *testing.T) {
	f := newFixture(t, Options{QueueCapacity: 1})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.be.Script("three", single("t3"))

	f.play(t, "one") // starts, queue empty again
	f.play(t, "two") // fills the single slot

	_, err := f.orch.Play(context.Background(), testRoom, testUser, testText, "three")
	assert.ErrorIs(t, err, queue.ErrFull)
}

func TestSkipAdvancesViaBackendEvent(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "t1")

	require.NoError(t, f.orch.Skip(context.Background(), testRoom, testUser))
	f.waitCurrent(t, "t2")
}

func TestSkipDoesNotRequeueUnderLoopTrack(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "t1")

	_, err := f.orch.Loop(context.Background(), testRoom, testUser) // -> track
	require.NoError(t, err)

	require.NoError(t, f.orch.Skip(context.Background(), testRoom, testUser))
	f.waitCurrent(t, "t2")
	assert.Equal(t, 0, f.now(t).QueueLen, "skipped track must not re-enter the queue")
}

func TestSkipNothingPlaying(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")
	f.be.FinishCurrent(testRoom)
	f.waitState(t, room.StateIdle)

	err := f.orch.Skip(context.Background(), testRoom, testUser)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")
	f.waitState(t, room.StatePlaying)

	require.NoError(t, f.orch.Pause(context.Background(), testRoom, testUser))
	assert.Equal(t, room.StatePaused, f.now(t).State)

	assert.ErrorIs(t, f.orch.Pause(context.Background(), testRoom, testUser), ErrInvalidState)

	require.NoError(t, f.orch.Resume(context.Background(), testRoom, testUser))
	assert.Equal(t, room.StatePlaying, f.now(t).State)

	assert.ErrorIs(t, f.orch.Resume(context.Background(), testRoom, testUser), ErrInvalidState)
}

func TestStopClearsQueueAndArmsTimer(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.be.Script("three", single("t3"))
	f.play(t, "one")
	f.play(t, "two")
	f.play(t, "three")
	f.waitCurrent(t, "t1")

	require.NoError(t, f.orch.Stop(context.Background(), testRoom, testUser))
	f.waitState(t, room.StateIdle)
	assert.Equal(t, 0, f.now(t).QueueLen)
	assert.True(t, f.orch.idle.Armed(testRoom))
}

func TestIdleTimerDisarmedByPlay(t *testing.T) {
	f := newFixture(t, Options{IdleDelay: 200 * time.Millisecond})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))

	f.play(t, "one")
	f.be.FinishCurrent(testRoom)
	f.waitState(t, room.StateIdle)
	require.True(t, f.orch.idle.Armed(testRoom))

	// A successful play before the delay elapses disarms the timer.
	f.play(t, "two")
	f.waitState(t, room.StatePlaying)
	assert.False(t, f.orch.idle.Armed(testRoom))

	// Well past the original delay the room must still exist.
	time.Sleep(300 * time.Millisecond)
	_, err := f.orch.Now(context.Background(), testRoom, "")
	assert.NoError(t, err)
}

func TestIdleDisconnect(t *testing.T) {
	f := newFixture(t, Options{IdleDelay: 50 * time.Millisecond})
	f.be.Script("song", single("x"))
	f.play(t, "song")
	f.be.FinishCurrent(testRoom)

	require.Eventually(t, func() bool {
		_, err := f.orch.Now(context.Background(), testRoom, "")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond, "idle room should be torn down")

	_, err := f.orch.Now(context.Background(), testRoom, "")
	assert.ErrorIs(t, err, room.ErrNotConnected)
}

func TestDisconnectTwice(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")

	require.NoError(t, f.orch.Disconnect(context.Background(), testRoom, testUser))
	err := f.orch.Disconnect(context.Background(), testRoom, testUser)
	assert.ErrorIs(t, err, room.ErrNotConnected)
}

func TestWrongChannelGuard(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")
	f.waitState(t, room.StatePlaying)

	f.plat.Join(testRoom, "intruder", "other-voice")
	err := f.orch.Skip(context.Background(), testRoom, "intruder")
	assert.ErrorIs(t, err, room.ErrWrongChannel)

	// The guarded command mutated nothing.
	assert.Equal(t, room.StatePlaying, f.now(t).State)
}

func TestPlayRequiresVoice(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))

	_, err := f.orch.Play(context.Background(), testRoom, "loner", testText, "song")
	assert.ErrorIs(t, err, room.ErrWrongChannel)

	_, err = f.orch.Now(context.Background(), testRoom, "")
	assert.ErrorIs(t, err, room.ErrNotConnected, "failed connect must not register a room")
}

func TestTrackExceptionNotifiesWithoutAdvance(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "t1")

	cur, _ := f.be.Current(testRoom)
	f.be.Emit(backend.TrackExceptionEvent{RoomID: testRoom, Track: cur, Err: "decoder blew up"})

	require.Eventually(t, func() bool {
		return len(f.plat.Messages()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	np := f.now(t)
	require.NotNil(t, np.Track)
	assert.Equal(t, "t1", np.Track.ID, "exception must not auto-advance")
	assert.Equal(t, 1, np.QueueLen)
}

func TestTrackStuckForceSkips(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")
	f.play(t, "two")
	f.waitCurrent(t, "t1")

	cur, _ := f.be.Current(testRoom)
	f.be.Emit(backend.TrackStuckEvent{RoomID: testRoom, Track: cur, ThresholdMS: 10_000})

	f.waitCurrent(t, "t2")
	assert.Equal(t, 0, f.now(t).QueueLen, "stuck advance must not double-pop")
	assert.NotEmpty(t, f.plat.Messages())
}

func TestNodeDisconnectedFailsFast(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")
	f.waitState(t, room.StatePlaying)

	f.be.Emit(backend.NodeDisconnectedEvent{Code: 1006, Reason: "link lost"})
	require.Eventually(t, func() bool {
		_, err := f.orch.Play(context.Background(), testRoom, testUser, testText, "two")
		return errors.Is(err, backend.ErrUnavailable)
	}, 2*time.Second, 10*time.Millisecond)

	f.be.Emit(backend.NodeReadyEvent{})
	require.Eventually(t, func() bool {
		_, err := f.orch.Play(context.Background(), testRoom, testUser, testText, "two")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestVolumeClampsAndPersists(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")

	v, err := f.orch.Volume(context.Background(), testRoom, testUser, 500)
	require.NoError(t, err)
	assert.Equal(t, 200, v)
	assert.Equal(t, 200, f.be.Volume(testRoom))
	assert.Equal(t, 200, f.now(t).Volume)

	v, err = f.orch.Volume(context.Background(), testRoom, testUser, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestSetFilter(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")

	require.NoError(t, f.orch.SetFilter(context.Background(), testRoom, testUser, "High"))
	assert.Equal(t, "high", f.be.Filter(testRoom).Preset)

	err := f.orch.SetFilter(context.Background(), testRoom, testUser, "earbleed")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestShuffleRequiresTwoItems(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))
	f.play(t, "one")

	err := f.orch.Shuffle(context.Background(), testRoom, testUser)
	assert.ErrorIs(t, err, ErrInvalidState)

	f.play(t, "two")
	f.be.Script("three", single("t3"))
	f.play(t, "three")
	assert.NoError(t, f.orch.Shuffle(context.Background(), testRoom, testUser))
}

func TestRemoveAndMove(t *testing.T) {
	f := newFixture(t, Options{})
	for _, q := range []string{"one", "two", "three", "four"} {
		f.be.Script(q, single(q))
		f.play(t, q)
	}
	// "one" is current; queue is [two three four].

	removed, err := f.orch.Remove(context.Background(), testRoom, testUser, 2)
	require.NoError(t, err)
	assert.Equal(t, "three", removed.ID)

	_, err = f.orch.Remove(context.Background(), testRoom, testUser, 9)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	require.NoError(t, f.orch.Move(context.Background(), testRoom, testUser, 2, 1))
	page, err := f.orch.QueuePage(context.Background(), testRoom, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "four", page.Items[0].ID)
	assert.Equal(t, "two", page.Items[1].ID)
}

func TestQueuePageOutOfRange(t *testing.T) {
	f := newFixture(t, Options{})
	f.be.Script("song", single("x"))
	f.play(t, "song")

	_, err := f.orch.QueuePage(context.Background(), testRoom, "", 5)
	assert.ErrorIs(t, err, queue.ErrInvalidPage)
}

func TestRoomsAreIndependent(t *testing.T) {
	f := newFixture(t, Options{})
	f.plat.Join("guild-2", "user-2", "voice-2")
	f.be.Script("one", single("t1"))
	f.be.Script("two", single("t2"))

	f.play(t, "one")
	_, err := f.orch.Play(context.Background(), "guild-2", "user-2", "text-2", "two")
	require.NoError(t, err)

	f.waitCurrent(t, "t1")
	require.Eventually(t, func() bool {
		np, err := f.orch.Now(context.Background(), "guild-2", "")
		return err == nil && np.Track != nil && np.Track.ID == "t2"
	}, 2*time.Second, 5*time.Millisecond)

	// Tearing one room down leaves the other playing.
	require.NoError(t, f.orch.Disconnect(context.Background(), testRoom, testUser))
	np, err := f.orch.Now(context.Background(), "guild-2", "")
	require.NoError(t, err)
	assert.Equal(t, room.StatePlaying, np.State)
}
