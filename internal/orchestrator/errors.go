package orchestrator

import "errors"

var (
	// ErrInvalidState is returned when a command does not apply to the
	// room's current playback state (skip with nothing rendering, resume
	// while playing, shuffle with fewer than two items, ...).
	ErrInvalidState = errors.New("invalid state for this command")

	// ErrNothingToLoop is returned when loop mode would enter Track with
	// no current track and an empty queue.
	ErrNothingToLoop = errors.New("nothing to loop")

	// ErrInvalidPosition is returned for remove/move positions outside the
	// queue.
	ErrInvalidPosition = errors.New("position out of range")
)
