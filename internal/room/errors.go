package room

import "errors"

var (
	// ErrNotConnected is returned when a command targets a room that does
	// not exist.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrWrongChannel is returned when the invoking user is not in the
	// room's bound voice channel.
	ErrWrongChannel = errors.New("you are not in my voice channel")

	// ErrClosed is returned when a task is submitted to a room that is
	// shutting down.
	ErrClosed = errors.New("room is closed")
)
