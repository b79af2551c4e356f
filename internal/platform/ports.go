// Package platform holds the ports to the chat/voice platform. The gateway
// connection and command registration live outside this process; the
// orchestrator only needs membership lookups and channel notifications.
package platform

import "context"

// VoiceStates answers where users currently sit in voice.
type VoiceStates interface {
	// UserChannel returns the voice channel the user occupies within the
	// room's server, or "" when the user is not in voice.
	UserChannel(ctx context.Context, roomID, userID string) (string, error)

	// HumanCount returns the number of non-automated occupants of a voice
	// channel, for the idle check.
	HumanCount(ctx context.Context, channelID string) (int, error)
}

// Notifier delivers informational messages to a text channel.
type Notifier interface {
	Notify(ctx context.Context, channelID, message string) error
}
