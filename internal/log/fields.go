package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRoomID    = "room_id"
	FieldTrackID   = "track_id"
	FieldUserID    = "user_id"
	FieldChannelID = "channel_id"
	FieldRequestID = "request_id"
	FieldHandle    = "handle"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCommand   = "command"

	// Playback fields
	FieldTrackTitle = "track_title"
	FieldLoopMode   = "loop_mode"
	FieldQueueSize  = "queue_size"
	FieldReason     = "reason"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
