package room

import (
	"encoding/json"
	"fmt"
)

// LoopMode controls what happens to a track after it finishes.
type LoopMode string

// Loop mode constants.
const (
	// LoopOff plays the queue straight through.
	LoopOff LoopMode = "off"

	// LoopTrack repeats the current track until the mode changes.
	LoopTrack LoopMode = "track"

	// LoopQueue cycles finished tracks back to the queue tail.
	LoopQueue LoopMode = "queue"
)

// String implements fmt.Stringer.
func (m LoopMode) String() string {
	return string(m)
}

// IsValid checks whether the loop mode is known.
func (m LoopMode) IsValid() bool {
	switch m {
	case LoopOff, LoopTrack, LoopQueue:
		return true
	default:
		return false
	}
}

// Next returns the successor in the Off -> Track -> Queue -> Off cycle.
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopOff:
		return LoopTrack
	case LoopTrack:
		return LoopQueue
	default:
		return LoopOff
	}
}

// MarshalJSON implements json.Marshaler.
func (m LoopMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *LoopMode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	mode := LoopMode(str)
	if !mode.IsValid() {
		return fmt.Errorf("invalid loop mode: %q", str)
	}
	*m = mode
	return nil
}

// ParseLoopMode parses a string into a LoopMode.
func ParseLoopMode(s string) (LoopMode, error) {
	m := LoopMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid loop mode: %q", s)
	}
	return m, nil
}
