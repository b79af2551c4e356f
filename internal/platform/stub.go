package platform

import (
	"context"
	"sync"
)

// Stub is an in-memory platform used in virtual mode and tests.
type Stub struct {
	mu       sync.Mutex
	channels map[string]string // "roomID/userID" -> channelID
	humans   map[string]int    // channelID -> occupant count
	messages []string
}

// NewStub creates an empty platform stub.
func NewStub() *Stub {
	return &Stub{
		channels: make(map[string]string),
		humans:   make(map[string]int),
	}
}

// Join places a user into a voice channel for membership lookups.
func (s *Stub) Join(roomID, userID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[roomID+"/"+userID] = channelID
	s.humans[channelID]++
}

// Leave removes a user from voice.
func (s *Stub) Leave(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roomID + "/" + userID
	if ch, ok := s.channels[key]; ok {
		delete(s.channels, key)
		if s.humans[ch] > 0 {
			s.humans[ch]--
		}
	}
}

func (s *Stub) UserChannel(_ context.Context, roomID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[roomID+"/"+userID], nil
}

func (s *Stub) HumanCount(_ context.Context, channelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humans[channelID], nil
}

func (s *Stub) Notify(_ context.Context, channelID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, channelID+": "+message)
	return nil
}

// Messages returns all notifications sent so far.
func (s *Stub) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.messages))
	copy(cp, s.messages)
	return cp
}
