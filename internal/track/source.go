package track

import (
	"encoding/json"
	"fmt"
)

// Source identifies where a track's audio is resolved from.
type Source string

// Source constants define all supported track origins.
const (
	// SourceYouTube indicates a track resolved from YouTube.
	SourceYouTube Source = "youtube"

	// SourceSoundCloud indicates a track resolved from SoundCloud.
	SourceSoundCloud Source = "soundcloud"

	// SourceHTTP indicates a direct HTTP(S) stream URL.
	SourceHTTP Source = "http"

	// SourceLocal indicates a file local to the rendering backend.
	SourceLocal Source = "local"
)

// String implements fmt.Stringer.
func (s Source) String() string {
	return string(s)
}

// IsValid checks whether the source is a known origin.
func (s Source) IsValid() bool {
	switch s {
	case SourceYouTube, SourceSoundCloud, SourceHTTP, SourceLocal:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Source) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	src := Source(str)
	if !src.IsValid() {
		return fmt.Errorf("invalid track source: %q", str)
	}
	*s = src
	return nil
}

// ParseSource parses a string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid track source: %q", s)
	}
	return src, nil
}

// AllSources returns all defined track sources.
func AllSources() []Source {
	return []Source{SourceYouTube, SourceSoundCloud, SourceHTTP, SourceLocal}
}
