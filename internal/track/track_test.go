package track

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationAndLive(t *testing.T) {
	tr := Track{DurationMS: 180_000}
	assert.Equal(t, 3*time.Minute, tr.Duration())
	assert.False(t, tr.IsLive())

	assert.True(t, Track{}.IsLive())
}

func TestWithRequesterDoesNotMutate(t *testing.T) {
	orig := Track{ID: "t1"}
	stamped := orig.WithRequester("u1", "ch1")

	assert.Equal(t, "u1", stamped.RequesterID)
	assert.Equal(t, "ch1", stamped.RequestedInCh)
	assert.Empty(t, orig.RequesterID)
}

func TestParseSource(t *testing.T) {
	for _, s := range AllSources() {
		got, err := ParseSource(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSource("vinyl")
	assert.Error(t, err)
}

func TestSourceJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(SourceYouTube)
	require.NoError(t, err)
	assert.Equal(t, `"youtube"`, string(data))

	var s Source
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, SourceYouTube, s)

	assert.Error(t, json.Unmarshal([]byte(`"vinyl"`), &s))
}
