package challenge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFileRoundTrip(t *testing.T) {
	rec, err := MapRecord("AbCd1234", sampleChallenge(), sampleHighscores("ann", "bob"))
	require.NoError(t, err)
	rec.CachedAt = 1709314200000

	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	file := NewExportFile([]*Record{rec}, now)
	assert.Equal(t, ExportVersion, file.Version)
	assert.Equal(t, 1, file.ChallengeCount)
	assert.Equal(t, "2024-03-02T10:00:00Z", file.ExportedAt)

	data, err := json.Marshal(file)
	require.NoError(t, err)

	parsed, err := ParseExportFile(data)
	require.NoError(t, err)
	require.Len(t, parsed.Challenges, 1)
	want, err := json.Marshal(rec)
	require.NoError(t, err)
	got, err := json.Marshal(parsed.Challenges[0])
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestNewExportFileEmpty(t *testing.T) {
	file := NewExportFile(nil, time.Now())
	assert.Equal(t, 0, file.ChallengeCount)
	assert.NotNil(t, file.Challenges)
}

func TestParseExportFileRejects(t *testing.T) {
	_, err := ParseExportFile([]byte(`nope`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseExportFile([]byte(`{"version":"2.0","challenges":[]}`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseExportFile([]byte(`{"version":"1.0","challenges":[{"name":"x"}]}`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))
}
