package challenge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookmarkletJSON(t *testing.T, id string, hs *HighscoresResponse, ts string) []byte {
	t.Helper()
	body := map[string]interface{}{
		"challengeId":        id,
		"challengeResponse":  sampleChallenge(),
		"highscoresResponse": hs,
	}
	if ts != "" {
		body["timestamp"] = json.RawMessage(ts)
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func TestParseBookmarklet(t *testing.T) {
	data := bookmarkletJSON(t, "https://www.geoguessr.com/challenge/AbCd1234", sampleHighscores("ann"), "1709314200000")

	p, err := ParseBookmarklet(data)
	require.NoError(t, err)
	assert.Equal(t, "AbCd1234", p.ChallengeID)

	rec, err := p.Record()
	require.NoError(t, err)
	assert.Equal(t, "AbCd1234", rec.ID)
	assert.Len(t, rec.Participants, 1)

	at, ok := p.FetchedAt()
	require.True(t, ok)
	assert.Equal(t, int64(1709314200000), at.UnixMilli())
}

func TestParseBookmarkletTimestampForms(t *testing.T) {
	p, err := ParseBookmarklet(bookmarkletJSON(t, "AbCd1234", sampleHighscores("ann"), `"2024-03-01T17:30:00Z"`))
	require.NoError(t, err)
	at, ok := p.FetchedAt()
	require.True(t, ok)
	assert.True(t, at.Equal(time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)))

	p, err = ParseBookmarklet(bookmarkletJSON(t, "AbCd1234", sampleHighscores("ann"), ""))
	require.NoError(t, err)
	_, ok = p.FetchedAt()
	assert.False(t, ok)
}

func TestParseBookmarkletRejects(t *testing.T) {
	_, err := ParseBookmarklet([]byte(`{not json`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseBookmarklet([]byte(`{"challengeId":"AbCd1234","challengeResponse":{}}`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseBookmarklet(bookmarkletJSON(t, "", sampleHighscores("ann"), ""))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseBookmarklet(bookmarkletJSON(t, "no good", sampleHighscores("ann"), ""))
	assert.Equal(t, KindInvalidReference, KindOf(err))
}

func TestBookmarkletWithoutResults(t *testing.T) {
	p, err := ParseBookmarklet(bookmarkletJSON(t, "AbCd1234", &HighscoresResponse{Items: []HighscoreItem{}}, ""))
	require.NoError(t, err)
	_, err = p.Record()
	assert.True(t, errors.Is(err, ErrNoResults))
}
