package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discordExport = `{
  "guild": {"name": "daily"},
  "messages": [
    {"content": "today: https://www.geoguessr.com/challenge/AAAA1111 gl", "timestamp": "2024-03-01T09:00:00.000+00:00"},
    {"content": "late repost https://geoguessr.com/challenge/BBBB2222", "timestamp": "2024-03-01T21:15:00.000+00:00"},
    {"content": "no link here", "timestamp": "2024-03-02T08:00:00.000+00:00"},
    {"content": "http://www.geoguessr.com/challenge/CCCC3333", "timestamp": "2024-03-02T23:30:00.000-05:00"},
    {"content": "https://www.geoguessr.com/challenge/DDDD4444", "timestamp": "not a time"},
    {"content": "https://www.geoguessr.com/challenge/EEEE5555", "timestamp": "2024-03-03T00:10:00.000+00:00"}
  ]
}`

func TestParseDiscordExport(t *testing.T) {
	links, err := ParseDiscordExport([]byte(discordExport))
	require.NoError(t, err)

	assert.Equal(t, []DiscordLink{
		{Date: "2024-03-01", URL: "https://www.geoguessr.com/challenge/AAAA1111", ID: "AAAA1111"},
		{Date: "2024-03-02", URL: "http://www.geoguessr.com/challenge/CCCC3333", ID: "CCCC3333"},
		{Date: "2024-03-03", URL: "https://www.geoguessr.com/challenge/EEEE5555", ID: "EEEE5555"},
	}, links)

	assert.Equal(t, []string{
		"https://www.geoguessr.com/challenge/AAAA1111",
		"http://www.geoguessr.com/challenge/CCCC3333",
		"https://www.geoguessr.com/challenge/EEEE5555",
	}, References(links))
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, Names(links))
}

func TestParseDiscordExportEmpty(t *testing.T) {
	links, err := ParseDiscordExport([]byte(`{"messages": []}`))
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.NotNil(t, links)
}

func TestParseDiscordExportMalformed(t *testing.T) {
	_, err := ParseDiscordExport([]byte(`[]`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))

	_, err = ParseDiscordExport([]byte(`{"channel": {}}`))
	assert.Equal(t, KindMalformedPayload, KindOf(err))
}
