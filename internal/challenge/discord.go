package challenge

import (
	"encoding/json"
	"regexp"
	"time"
)

var discordLinkPattern = regexp.MustCompile(`https?://(?:www\.)?geoguessr\.com/challenge/([A-Za-z0-9]+)`)

const dateLayout = "2006-01-02"

// DiscordExport is the subset of a chat export the parser reads.
type DiscordExport struct {
	Messages []DiscordMessage `json:"messages"`
}

type DiscordMessage struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// DiscordLink is the challenge posted on a given day.
type DiscordLink struct {
	Date string `json:"date"`
	URL  string `json:"url"`
	ID   string `json:"id"`
}

// ParseDiscordExport keeps the first challenge link posted on each calendar
// date, in message order. The date is read in the timestamp's own offset.
func ParseDiscordExport(data []byte) ([]DiscordLink, error) {
	var export DiscordExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, Wrap(KindMalformedPayload, err, "discord export is not valid JSON")
	}
	if export.Messages == nil {
		return nil, Errorf(KindMalformedPayload, "discord export has no messages array")
	}

	seen := make(map[string]struct{})
	links := make([]DiscordLink, 0)
	for _, msg := range export.Messages {
		m := discordLinkPattern.FindStringSubmatch(msg.Content)
		if m == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, msg.Timestamp)
		if err != nil {
			continue
		}
		date := ts.Format(dateLayout)
		if _, dup := seen[date]; dup {
			continue
		}
		seen[date] = struct{}{}
		links = append(links, DiscordLink{Date: date, URL: m[0], ID: m[1]})
	}
	return links, nil
}

// References returns the links' URLs in order, for bulk import.
func References(links []DiscordLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

// Names returns the per-link name overrides (the post date) for bulk import.
func Names(links []DiscordLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Date
	}
	return out
}
