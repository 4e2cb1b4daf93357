package challenge

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
)

// BookmarkletPayload is what the companion bookmarklet copies to the clipboard
// after fetching both endpoints from inside a logged-in browser tab.
type BookmarkletPayload struct {
	ChallengeID        string              `json:"challengeId" validate:"required"`
	ChallengeResponse  *ChallengeResponse  `json:"challengeResponse" validate:"required"`
	HighscoresResponse *HighscoresResponse `json:"highscoresResponse" validate:"required"`
	Timestamp          json.RawMessage     `json:"timestamp"`
}

// ParseBookmarklet decodes and validates a pasted payload. The challenge id may
// be a URL; it is normalised to the bare id.
func ParseBookmarklet(data []byte) (*BookmarkletPayload, error) {
	var p BookmarkletPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, Wrap(KindMalformedPayload, err, "bookmarklet payload is not valid JSON")
	}
	v := validate.Struct(&p)
	if !v.Validate() {
		return nil, Errorf(KindMalformedPayload, "bookmarklet payload incomplete: %s", v.Errors.One())
	}
	id, err := ResolveID(p.ChallengeID)
	if err != nil {
		return nil, err
	}
	p.ChallengeID = id
	return &p, nil
}

// Record maps the payload, reporting ErrNoResults when nobody has played yet.
func (p *BookmarkletPayload) Record() (*Record, error) {
	if len(p.HighscoresResponse.Items) == 0 {
		return nil, ErrNoResults
	}
	return MapRecord(p.ChallengeID, p.ChallengeResponse, p.HighscoresResponse)
}

// FetchedAt interprets the timestamp as epoch millis or an RFC3339 string.
func (p *BookmarkletPayload) FetchedAt() (time.Time, bool) {
	raw := strings.Trim(strings.TrimSpace(string(p.Timestamp)), `"`)
	if raw == "" || raw == "null" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
