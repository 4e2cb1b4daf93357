package challenge

import "time"

// Mode is the movement rule set a challenge was played with.
type Mode string

// Game modes derived from the three restriction flags.
const (
	ModeNMPZ   Mode = "NMPZ"
	ModeNoMove Mode = "No-move"
	ModeMoving Mode = "Moving"
)

// Record is one imported challenge with every participant's play-through.
type Record struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Creator      string        `json:"creator"`
	MapName      string        `json:"mapName"`
	MapID        string        `json:"mapId"`
	Mode         Mode          `json:"mode"`
	TimeLimit    int           `json:"timeLimit"` // seconds, 0 = unlimited
	RoundCount   int           `json:"roundCount"`
	Participants []Participant `json:"participants"`
	CachedAt     int64         `json:"cachedAt,omitempty"`     // epoch millis
	LastModified int64         `json:"lastModified,omitempty"` // epoch millis
}

// Participant is one player's result, ranked by the server (rank 1 = best).
type Participant struct {
	Rank            int        `json:"rank"`
	UserID          string     `json:"userId"`
	Nick            string     `json:"nick"`
	CountryCode     string     `json:"countryCode"`
	IsVerified      bool       `json:"isVerified"`
	TotalScore      int        `json:"totalScore"`
	TotalTime       int        `json:"totalTime"`
	TotalDistance   float64    `json:"totalDistance"`
	ScorePercentage float64    `json:"scorePercentage"`
	PlayedAt        *time.Time `json:"playedAt"`
	Rounds          []Round    `json:"rounds"`
}

// Round is a single guess within a participant's play-through.
type Round struct {
	RoundNumber  int     `json:"roundNumber"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	GuessLat     float64 `json:"guessLat"`
	GuessLng     float64 `json:"guessLng"`
	Distance     float64 `json:"distance"` // meters
	Score        int     `json:"score"`
	Time         int     `json:"time"` // seconds
	TimedOut     bool    `json:"timedOut"`
	SkippedRound bool    `json:"skippedRound"`
}

// DeriveMode maps the restriction flags to a Mode. Movement restriction
// dominates unless all three flags are set.
func DeriveMode(forbidMoving, forbidRotating, forbidZooming bool) Mode {
	switch {
	case forbidMoving && forbidRotating && forbidZooming:
		return ModeNMPZ
	case forbidMoving:
		return ModeNoMove
	default:
		return ModeMoving
	}
}

// Clone returns a deep copy so stores and callers never share slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Participants != nil {
		out.Participants = make([]Participant, len(r.Participants))
		for i, p := range r.Participants {
			cp := p
			if p.PlayedAt != nil {
				t := *p.PlayedAt
				cp.PlayedAt = &t
			}
			if p.Rounds != nil {
				cp.Rounds = append([]Round(nil), p.Rounds...)
			}
			out.Participants[i] = cp
		}
	}
	return &out
}

// CachedTime returns CachedAt as a time, zero when unset.
func (r *Record) CachedTime() time.Time {
	if r == nil || r.CachedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.CachedAt)
}
