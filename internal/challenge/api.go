package challenge

import (
	"encoding/json"
	"time"
)

// Raw payloads returned by the game service. Only the fields the mapper reads
// are declared; everything else in the response is ignored.

// ChallengeResponse is the body of GET /api/v3/challenges/{id}.
type ChallengeResponse struct {
	Challenge ChallengeInfo `json:"challenge"`
	Map       MapInfo       `json:"map"`
	Creator   CreatorInfo   `json:"creator"`
}

type ChallengeInfo struct {
	Token          string `json:"token"`
	MapSlug        string `json:"mapSlug"`
	RoundCount     int    `json:"roundCount"`
	TimeLimit      int    `json:"timeLimit"`
	ForbidMoves    bool   `json:"forbidMoves"`
	ForbidRotating bool   `json:"forbidRotating"`
	ForbidZooming  bool   `json:"forbidZooming"`
}

type MapInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type CreatorInfo struct {
	ID   string `json:"id"`
	Nick string `json:"nick"`
}

// HighscoresResponse is the body of GET /api/v3/results/highscores/{id}.
type HighscoresResponse struct {
	Items           []HighscoreItem `json:"items"`
	PaginationToken *string         `json:"paginationToken,omitempty"`
}

type HighscoreItem struct {
	GameToken  string        `json:"gameToken"`
	PlayerName string        `json:"playerName"`
	UserID     string        `json:"userId"`
	TotalScore int           `json:"totalScore"`
	IsLeader   bool          `json:"isLeader"`
	Game       HighscoreGame `json:"game"`
}

type HighscoreGame struct {
	Token  string      `json:"token"`
	Rounds []GameRound `json:"rounds"`
	Player GamePlayer  `json:"player"`
}

type GameRound struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	PanoID    string     `json:"panoId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

type GamePlayer struct {
	ID                    string      `json:"id"`
	Nick                  string      `json:"nick"`
	CountryCode           string      `json:"countryCode"`
	IsVerified            bool        `json:"isVerified"`
	TotalScore            ScoreAmount `json:"totalScore"`
	TotalDistanceInMeters float64     `json:"totalDistanceInMeters"`
	TotalTime             int         `json:"totalTime"`
	Guesses               []Guess     `json:"guesses"`
}

// ScoreAmount carries the amount as the service sends it, a quoted number.
type ScoreAmount struct {
	Amount     json.Number `json:"amount"`
	Unit       string      `json:"unit"`
	Percentage float64     `json:"percentage"`
}

type Guess struct {
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	TimedOut           bool    `json:"timedOut"`
	SkippedRound       bool    `json:"skippedRound"`
	RoundScoreInPoints int     `json:"roundScoreInPoints"`
	DistanceInMeters   float64 `json:"distanceInMeters"`
	Time               int     `json:"time"`
}
