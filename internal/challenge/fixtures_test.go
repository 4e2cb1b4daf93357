package challenge

import "time"

func sampleChallenge() *ChallengeResponse {
	return &ChallengeResponse{
		Challenge: ChallengeInfo{
			Token:          "AbCd1234",
			MapSlug:        "world-slug",
			RoundCount:     5,
			TimeLimit:      60,
			ForbidMoves:    true,
			ForbidRotating: true,
			ForbidZooming:  true,
		},
		Map:     MapInfo{ID: "map-1", Slug: "world-slug", Name: "A Diverse World"},
		Creator: CreatorInfo{ID: "u-creator", Nick: "mapper"},
	}
}

func sampleHighscores(players ...string) *HighscoresResponse {
	start := time.Date(2024, 3, 1, 18, 30, 0, 0, time.FixedZone("CET", 3600))
	items := make([]HighscoreItem, 0, len(players))
	for i, nick := range players {
		items = append(items, HighscoreItem{
			PlayerName: nick,
			UserID:     "u-" + nick,
			TotalScore: 20000 - i*1000,
			Game: HighscoreGame{
				Rounds: []GameRound{
					{Lat: 48.85, Lng: 2.35, StartTime: &start},
					{Lat: -33.86, Lng: 151.2},
				},
				Player: GamePlayer{
					ID:          "u-" + nick,
					Nick:        nick,
					CountryCode: "fr",
					TotalScore:  ScoreAmount{Amount: "9500", Percentage: 95},
					TotalTime:   88,
					Guesses: []Guess{
						{Lat: 48.8, Lng: 2.3, RoundScoreInPoints: 4990, DistanceInMeters: 6200, Time: 40},
						{Lat: -34, Lng: 150, RoundScoreInPoints: 4510, DistanceInMeters: 120000, Time: 48, TimedOut: true},
					},
				},
			},
		})
	}
	return &HighscoresResponse{Items: items}
}
