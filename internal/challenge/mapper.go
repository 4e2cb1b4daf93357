package challenge

import "strconv"

// MapRecord builds a Record from the two raw payloads. It never mutates its
// inputs. Callers must handle an empty highscore list themselves (ErrNoResults)
// rather than mapping it.
func MapRecord(id string, ch *ChallengeResponse, hs *HighscoresResponse) (*Record, error) {
	if ch == nil || hs == nil {
		return nil, Errorf(KindMalformedPayload, "challenge %s: missing challenge or highscores payload", id)
	}

	info := ch.Challenge
	mapID := ch.Map.ID
	if mapID == "" {
		mapID = info.MapSlug
	}

	rec := &Record{
		ID:           id,
		Name:         ch.Map.Name,
		Creator:      ch.Creator.Nick,
		MapName:      ch.Map.Name,
		MapID:        mapID,
		Mode:         DeriveMode(info.ForbidMoves, info.ForbidRotating, info.ForbidZooming),
		TimeLimit:    info.TimeLimit,
		RoundCount:   info.RoundCount,
		Participants: make([]Participant, 0, len(hs.Items)),
	}

	for i, item := range hs.Items {
		p, err := mapParticipant(i+1, item)
		if err != nil {
			return nil, err
		}
		rec.Participants = append(rec.Participants, p)
	}
	return rec, nil
}

func mapParticipant(rank int, item HighscoreItem) (Participant, error) {
	player := item.Game.Player
	targets := item.Game.Rounds

	// Guesses pair with round metadata by position. A guess with no target is
	// a payload we cannot interpret; surplus targets (unplayed rounds) are ignored.
	if len(player.Guesses) > len(targets) {
		return Participant{}, Errorf(KindMalformedPayload,
			"participant %d: %d guesses but only %d rounds", rank, len(player.Guesses), len(targets))
	}

	p := Participant{
		Rank:            rank,
		UserID:          firstNonEmpty(player.ID, item.UserID),
		Nick:            firstNonEmpty(player.Nick, item.PlayerName),
		CountryCode:     player.CountryCode,
		IsVerified:      player.IsVerified,
		TotalScore:      scoreAmount(string(player.TotalScore.Amount), item.TotalScore),
		TotalTime:       player.TotalTime,
		TotalDistance:   player.TotalDistanceInMeters,
		ScorePercentage: player.TotalScore.Percentage,
		Rounds:          make([]Round, 0, len(player.Guesses)),
	}
	if len(targets) > 0 && targets[0].StartTime != nil {
		t := targets[0].StartTime.UTC()
		p.PlayedAt = &t
	}

	for i, g := range player.Guesses {
		target := targets[i]
		p.Rounds = append(p.Rounds, Round{
			RoundNumber:  i + 1,
			Lat:          target.Lat,
			Lng:          target.Lng,
			GuessLat:     g.Lat,
			GuessLng:     g.Lng,
			Distance:     g.DistanceInMeters,
			Score:        g.RoundScoreInPoints,
			Time:         g.Time,
			TimedOut:     g.TimedOut,
			SkippedRound: g.SkippedRound,
		})
	}
	return p, nil
}

func scoreAmount(amount string, fallback int) int {
	if amount == "" {
		return fallback
	}
	if n, err := strconv.Atoi(amount); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(amount, 64); err == nil {
		return int(f)
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
