package importer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	"github.com/gokatarajesh/geo-challenges/internal/store"
)

// stubFetcher serves canned payloads per id. Unknown ids are not found.
type stubFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	delay   map[string]time.Duration
	fail    map[string]error
	players map[string][]string
	onFetch func(ctx context.Context, id string)
}

func newStubFetcher(ids ...string) *stubFetcher {
	f := &stubFetcher{
		calls:   make(map[string]int),
		delay:   make(map[string]time.Duration),
		fail:    make(map[string]error),
		players: make(map[string][]string),
	}
	for _, id := range ids {
		f.players[id] = []string{"ann", "bob"}
	}
	return f
}

func (f *stubFetcher) FetchChallenge(ctx context.Context, id string) (*challenge.ChallengeResponse, error) {
	f.mu.Lock()
	f.calls[id]++
	d, err, hook := f.delay[id], f.fail[id], f.onFetch
	_, known := f.players[id]
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, id)
	}
	if d > 0 {
		time.Sleep(d)
	}
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, challenge.Errorf(challenge.KindNotFound, "challenge %s not found", id)
	}
	return &challenge.ChallengeResponse{
		Challenge: challenge.ChallengeInfo{Token: id, RoundCount: 1, TimeLimit: 30},
		Map:       challenge.MapInfo{ID: "m-" + id, Name: "Map " + id},
		Creator:   challenge.CreatorInfo{Nick: "mapper"},
	}, nil
}

func (f *stubFetcher) FetchHighscores(ctx context.Context, id string) (*challenge.HighscoresResponse, error) {
	f.mu.Lock()
	players, known := f.players[id]
	err := f.fail[id]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, challenge.Errorf(challenge.KindNotFound, "challenge %s not found", id)
	}
	items := make([]challenge.HighscoreItem, 0, len(players))
	for i, nick := range players {
		items = append(items, challenge.HighscoreItem{
			PlayerName: nick,
			TotalScore: 5000 - i,
			Game: challenge.HighscoreGame{
				Rounds: []challenge.GameRound{{Lat: 1, Lng: 2}},
				Player: challenge.GamePlayer{
					Nick:    nick,
					Guesses: []challenge.Guess{{Lat: 1.1, Lng: 2.1, RoundScoreInPoints: 5000 - i}},
				},
			},
		})
	}
	return &challenge.HighscoresResponse{Items: items}, nil
}

func (f *stubFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// sleepRecorder replaces real waits so pacing can be asserted without delay.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.waits {
		if w == d {
			n++
		}
	}
	return n
}

func newTestService(st store.Store, f Fetcher, policy Policy) (*Service, *sleepRecorder) {
	svc := NewService(st, f, zerolog.Nop(), ServiceOptions{Policy: policy})
	rec := &sleepRecorder{}
	svc.sleep = rec.sleep
	return svc, rec
}

// failingStore rejects record writes but otherwise behaves like its base.
type failingStore struct {
	store.Store
}

func (failingStore) Put(context.Context, *challenge.Record) error {
	return challenge.Errorf(challenge.KindStorage, "quota exceeded")
}

func newRedisTestStore(t *testing.T) *store.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedisStore(client, "test", zerolog.Nop())
}
