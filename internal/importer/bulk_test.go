package importer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	"github.com/gokatarajesh/geo-challenges/internal/store"
)

func TestLoadManyPreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := []string{"AAAA1111", "BBBB2222", "CCCC3333", "DDDD4444"}
	f := newStubFetcher(ids...)
	// Later items finish first.
	f.delay["AAAA1111"] = 40 * time.Millisecond
	f.delay["BBBB2222"] = 30 * time.Millisecond
	f.delay["CCCC3333"] = 20 * time.Millisecond
	svc, _ := newTestService(st, f, Policy{BatchSize: 4})

	res, err := svc.LoadMany(ctx, ids, nil, false, nil)
	require.NoError(t, err)
	require.Len(t, res.Results, 4)
	for i, rec := range res.Results {
		assert.Equal(t, ids[i], rec.ID)
	}

	manifest, err := st.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, manifest)
	assert.Equal(t, 100.0, res.SuccessRate)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)
}

func TestLoadManyPartialFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	f := newStubFetcher("AAAA1111", "CCCC3333")
	svc, _ := newTestService(st, f, Policy{BatchSize: 2})

	refs := []string{
		"https://www.geoguessr.com/challenge/AAAA1111",
		"https://www.geoguessr.com/challenge/BBBB2222",
		"https://www.geoguessr.com/challenge/CCCC3333",
	}
	res, err := svc.LoadMany(ctx, refs, nil, false, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.AddedCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, 3, res.TotalCount)
	assert.InDelta(t, 66.67, res.SuccessRate, 0.01)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, refs[1], res.Errors[0].URL)
	assert.Equal(t, challenge.KindNotFound, challenge.KindOf(res.Errors[0].Err))

	manifest, err := st.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA1111", "CCCC3333"}, manifest)

	data, err := json.Marshal(res.Errors[0])
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "not_found", out["kind"])
	assert.Equal(t, float64(1), out["index"])
	assert.Equal(t, refs[1], out["url"])
}

func TestLoadManyErrorsSortedByIndex(t *testing.T) {
	f := newStubFetcher()
	f.delay["AAAA1111"] = 30 * time.Millisecond
	svc, _ := newTestService(store.NewMemoryStore(), f, Policy{BatchSize: 8})

	res, err := svc.LoadMany(context.Background(), []string{"AAAA1111", "bad ref", "CCCC3333"}, nil, false, nil)
	require.NoError(t, err)
	require.Len(t, res.Errors, 3)
	for i, e := range res.Errors {
		assert.Equal(t, i, e.Index)
	}
	assert.Equal(t, challenge.KindInvalidReference, challenge.KindOf(res.Errors[1].Err))
	assert.Zero(t, res.SuccessRate)
}

func TestLoadManyProgress(t *testing.T) {
	ids := []string{"AAAA1111", "BBBB2222", "CCCC3333", "DDDD4444", "EEEE5555"}
	f := newStubFetcher(ids[:4]...)
	svc, _ := newTestService(store.NewMemoryStore(), f, Policy{BatchSize: 2})

	var (
		mu      sync.Mutex
		updates []Progress
	)
	res, err := svc.LoadMany(context.Background(), ids, func(p Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	}, false, nil)
	require.NoError(t, err)

	require.Len(t, updates, 5)
	for i, p := range updates {
		assert.Equal(t, 5, p.TotalCount)
		assert.Equal(t, 5-(i+1), p.RemainingCount)
		assert.Equal(t, i+1, p.AddedCount+p.FailedCount)
	}
	last := updates[len(updates)-1]
	assert.Equal(t, Progress{AddedCount: 4, FailedCount: 1, TotalCount: 5, RemainingCount: 0}, last)
	assert.Equal(t, 4, res.AddedCount)
}

func TestLoadManyPacing(t *testing.T) {
	ids := []string{"AAAA1111", "BBBB2222", "CCCC3333", "DDDD4444", "EEEE5555"}
	f := newStubFetcher(ids...)
	policy := Policy{BatchSize: 2, BatchDelay: 800 * time.Millisecond, Stagger: 200 * time.Millisecond}
	svc, sleeps := newTestService(store.NewMemoryStore(), f, policy)

	_, err := svc.LoadMany(context.Background(), ids, nil, false, nil)
	require.NoError(t, err)

	// Three batches: two inter-batch delays, one stagger per second slot.
	assert.Equal(t, 2, sleeps.count(800*time.Millisecond))
	assert.Equal(t, 2, sleeps.count(200*time.Millisecond))
	assert.Equal(t, 3, sleeps.count(0))
}

func TestLoadManyCacheHitsSkipStagger(t *testing.T) {
	ctx := context.Background()
	ids := []string{"AAAA1111", "BBBB2222"}
	st := store.NewMemoryStore()
	f := newStubFetcher(ids...)
	svc, sleeps := newTestService(st, f, Policy{BatchSize: 2, Stagger: 200 * time.Millisecond})

	_, err := svc.LoadMany(ctx, ids, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sleeps.count(200*time.Millisecond))

	res, err := svc.LoadMany(ctx, ids, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AddedCount)
	assert.Equal(t, 1, sleeps.count(200*time.Millisecond))
	assert.Equal(t, 1, f.callCount("AAAA1111"))
}

func TestLoadManyNameOverride(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	f := newStubFetcher("AAAA1111", "BBBB2222")
	svc, _ := newTestService(st, f, Policy{})

	_, err := svc.LoadOne(ctx, "AAAA1111", false)
	require.NoError(t, err)

	res, err := svc.LoadMany(ctx, []string{"AAAA1111", "BBBB2222"}, nil, false, []string{"2024-03-01", ""})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", res.Results[0].Name)
	assert.Equal(t, "Map BBBB2222", res.Results[1].Name)

	cached, ok, err := st.Get(ctx, "AAAA1111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", cached.Name, "renamed cache hit is persisted")
	assert.Equal(t, 1, f.callCount("AAAA1111"))
}

func TestLoadManyNameOverrideKeepsCachedAt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	f := newStubFetcher("AAAA1111")
	svc, _ := newTestService(st, f, Policy{})

	first, err := svc.LoadOne(ctx, "AAAA1111", false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = svc.LoadMany(ctx, []string{"AAAA1111"}, nil, false, []string{"2024-03-01"})
	require.NoError(t, err)

	cached, ok, err := st.Get(ctx, "AAAA1111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", cached.Name)
	assert.Equal(t, first.CachedAt, cached.CachedAt)
	assert.Greater(t, cached.LastModified, first.CachedAt)
}

func TestLoadManyCancelledMidRun(t *testing.T) {
	st := newRedisTestStore(t)
	ids := []string{"AAAA1111", "BBBB2222", "CCCC3333"}
	f := newStubFetcher(ids...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onFetch = func(_ context.Context, id string) {
		if id == "BBBB2222" {
			cancel()
		}
	}
	svc, _ := newTestService(st, f, Policy{BatchSize: 1})

	res, err := svc.LoadMany(ctx, ids, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AddedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Index)
	assert.ErrorIs(t, res.Errors[0].Err, context.Canceled)
	assert.Zero(t, f.callCount("CCCC3333"), "no batch is scheduled after cancellation")

	bg := context.Background()
	manifest, err := st.ListIDs(bg)
	require.NoError(t, err)
	assert.Contains(t, manifest, "AAAA1111")

	listed, err := svc.List(bg)
	require.NoError(t, err)
	require.NotEmpty(t, listed)
	assert.Equal(t, "AAAA1111", listed[0].ID)
}

func TestLoadManyAlreadyCancelled(t *testing.T) {
	ids := []string{"AAAA1111", "BBBB2222"}
	f := newStubFetcher(ids...)
	svc, _ := newTestService(store.NewMemoryStore(), f, Policy{BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var updates int
	res, err := svc.LoadMany(ctx, ids, func(Progress) { updates++ }, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AddedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, 2, updates)
	for _, e := range res.Errors {
		assert.Equal(t, challenge.KindFetch, challenge.KindOf(e.Err))
	}
	assert.Zero(t, f.callCount("AAAA1111"))
}

func TestLoadManyRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(store.NewMemoryStore(), newStubFetcher(), Policy{})

	_, err := svc.LoadMany(context.Background(), nil, nil, false, nil)
	assert.Equal(t, challenge.KindInvalidInput, challenge.KindOf(err))

	_, err = svc.LoadMany(context.Background(), []string{"AAAA1111"}, nil, false, []string{"a", "b"})
	assert.Equal(t, challenge.KindInvalidInput, challenge.KindOf(err))
}

func TestSuccessRate(t *testing.T) {
	assert.Zero(t, successRate(0, 0))
	assert.Equal(t, 50.0, successRate(1, 2))
}
