package importer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	"github.com/gokatarajesh/geo-challenges/internal/store"
)

// Fetcher is the remote side of an import (implemented by external.GeoGuessrClient).
type Fetcher interface {
	FetchChallenge(ctx context.Context, id string) (*challenge.ChallengeResponse, error)
	FetchHighscores(ctx context.Context, id string) (*challenge.HighscoresResponse, error)
}

// Policy paces bulk imports to stay inside the game service's informal rate
// tolerance.
type Policy struct {
	BatchSize  int
	BatchDelay time.Duration
	Stagger    time.Duration
}

// DefaultPolicy is 8 concurrent items, 800ms between batches, 200ms stagger.
func DefaultPolicy() Policy {
	return Policy{
		BatchSize:  8,
		BatchDelay: 800 * time.Millisecond,
		Stagger:    200 * time.Millisecond,
	}
}

// Service resolves challenge references from cache or the game service and
// keeps the store in sync.
type Service struct {
	store   store.Store
	fetcher Fetcher
	policy  Policy
	logger  zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type ServiceOptions struct {
	Policy Policy
}

func NewService(st store.Store, fetcher Fetcher, logger zerolog.Logger, opts ServiceOptions) *Service {
	policy := opts.Policy
	def := DefaultPolicy()
	if policy.BatchSize <= 0 {
		policy.BatchSize = def.BatchSize
	}
	if policy.BatchDelay < 0 {
		policy.BatchDelay = 0
	}
	if policy.Stagger < 0 {
		policy.Stagger = 0
	}
	return &Service{
		store:   st,
		fetcher: fetcher,
		policy:  policy,
		logger:  logger.With().Str("component", "importer").Logger(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// LoadOne returns the cached record for reference unless forceRefresh is set,
// otherwise fetches, maps, persists and appends it to the manifest. Fetch and
// mapping errors are returned unchanged.
func (s *Service) LoadOne(ctx context.Context, reference string, forceRefresh bool) (*challenge.Record, error) {
	rec, _, err := s.LoadOneWithNotice(ctx, reference, forceRefresh)
	return rec, err
}

// LoadOneWithNotice is LoadOne plus a note describing a cache hit.
func (s *Service) LoadOneWithNotice(ctx context.Context, reference string, forceRefresh bool) (*challenge.Record, *challenge.Notice, error) {
	id, err := challenge.ResolveID(reference)
	if err != nil {
		return nil, nil, err
	}

	rec, cached, err := s.resolve(ctx, id, forceRefresh)
	if err != nil {
		return nil, nil, err
	}
	// Appending is idempotent; a cache hit repairs a record an earlier
	// interrupted import left out of the manifest.
	if err := s.store.AppendID(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("challenge_id", id).Msg("manifest append failed")
	}
	if cached {
		itemsTotal.WithLabelValues(outcomeCached).Inc()
		n := challenge.CacheNotice(rec, s.now())
		return rec, &n, nil
	}
	itemsTotal.WithLabelValues(outcomeAdded).Inc()
	return rec, nil, nil
}

// resolve is the cache-or-fetch step shared by single and bulk imports. A
// fetched record is Put but not appended to the manifest.
func (s *Service) resolve(ctx context.Context, id string, forceRefresh bool) (*challenge.Record, bool, error) {
	return s.resolveNamed(ctx, id, forceRefresh, "", 0)
}

// resolveNamed applies a name override before persisting and waits before
// any network call; cache hits skip the wait.
func (s *Service) resolveNamed(ctx context.Context, id string, forceRefresh bool, name string, wait time.Duration) (*challenge.Record, bool, error) {
	if !forceRefresh {
		rec, ok, err := s.store.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("challenge_id", id).Msg("cache read failed, fetching")
		} else if ok {
			if name != "" && rec.Name != name {
				rec.Name = name
				// Rename keeps cachedAt, so the cache notice still dates the fetch.
				if _, err := s.store.Rename(ctx, id, name); err != nil {
					s.logger.Warn().Err(err).Str("challenge_id", id).Msg("cache rename failed")
				}
			}
			return rec, true, nil
		}
	}

	if err := s.sleep(ctx, wait); err != nil {
		return nil, false, challenge.Wrap(challenge.KindFetch, err, "import cancelled")
	}
	rec, err := s.fetch(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if name != "" {
		rec.Name = name
	}
	if err := s.store.Put(ctx, rec); err != nil {
		// The record is still usable in memory; it just won't survive a reload.
		s.logger.Warn().Err(err).Str("challenge_id", id).Msg("cache write failed")
	}
	return rec, false, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*challenge.Record, error) {
	var (
		ch *challenge.ChallengeResponse
		hs *challenge.HighscoresResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ch, err = s.fetcher.FetchChallenge(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		hs, err = s.fetcher.FetchHighscores(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(hs.Items) == 0 {
		return nil, challenge.ErrNoResults
	}
	return challenge.MapRecord(id, ch, hs)
}

// ImportBookmarklet stores a record built from a pasted bookmarklet payload.
func (s *Service) ImportBookmarklet(ctx context.Context, data []byte) (*challenge.Record, error) {
	payload, err := challenge.ParseBookmarklet(data)
	if err != nil {
		return nil, err
	}
	rec, err := payload.Record()
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.AppendID(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ImportExportFile restores records from an export file, skipping ids that
// are already present.
func (s *Service) ImportExportFile(ctx context.Context, data []byte) (store.BatchResult, error) {
	file, err := challenge.ParseExportFile(data)
	if err != nil {
		return store.BatchResult{}, err
	}
	return s.store.BatchPut(ctx, file.Challenges)
}

// List returns every present record in manifest order.
func (s *Service) List(ctx context.Context) ([]*challenge.Record, error) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*challenge.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Export snapshots every present record into the export file format.
func (s *Service) Export(ctx context.Context) (challenge.ExportFile, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return challenge.ExportFile{}, err
	}
	return challenge.NewExportFile(recs, s.now()), nil
}

// Store exposes the backing store to handlers that operate on it directly.
func (s *Service) Store() store.Store {
	return s.store
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
