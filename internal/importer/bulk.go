package importer

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

// Progress is the running tally reported after every settled item.
type Progress struct {
	AddedCount     int `json:"addedCount"`
	FailedCount    int `json:"failedCount"`
	TotalCount     int `json:"totalCount"`
	RemainingCount int `json:"remainingCount"`
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// ItemError records why one reference of a bulk import failed.
type ItemError struct {
	URL   string
	Index int
	Err   error
}

func (e ItemError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL   string         `json:"url"`
		Index int            `json:"index"`
		Error string         `json:"error"`
		Kind  challenge.Kind `json:"kind"`
	}{e.URL, e.Index, e.Err.Error(), challenge.KindOf(e.Err)})
}

// BulkResult is the outcome of LoadMany. Results are in input order.
type BulkResult struct {
	Results     []*challenge.Record `json:"results"`
	Errors      []ItemError         `json:"errors"`
	AddedCount  int                 `json:"addedCount"`
	FailedCount int                 `json:"failedCount"`
	TotalCount  int                 `json:"totalCount"`
	SuccessRate float64             `json:"successRate"`
}

// LoadMany imports references in sequential batches of concurrent items.
// Each item follows the LoadOne cache-or-fetch path; failures are collected
// per item and never abort the run. Once every batch has settled the ids are
// appended to the manifest in input order, whatever order the fetches
// finished in.
//
// names, when non-nil, must be parallel to references; a non-empty entry
// overrides the stored record's name.
func (s *Service) LoadMany(ctx context.Context, references []string, onProgress ProgressFunc, forceRefresh bool, names []string) (*BulkResult, error) {
	if err := validateBatch(references, names); err != nil {
		return nil, err
	}

	total := len(references)
	slots := make([]*challenge.Record, total)
	var (
		mu       sync.Mutex
		progress = Progress{TotalCount: total, RemainingCount: total}
		failures []ItemError
	)

	settle := func(idx int, rec *challenge.Record, cached bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures = append(failures, ItemError{URL: references[idx], Index: idx, Err: err})
			progress.FailedCount++
			itemsTotal.WithLabelValues(outcomeFailed).Inc()
			s.logger.Debug().Err(err).Int("index", idx).Str("reference", references[idx]).Msg("bulk item failed")
		} else {
			slots[idx] = rec
			progress.AddedCount++
			if cached {
				itemsTotal.WithLabelValues(outcomeCached).Inc()
			} else {
				itemsTotal.WithLabelValues(outcomeAdded).Inc()
			}
		}
		progress.RemainingCount--
		if onProgress != nil {
			onProgress(progress)
		}
	}

	size := s.policy.BatchSize
	batches := int(math.Ceil(float64(total) / float64(size)))
	s.logger.Info().Int("total", total).Int("batches", batches).Bool("force_refresh", forceRefresh).Msg("bulk import started")

	for b := 0; b < batches; b++ {
		start := b * size
		end := min(start+size, total)

		var waitErr error
		if b > 0 {
			waitErr = s.sleep(ctx, s.policy.BatchDelay)
		} else {
			waitErr = ctx.Err()
		}
		if waitErr != nil {
			// Nothing further is scheduled once cancelled; unstarted items fail.
			cause := challenge.Wrap(challenge.KindFetch, waitErr, "import cancelled")
			for idx := start; idx < total; idx++ {
				settle(idx, nil, false, cause)
			}
			s.logger.Warn().Int("skipped", total-start).Msg("bulk import cancelled")
			break
		}

		var wg sync.WaitGroup
		for idx := start; idx < end; idx++ {
			wg.Add(1)
			go func(idx, pos int) {
				defer wg.Done()
				name := ""
				if names != nil {
					name = names[idx]
				}
				rec, cached, err := s.loadItem(ctx, references[idx], forceRefresh, name, time.Duration(pos)*s.policy.Stagger)
				settle(idx, rec, cached, err)
			}(idx, idx-start)
		}
		wg.Wait()
	}

	// Records already Put must reach the manifest even when ctx was cancelled
	// mid-run, otherwise they would be stored but never listed.
	appendCtx := context.WithoutCancel(ctx)
	results := make([]*challenge.Record, 0, progress.AddedCount)
	for _, rec := range slots {
		if rec == nil {
			continue
		}
		results = append(results, rec)
		if err := s.store.AppendID(appendCtx, rec.ID); err != nil {
			s.logger.Warn().Err(err).Str("challenge_id", rec.ID).Msg("manifest append failed")
		}
	}

	sortItemErrors(failures)
	res := &BulkResult{
		Results:     results,
		Errors:      failures,
		AddedCount:  progress.AddedCount,
		FailedCount: progress.FailedCount,
		TotalCount:  total,
		SuccessRate: successRate(progress.AddedCount, total),
	}
	if res.Errors == nil {
		res.Errors = []ItemError{}
	}
	s.logger.Info().
		Int("added", res.AddedCount).
		Int("failed", res.FailedCount).
		Float64("success_rate", res.SuccessRate).
		Msg("bulk import finished")
	return res, nil
}

func (s *Service) loadItem(ctx context.Context, reference string, forceRefresh bool, name string, wait time.Duration) (*challenge.Record, bool, error) {
	id, err := challenge.ResolveID(reference)
	if err != nil {
		return nil, false, err
	}
	return s.resolveNamed(ctx, id, forceRefresh, name, wait)
}

func validateBatch(references, names []string) error {
	if len(references) == 0 {
		return challenge.Errorf(challenge.KindInvalidInput, "no challenge references given")
	}
	if names != nil && len(names) != len(references) {
		return challenge.Errorf(challenge.KindInvalidInput,
			"names has %d entries for %d references", len(names), len(references))
	}
	return nil
}

func successRate(added, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(added) / float64(total) * 100
}

func sortItemErrors(errs []ItemError) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
}
