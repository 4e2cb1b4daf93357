package store

import (
	"context"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

// Store persists challenge records plus the manifest, the ordered id list
// that defines display order. A challenge is present when its id is in the
// manifest and its record exists.
//
// Operations that touch both records and the manifest (Remove, Clear,
// BatchPut) are all-or-nothing.
type Store interface {
	// Put upserts a record without changing the manifest.
	Put(ctx context.Context, rec *challenge.Record) error
	// Get returns (nil, false, nil) when the record is missing or corrupt.
	Get(ctx context.Context, id string) (*challenge.Record, bool, error)
	Has(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
	SetOrder(ctx context.Context, ids []string) error
	AppendID(ctx context.Context, id string) error
	// BatchPut inserts only ids not yet in the manifest and appends them.
	BatchPut(ctx context.Context, recs []*challenge.Record) (BatchResult, error)
	Clear(ctx context.Context) error
	// Rename reports false when the id is absent.
	Rename(ctx context.Context, id, name string) (bool, error)
	Ping(ctx context.Context) error
}

// BatchResult summarises a BatchPut.
type BatchResult struct {
	AddedCount     int `json:"addedCount"`
	TotalProcessed int `json:"totalProcessed"`
}

func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return challenge.Wrap(challenge.KindStorage, err, op)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
