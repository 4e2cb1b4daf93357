package store

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

const (
	defaultKeyPrefix = "geochallenge"
	maxTxRetries     = 16
)

// RedisStore persists records as JSON strings and the manifest as one JSON
// array. Multi-key changes run under WATCH on the manifest and commit with
// MULTI/EXEC, retried when another writer wins the race.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "challenge_store").Logger(),
		now:    time.Now,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", s.prefix, id)
}

func (s *RedisStore) manifestKey() string {
	return s.prefix + ":manifest"
}

func (s *RedisStore) Put(ctx context.Context, rec *challenge.Record) error {
	if rec == nil || rec.ID == "" {
		return challenge.Errorf(challenge.KindStorage, "put: record without id")
	}
	key := s.recordKey(rec.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return storageErr(err, "put "+rec.ID)
	}

	cp := rec.Clone()
	now := s.now().UnixMilli()
	cp.CachedAt = now
	if exists > 0 {
		cp.LastModified = now
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return storageErr(err, "encode "+rec.ID)
	}
	return storageErr(s.client.Set(ctx, key, data, 0).Err(), "put "+rec.ID)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*challenge.Record, bool, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, storageErr(err, "get "+id)
	}

	var rec challenge.Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.ID != id {
		s.logger.Warn().Err(err).Str("challenge_id", id).Msg("purging corrupt challenge record")
		if purgeErr := s.Remove(ctx, id); purgeErr != nil {
			s.logger.Error().Err(purgeErr).Str("challenge_id", id).Msg("purge failed")
		}
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *RedisStore) Has(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.recordKey(id)).Result()
	if err != nil {
		return false, storageErr(err, "has "+id)
	}
	return n > 0, nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	key := s.recordKey(id)
	err := s.txn(ctx, func(tx *redis.Tx) error {
		ids, err := s.readManifest(ctx, tx)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if contains(ids, id) {
				return s.writeManifest(ctx, pipe, without(ids, id))
			}
			return nil
		})
		return err
	}, key)
	return storageErr(err, "remove "+id)
}

func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.readManifest(ctx, s.client)
	if err != nil {
		return nil, storageErr(err, "list ids")
	}
	return ids, nil
}

func (s *RedisStore) SetOrder(ctx context.Context, ids []string) error {
	data, err := json.Marshal(dedupe(ids))
	if err != nil {
		return storageErr(err, "encode manifest")
	}
	return storageErr(s.client.Set(ctx, s.manifestKey(), data, 0).Err(), "set order")
}

func (s *RedisStore) AppendID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := s.txn(ctx, func(tx *redis.Tx) error {
		ids, err := s.readManifest(ctx, tx)
		if err != nil {
			return err
		}
		if contains(ids, id) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeManifest(ctx, pipe, append(ids, id))
		})
		return err
	})
	return storageErr(err, "append "+id)
}

func (s *RedisStore) BatchPut(ctx context.Context, recs []*challenge.Record) (BatchResult, error) {
	res := BatchResult{TotalProcessed: len(recs)}
	err := s.txn(ctx, func(tx *redis.Tx) error {
		ids, err := s.readManifest(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now().UnixMilli()
		fresh := make([]*challenge.Record, 0, len(recs))
		for _, rec := range recs {
			if rec == nil || rec.ID == "" || contains(ids, rec.ID) {
				continue
			}
			cp := rec.Clone()
			if cp.CachedAt == 0 {
				cp.CachedAt = now
			}
			fresh = append(fresh, cp)
			ids = append(ids, cp.ID)
		}
		if len(fresh) == 0 {
			res.AddedCount = 0
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, rec := range fresh {
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
			}
			return s.writeManifest(ctx, pipe, ids)
		})
		if err == nil {
			res.AddedCount = len(fresh)
		}
		return err
	})
	if err != nil {
		return BatchResult{TotalProcessed: len(recs)}, storageErr(err, "batch put")
	}
	return res, nil
}

// Clear rescans record keys on every attempt, so a retry after a conflicting
// BatchPut also deletes the records that write added.
func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.txn(ctx, func(tx *redis.Tx) error {
		var keys []string
		iter := tx.Scan(ctx, 0, s.recordKey("*"), 200).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, s.manifestKey())
			return nil
		})
		return err
	})
	return storageErr(err, "clear")
}

func (s *RedisStore) Rename(ctx context.Context, id, name string) (bool, error) {
	key := s.recordKey(id)
	found := false
	err := s.txn(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		var rec challenge.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Name = name
		rec.LastModified = s.now().UnixMilli()
		out, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		found = err == nil
		return err
	}, key)
	if err != nil {
		return false, storageErr(err, "rename "+id)
	}
	return found, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return storageErr(s.client.Ping(ctx).Err(), "ping")
}

// txn runs fn with the manifest (and any extra keys) watched, retrying when
// a concurrent writer invalidates the transaction.
func (s *RedisStore) txn(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	watched := append([]string{s.manifestKey()}, keys...)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, watched...)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction aborted after %d conflicting attempts", maxTxRetries)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) readManifest(ctx context.Context, r stringGetter) ([]string, error) {
	data, err := r.Get(ctx, s.manifestKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.Warn().Err(err).Msg("manifest unreadable, treating as empty")
		return []string{}, nil
	}
	return ids, nil
}

func (s *RedisStore) writeManifest(ctx context.Context, pipe redis.Pipeliner, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.manifestKey(), data, 0)
	return nil
}
