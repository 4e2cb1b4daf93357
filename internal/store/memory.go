package store

import (
	"context"
	"sync"
	"time"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

// MemoryStore keeps everything in process. Used by tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*challenge.Record
	manifest []string
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*challenge.Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, rec *challenge.Record) error {
	if rec == nil || rec.ID == "" {
		return challenge.Errorf(challenge.KindStorage, "put: record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := rec.Clone()
	now := s.now().UnixMilli()
	cp.CachedAt = now
	if _, exists := s.records[cp.ID]; exists {
		cp.LastModified = now
	}
	s.records[cp.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*challenge.Record, bool, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if rec.ID != id {
		s.mu.Lock()
		delete(s.records, id)
		s.manifest = without(s.manifest, id)
		s.mu.Unlock()
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemoryStore) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	s.manifest = without(s.manifest, id)
	return nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.manifest...), nil
}

func (s *MemoryStore) SetOrder(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = dedupe(ids)
	return nil
}

func (s *MemoryStore) AppendID(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.manifest, id) {
		s.manifest = append(s.manifest, id)
	}
	return nil
}

func (s *MemoryStore) BatchPut(_ context.Context, recs []*challenge.Record) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := BatchResult{TotalProcessed: len(recs)}
	now := s.now().UnixMilli()
	for _, rec := range recs {
		if rec == nil || rec.ID == "" || contains(s.manifest, rec.ID) {
			continue
		}
		cp := rec.Clone()
		if cp.CachedAt == 0 {
			cp.CachedAt = now
		}
		s.records[cp.ID] = cp
		s.manifest = append(s.manifest, cp.ID)
		res.AddedCount++
	}
	return res, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*challenge.Record)
	s.manifest = nil
	return nil
}

func (s *MemoryStore) Rename(_ context.Context, id, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	cp := rec.Clone()
	cp.Name = name
	cp.LastModified = s.now().UnixMilli()
	s.records[id] = cp
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
