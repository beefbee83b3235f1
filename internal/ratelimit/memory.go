package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps quota records in a per-process map. It is the fallback
// backend when Redis is unavailable; counts reset on restart and are not
// shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	nowFn   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		nowFn:   time.Now,
	}
}

func (s *MemoryStore) Usage(ctx context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	if rec.Expired(s.nowFn()) {
		delete(s.records, key)
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = Record{WindowStart: now, ResetAt: now.Add(window)}
	}
	rec.Count++
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
