package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// breakerDuration is how long the primary store stays sidelined after a
// failure before it is probed again.
const breakerDuration = 30 * time.Second

// FailoverStore serves from a durable primary and falls back to an
// in-process store when the primary errors. Failing open to the fallback
// degrades accuracy (per-instance counts) rather than availability.
type FailoverStore struct {
	primary  Store
	fallback Store

	mu         sync.Mutex
	downUntil  time.Time
	loggedDown bool
	nowFn      func() time.Time
}

func NewFailoverStore(primary, fallback Store) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		nowFn:    time.Now,
	}
}

// primaryAvailable reports whether the primary should be tried.
func (s *FailoverStore) primaryAvailable() bool {
	if s.primary == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.nowFn().Before(s.downUntil)
}

func (s *FailoverStore) markDown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downUntil = s.nowFn().Add(breakerDuration)
	if !s.loggedDown {
		log.Printf("[RATELIMIT] durable store unavailable, serving from memory: %v", err)
		s.loggedDown = true
	}
}

func (s *FailoverStore) markUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedDown {
		log.Printf("[RATELIMIT] durable store recovered")
	}
	s.loggedDown = false
	s.downUntil = time.Time{}
}

func (s *FailoverStore) Usage(ctx context.Context, key string) (Record, bool, error) {
	if s.primaryAvailable() {
		rec, ok, err := s.primary.Usage(ctx, key)
		if err == nil {
			s.markUp()
			return rec, ok, nil
		}
		s.markDown(err)
	}
	return s.fallback.Usage(ctx, key)
}

func (s *FailoverStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	if s.primaryAvailable() {
		rec, err := s.primary.Increment(ctx, key, window)
		if err == nil {
			s.markUp()
			return rec, nil
		}
		s.markDown(err)
	}
	return s.fallback.Increment(ctx, key, window)
}

func (s *FailoverStore) Reset(ctx context.Context, key string) error {
	var primaryErr error
	if s.primaryAvailable() {
		if primaryErr = s.primary.Reset(ctx, key); primaryErr != nil {
			s.markDown(primaryErr)
		}
	}
	// Always clear the fallback too so a later failover does not resurrect
	// a stale count.
	if err := s.fallback.Reset(ctx, key); err != nil {
		return err
	}
	return primaryErr
}
