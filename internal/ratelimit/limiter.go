package ratelimit

import (
	"context"
	"time"
)

// Limiter applies the anonymous quota policy on top of a Store.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	nowFn  func() time.Time
}

// NewLimiter builds a limiter with the default quota. Pass a FailoverStore
// for the usual Redis-with-memory-fallback setup.
func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store:  store,
		limit:  DefaultAnonymousLimit,
		window: DefaultWindow,
		nowFn:  time.Now,
	}
}

func (l *Limiter) Limit() int { return l.limit }

// Check reports whether a request from key may proceed. It never mutates
// state; callers that go on to serve the request must call Increment.
func (l *Limiter) Check(ctx context.Context, key string, authenticated bool) (Result, error) {
	if authenticated {
		return Result{Allowed: true, Limit: l.limit, Remaining: UnlimitedRemaining}, nil
	}

	rec, ok, err := l.store.Usage(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit,
			ResetAt:   l.nowFn().Add(l.window),
		}, nil
	}

	remaining := l.limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   rec.Count < l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   rec.ResetAt,
	}, nil
}

// Increment records one served request for key. Call only after an allowed
// anonymous Check.
func (l *Limiter) Increment(ctx context.Context, key string) error {
	_, err := l.store.Increment(ctx, key, l.window)
	return err
}

// Allow combines Check and Increment for anonymous callers. When the quota
// is exhausted it returns a QuotaExceededError alongside the denial result.
func (l *Limiter) Allow(ctx context.Context, key string, authenticated bool) (Result, error) {
	res, err := l.Check(ctx, key, authenticated)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, &QuotaExceededError{Limit: res.Limit, ResetAt: res.ResetAt}
	}
	if !authenticated {
		if err := l.Increment(ctx, key); err != nil {
			return res, err
		}
		if res.Remaining > 0 {
			res.Remaining--
		}
	}
	return res, nil
}

// Usage returns the read-only quota snapshot surfaced by the status
// endpoint. Authenticated callers always report the full quota untouched.
func (l *Limiter) Usage(ctx context.Context, key string, authenticated bool) (Usage, error) {
	u := Usage{
		Limit:             l.limit,
		RequestsRemaining: l.limit,
		IsAuthenticated:   authenticated,
	}
	if authenticated {
		return u, nil
	}

	rec, ok, err := l.store.Usage(ctx, key)
	if err != nil {
		return Usage{}, err
	}
	if !ok {
		return u, nil
	}
	u.RequestsUsed = rec.Count
	u.RequestsRemaining = l.limit - rec.Count
	if u.RequestsRemaining < 0 {
		u.RequestsRemaining = 0
	}
	reset := rec.ResetAt
	u.ResetAt = &reset
	return u, nil
}
