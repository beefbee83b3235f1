// Package ratelimit enforces the anonymous usage quota on the AI endpoints.
// Anonymous callers are keyed by client IP and limited to a fixed number of
// requests per 24h window; authenticated callers bypass the quota entirely.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAnonymousLimit is the number of requests an anonymous client
	// may make within a single window.
	DefaultAnonymousLimit = 3

	// DefaultWindow is the fixed quota window. The window starts at the
	// first request and is not sliding.
	DefaultWindow = 24 * time.Hour

	// UnlimitedRemaining marks callers that are not subject to the quota.
	UnlimitedRemaining = -1
)

// Record is the persisted per-key state.
type Record struct {
	Count       int
	WindowStart time.Time
	ResetAt     time.Time
}

// Expired reports whether the record's window has elapsed.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ResetAt)
}

// Result is the outcome of a quota check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Usage is a read-only snapshot of a key's quota state.
type Usage struct {
	RequestsUsed      int        `json:"requests_used"`
	RequestsRemaining int        `json:"requests_remaining"`
	Limit             int        `json:"limit"`
	ResetAt           *time.Time `json:"reset_at,omitempty"`
	IsAuthenticated   bool       `json:"is_authenticated"`
}

// QuotaExceededError reports an exhausted anonymous quota. The HTTP layer
// renders it as 429 with the reset time and a sign-in hint.
type QuotaExceededError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d requests exceeded, resets at %s",
		e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Store persists per-key quota records. Implementations must treat expired
// records as absent and make Increment atomic per key.
type Store interface {
	// Usage returns the current record for key. ok is false when no live
	// record exists.
	Usage(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Increment adds one request to key's window, creating the window when
	// absent or expired, and returns the resulting record.
	Increment(ctx context.Context, key string, window time.Duration) (Record, error)
	// Reset removes key's record.
	Reset(ctx context.Context, key string) error
}

// ClientKey extracts the rate-limit key for a request: the first entry of
// X-Forwarded-For when present, otherwise the peer address. Trusting the
// header means the key is spoofable; the quota is a soft cost control, not
// a security boundary.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
