// Package ratelimit admits or denies analysis submissions per client using a
// fixed-window counter kept in the shared cache.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/kontrategy/kontrategy-api/internal/cache"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
)

const (
	DefaultMax    = 5
	DefaultWindow = time.Hour
)

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts submissions per client identity. The increment that pushes a
// client over the limit is kept, so denied attempts still count.
type Limiter struct {
	cache  cache.Cache
	max    int
	window time.Duration
}

// New creates a Limiter. Non-positive values select the defaults.
func New(c cache.Cache, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{cache: c, max: limit, window: window}
}

// Limit returns the number of submissions allowed per window.
func (l *Limiter) Limit() int { return l.max }

// Window returns the window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Admit counts one attempt for clientID and reports whether it is allowed.
// A cache failure admits the request (fail open) and is returned alongside the
// decision so the caller can log it.
func (l *Limiter) Admit(ctx context.Context, clientID string) (Decision, error) {
	count, ttl, err := l.cache.IncrWithExpiry(ctx, cache.RateLimitKey(clientID), l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max}, err
	}

	if ttl <= 0 {
		ttl = l.window
	}

	d := Decision{
		Allowed:   count <= int64(l.max),
		Count:     count,
		Limit:     l.max,
		Remaining: max(l.max-int(count), 0),
	}
	if !d.Allowed {
		d.RetryAfter = ttl
		metrics.ObserveRateLimitDenied()
		slog.Info("rate limit exceeded", "client_id", clientID, "count", count, "retry_after", ttl)
	}
	return d, nil
}
