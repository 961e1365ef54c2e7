// Package ratelimit provides per-tenant request rate limiting.
//
// The server ships an in-memory token bucket (MemoryLimiter). Multi-instance
// deployments can substitute a shared-store implementation; the Limiter
// interface is the contract.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. Keys are opaque;
	// the middleware uses "tenant:<uuid>" for authenticated requests and
	// "ip:<addr>" otherwise. An error signals a limiter malfunction and
	// callers treat it as fail-open.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
