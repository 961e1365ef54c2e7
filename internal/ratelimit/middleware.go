package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tokkyo-ai/tokkyo/internal/ctxutil"
	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// RequestIDFunc extracts the request ID from the request context. Injected
// by the server to avoid a dependency on its context keys.
type RequestIDFunc func(r *http.Request) string

// Middleware enforces the limiter on every request. Authenticated requests
// are keyed by tenant; unauthenticated ones (token exchange, health) by
// client IP. A limiter error fails open: a broken limiter must not take the
// API down with it.
func Middleware(limiter Limiter, logger *slog.Logger, reqIDFn RequestIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter error, failing open", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "1")
				var requestID string
				if reqIDFn != nil {
					requestID = reqIDFn(r)
				}
				writeRateLimited(w, requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestKey buckets by tenant when the auth middleware has populated the
// context, and by client IP otherwise. RemoteAddr only: X-Forwarded-For is
// client-controlled and would let callers mint fresh buckets at will.
func requestKey(r *http.Request) string {
	if claims := ctxutil.ClaimsFromContext(r.Context()); claims != nil {
		return "tenant:" + claims.TenantID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func writeRateLimited(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{
			Code:    model.ErrCodeRateLimited,
			Message: "too many requests",
		},
		Meta: model.ResponseMeta{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	})
}
