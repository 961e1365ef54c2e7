package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/ctxutil"
	"github.com/tokkyo-ai/tokkyo/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// errLimiter simulates a malfunctioning limiter backend.
type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("backend unavailable")
}
func (errLimiter) Close() error { return nil }

func TestMiddlewareLimitsByIP(t *testing.T) {
	m := NewMemoryLimiter(0.001, 2)
	defer m.Close()

	h := Middleware(m, testLogger(), nil)(okHandler())

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/v1/matters", nil)
		r.RemoteAddr = "203.0.113.7:51234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	w := do()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body model.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
}

func TestMiddlewareKeysAuthenticatedRequestsByTenant(t *testing.T) {
	m := NewMemoryLimiter(0.001, 1)
	defer m.Close()

	h := Middleware(m, testLogger(), nil)(okHandler())
	tenantID := uuid.New()

	do := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/v1/matters", nil)
		r.RemoteAddr = addr
		ctx := ctxutil.WithClaims(r.Context(), &auth.Claims{TenantID: tenantID})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r.WithContext(ctx))
		return w.Code
	}

	// Same tenant from two addresses shares one bucket.
	require.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.2:2222"))
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	h := Middleware(errLimiter{}, testLogger(), nil)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/v1/matters", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	h := Middleware(nil, testLogger(), nil)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/v1/matters", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
