package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsNormalRequests(t *testing.T) {
	rl := NewRateLimitMiddleware(slog.Default())
	handler := rl.Wrap(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, rl.LimiterCount())
}

func TestRateLimitMiddleware_BlocksRepeatedReload(t *testing.T) {
	rl := NewRateLimitMiddleware(slog.Default())
	handler := rl.Wrap(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "10", second.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_ClientsAndEndpointsIndependent(t *testing.T) {
	rl := NewRateLimitMiddleware(slog.Default())
	handler := rl.Wrap(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", nil))

	other := httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "a different client has its own limiter")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "other endpoints are unaffected")
}

func TestExtractClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"}, remote: "10.0.0.1:1234", want: "198.51.100.2"},
		{name: "real ip", header: map[string]string{"X-Real-IP": " 198.51.100.3 "}, remote: "10.0.0.1:1234", want: "198.51.100.3"},
		{name: "remote addr", remote: "192.0.2.7:5555", want: "192.0.2.7"},
		{name: "remote without port", remote: "192.0.2.8", want: "192.0.2.8"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}
