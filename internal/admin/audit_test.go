package admin

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})), &buf
}

func TestAuditMiddleware_LogsMutatingRequests(t *testing.T) {
	logger, logBuf := newAuditLogger()

	handler := AuditMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", strings.NewReader(`{"reason":"manual"}`))
	req.SetBasicAuth("ops", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	out := logBuf.String()
	assert.Contains(t, out, "admin API audit")
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, "/admin/v1/patterns/reload")
	assert.Contains(t, out, `"user":"ops"`)
	assert.Contains(t, out, `"response_status":202`)
}

func TestAuditMiddleware_SkipsReads(t *testing.T) {
	logger, logBuf := newAuditLogger()

	handler := AuditMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil))
	assert.Zero(t, logBuf.Len())
}

func TestAuditMiddleware_TruncatesLargeBodyAndKeepsItForHandler(t *testing.T) {
	logger, logBuf := newAuditLogger()

	largeBody := strings.Repeat("x", 2000)
	var seen string
	handler := AuditMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(data)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", strings.NewReader(largeBody)))

	assert.Contains(t, logBuf.String(), "truncated")
	assert.Equal(t, largeBody, seen)
}

func TestAuditMiddleware_RecordsFirstStatusOnly(t *testing.T) {
	logger, logBuf := newAuditLogger()

	handler := AuditMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/v1/patterns/reload", nil))
	assert.Contains(t, logBuf.String(), `"response_status":502`)
}
