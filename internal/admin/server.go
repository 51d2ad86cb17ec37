// Package admin serves the operator API of a running scanner: what the
// pattern cache holds, where each horizon's cursor stands, recent pattern
// generations, and a manual cache reload.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/health"
	"github.com/kimjw0623/find-angel-sub000/internal/patterncache"
	"github.com/kimjw0623/find-angel-sub000/internal/scan"
)

const (
	defaultGenerationLimit = 10
	maxGenerationLimit     = 100
)

// PatternCache is the part of *patterncache.Cache the admin API reads and
// reloads.
type PatternCache interface {
	Snapshot() *patterncache.Snapshot
	State() patterncache.State
	Reload(ctx context.Context, trigger string) (bool, error)
}

// CursorSource reports one horizon's committed cursor. *scan.Engine
// implements it.
type CursorSource interface {
	Cursor() scan.Cursor
}

type GenerationLister interface {
	ListGenerations(ctx context.Context, limit int) ([]model.Generation, error)
}

type HealthProvider interface {
	Report() health.Report
}

type Server struct {
	cache       PatternCache
	cursors     []CursorSource
	generations GenerationLister
	health      HealthProvider
	logger      *slog.Logger
}

type ServerOption func(*Server)

func WithCursors(sources ...CursorSource) ServerOption {
	return func(s *Server) { s.cursors = append(s.cursors, sources...) }
}

func WithGenerations(lister GenerationLister) ServerOption {
	return func(s *Server) { s.generations = lister }
}

func WithHealth(hp HealthProvider) ServerOption {
	return func(s *Server) { s.health = hp }
}

func NewServer(cache PatternCache, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cache:  cache,
		logger: logger.With("component", "admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes without auth, rate limiting or audit.
// NewHandler wraps them.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/status", s.handleStatus)
	mux.HandleFunc("GET /admin/v1/generations", s.handleGenerations)
	mux.HandleFunc("POST /admin/v1/patterns/reload", s.handleReload)
	return mux
}

// NewHandler is the full middleware chain: basic auth when a password is
// set, then per-client rate limiting, then the audit log.
func NewHandler(s *Server, rl *RateLimitMiddleware, user, password string) http.Handler {
	h := AuditMiddleware(s.logger, s.Handler())
	h = rl.Wrap(h)
	if password != "" {
		h = BasicAuthMiddleware("admin", user, password, h)
	}
	return h
}

// BasicAuthMiddleware rejects requests whose credentials do not match.
func BasicAuthMiddleware(realm, user, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type cacheStatus struct {
	State            string     `json:"state"`
	GenerationID     *uuid.UUID `json:"generation_id,omitempty"`
	AsOf             *time.Time `json:"as_of,omitempty"`
	AccessoryPattern int        `json:"accessory_patterns"`
	BraceletPatterns int        `json:"bracelet_patterns"`
}

type cursorStatus struct {
	Horizon      string     `json:"horizon"`
	Watermark    *time.Time `json:"watermark,omitempty"`
	PageEstimate *int       `json:"page_estimate,omitempty"`
}

type statusResponse struct {
	Cache   cacheStatus    `json:"cache"`
	Cursors []cursorStatus `json:"cursors"`
	Health  *health.Report `json:"health,omitempty"`
}

func (s *Server) cacheStatus() cacheStatus {
	snap := s.cache.Snapshot()
	acc, br := snap.Size()
	out := cacheStatus{
		State:            s.cache.State().String(),
		AccessoryPattern: acc,
		BraceletPatterns: br,
	}
	if id := snap.GenerationID(); id != uuid.Nil {
		asOf := snap.Generation().AsOf
		out.GenerationID = &id
		out.AsOf = &asOf
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Cache:   s.cacheStatus(),
		Cursors: make([]cursorStatus, 0, len(s.cursors)),
	}
	for _, src := range s.cursors {
		c := src.Cursor()
		resp.Cursors = append(resp.Cursors, cursorStatus{
			Horizon:      c.Horizon.String(),
			Watermark:    c.Watermark,
			PageEstimate: c.PageEstimate,
		})
	}
	if s.health != nil {
		rep := s.health.Report()
		resp.Health = &rep
	}
	writeJSON(w, http.StatusOK, resp)
}

type generationResponse struct {
	ID        uuid.UUID `json:"id"`
	AsOf      time.Time `json:"as_of"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	if s.generations == nil {
		http.Error(w, `{"error":"generation listing not configured"}`, http.StatusServiceUnavailable)
		return
	}

	limit := defaultGenerationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxGenerationLimit {
			http.Error(w, `{"error":"limit must be between 1 and 100"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	gens, err := s.generations.ListGenerations(r.Context(), limit)
	if err != nil {
		s.logger.Error("list generations failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	out := make([]generationResponse, 0, len(gens))
	for _, g := range gens {
		out = append(out, generationResponse{ID: g.ID, AsOf: g.AsOf, IsActive: g.IsActive, CreatedAt: g.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

type reloadResponse struct {
	Swapped bool        `json:"swapped"`
	Cache   cacheStatus `json:"cache"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	swapped, err := s.cache.Reload(r.Context(), "admin")
	if err != nil {
		s.logger.Error("manual pattern reload failed", "error", err)
		http.Error(w, `{"error":"reload failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{Swapped: swapped, Cache: s.cacheStatus()})
}
