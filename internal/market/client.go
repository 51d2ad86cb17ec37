package market

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	headerRemaining  = "X-Ratelimit-Remaining"
	headerReset      = "X-Ratelimit-Reset"
	headerRetryAfter = "Retry-After"
)

// Quota is the rate-limit state a response reported for its credential.
type Quota struct {
	Remaining int
	ResetAt   time.Time
	// Known is false when the response carried no usable quota headers.
	Known bool
}

// Response is the outcome of one search request. Page is set only for a 200
// with a decodable body; DecodeErr is set for a 200 that could not be decoded.
type Response struct {
	StatusCode int
	Page       *Page
	Quota      Quota
	QuotaErr   error
	RetryAfter time.Duration
	DecodeErr  error
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	MaxConns        int
	MaxConnsPerHost int
	Location        *time.Location
}

type Client struct {
	httpClient *http.Client
	searchURL  string
	loc        *time.Location
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 100
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 50
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		searchURL:  cfg.BaseURL + "/auctions/items",
		loc:        loc,
		logger:     logger.With("component", "market_client"),
	}
}

// Search runs one search with the given credential token. Transport failures
// are returned as errors; every HTTP response, including 429 and 5xx, is
// returned as a Response.
func (c *Client) Search(ctx context.Context, token string, q SearchQuery) (*Response, error) {
	body, err := json.Marshal(q.request())
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Authorization", "bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	now := time.Now()
	out := &Response{StatusCode: resp.StatusCode}
	out.Quota, out.QuotaErr = parseQuota(resp.Header)
	if resp.StatusCode == http.StatusTooManyRequests {
		out.RetryAfter = parseRetryAfter(resp.Header.Get(headerRetryAfter), now)
		return out, nil
	}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}

	page, err := Decode(raw, c.loc)
	if err != nil {
		out.DecodeErr = err
		return out, nil
	}
	if page.Dropped > 0 {
		c.logger.Debug("dropped undecodable rows", "page", q.Page, "dropped", page.Dropped)
	}
	out.Page = page
	return out, nil
}

// readBody reads and decompresses a response body.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}
	return io.ReadAll(reader)
}

func parseQuota(h http.Header) (Quota, error) {
	rawRemaining := h.Get(headerRemaining)
	rawReset := h.Get(headerReset)
	if rawRemaining == "" && rawReset == "" {
		return Quota{}, nil
	}
	var q Quota
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil {
		return Quota{}, fmt.Errorf("parse %s %q: %w", headerRemaining, rawRemaining, err)
	}
	q.Remaining = remaining
	if rawReset != "" {
		epoch, err := strconv.ParseFloat(rawReset, 64)
		if err != nil {
			return Quota{}, fmt.Errorf("parse %s %q: %w", headerReset, rawReset, err)
		}
		q.ResetAt = time.Unix(0, int64(epoch*float64(time.Second)))
	}
	q.Known = true
	return q, nil
}

// parseRetryAfter accepts delay seconds or an HTTP date. Zero means absent.
func parseRetryAfter(raw string, now time.Time) time.Duration {
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(raw); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
