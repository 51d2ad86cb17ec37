package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

var ErrNoCredentials = errors.New("scheduler: no credentials configured")

type PoolConfig struct {
	// MaxQuota is the request count each credential may spend per Window.
	MaxQuota int
	Window   time.Duration
	// Credentials resetting within NearResetWindow with fewer than
	// NearResetRemaining requests left are held back until they reset.
	NearResetWindow    time.Duration
	NearResetRemaining int
	// WaitMargin is added to every wait for a reset.
	WaitMargin time.Duration
	// PenaltyMargin is added to Retry-After after a 429.
	PenaltyMargin     time.Duration
	DefaultRetryAfter time.Duration
}

func (c *PoolConfig) withDefaults() {
	if c.MaxQuota <= 0 {
		c.MaxQuota = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.NearResetWindow <= 0 {
		c.NearResetWindow = 5 * time.Second
	}
	if c.NearResetRemaining <= 0 {
		c.NearResetRemaining = 10
	}
	if c.WaitMargin <= 0 {
		c.WaitMargin = 100 * time.Millisecond
	}
	if c.PenaltyMargin <= 0 {
		c.PenaltyMargin = time.Second
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = 60 * time.Second
	}
}

// Credential is one API account. All fields are guarded by the owning Pool.
type Credential struct {
	ID    string
	token string
	order int

	remaining      int
	resetAt        time.Time
	lastUsedAt     time.Time
	penalizedUntil time.Time
	inFlight       int

	limiter *Limiter
}

// CredentialState is a read-only copy of a credential's quota state.
type CredentialState struct {
	ID         string
	Remaining  int
	ResetAt    time.Time
	LastUsedAt time.Time
	InFlight   int
}

// Grant assigns Count pending requests to one credential.
type Grant struct {
	Credential *Credential
	Count      int
}

type Pool struct {
	mu    sync.Mutex
	creds []*Credential
	cfg   PoolConfig
}

func NewPool(tokens []string, cfg PoolConfig) (*Pool, error) {
	if len(tokens) == 0 {
		return nil, ErrNoCredentials
	}
	cfg.withDefaults()
	p := &Pool{cfg: cfg}
	for i, token := range tokens {
		id := fmt.Sprintf("cred-%d", i)
		p.creds = append(p.creds, &Credential{
			ID:        id,
			token:     token,
			order:     i,
			remaining: cfg.MaxQuota,
			limiter:   NewLimiter(cfg.MaxQuota, cfg.Window, cfg.MaxQuota, id),
		})
	}
	return p, nil
}

// Size returns the number of credentials.
func (p *Pool) Size() int {
	return len(p.creds)
}

// Snapshot returns the quota state of every credential in pool order.
func (p *Pool) Snapshot() []CredentialState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CredentialState, len(p.creds))
	for i, c := range p.creds {
		out[i] = CredentialState{
			ID:         c.ID,
			Remaining:  c.remaining,
			ResetAt:    c.resetAt,
			LastUsedAt: c.lastUsedAt,
			InFlight:   c.inFlight,
		}
	}
	return out
}

// Acquire reserves capacity for up to n requests. Credentials are used least
// recently used first, then in pool order, each taking up to its remaining
// count. When nothing can be granted it returns how long to wait before
// asking again.
func (p *Pool) Acquire(n int, now time.Time) ([]Grant, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var available []*Credential
	var nearReset, earliest time.Time
	for _, c := range p.creds {
		p.refresh(c, now)
		if p.isNearReset(c, now) {
			if nearReset.IsZero() || c.resetAt.Before(nearReset) {
				nearReset = c.resetAt
			}
			continue
		}
		if c.remaining > 0 {
			available = append(available, c)
			continue
		}
		if earliest.IsZero() || c.resetAt.Before(earliest) {
			earliest = c.resetAt
		}
	}

	if len(available) == 0 {
		switch {
		case !nearReset.IsZero():
			return nil, nearReset.Sub(now) + p.cfg.WaitMargin
		case !earliest.IsZero():
			return nil, earliest.Sub(now) + p.cfg.WaitMargin
		default:
			return nil, p.cfg.Window
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		a, b := available[i], available[j]
		if !a.lastUsedAt.Equal(b.lastUsedAt) {
			return a.lastUsedAt.Before(b.lastUsedAt)
		}
		return a.order < b.order
	})

	grants := make([]Grant, 0, len(available))
	left := n
	for _, c := range available {
		if left == 0 {
			break
		}
		take := c.remaining
		if take > left {
			take = left
		}
		c.remaining -= take
		c.inFlight += take
		c.lastUsedAt = now
		left -= take
		grants = append(grants, Grant{Credential: c, Count: take})
	}
	return grants, 0
}

// refresh restores a credential whose reset time has passed. It only acts on
// a reset time a flush already settled.
func (p *Pool) refresh(c *Credential, now time.Time) {
	if !c.resetAt.IsZero() && !now.Before(c.resetAt) {
		c.remaining = p.cfg.MaxQuota - c.inFlight
		if c.remaining < 0 {
			c.remaining = 0
		}
		c.resetAt = time.Time{}
		c.penalizedUntil = time.Time{}
	}
}

func (p *Pool) isNearReset(c *Credential, now time.Time) bool {
	return !c.resetAt.IsZero() &&
		c.resetAt.Sub(now) < p.cfg.NearResetWindow &&
		c.remaining < p.cfg.NearResetRemaining
}

// flushReport summarizes the responses of one credential's sub-batch.
type flushReport struct {
	sent         int
	quotas       []market.Quota
	retryAfters  []time.Duration
	rateLimited  bool
	quotaUnknown bool
}

// settle folds a flush's responses into the credential's quota state. The
// remaining count becomes the minimum reported, the reset time the maximum.
// A 429 zeroes the quota until Retry-After plus a margin has passed, and no
// success response may raise it again before then.
func (p *Pool) settle(c *Credential, rep flushReport, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.inFlight -= rep.sent
	if c.inFlight < 0 {
		c.inFlight = 0
	}
	c.lastUsedAt = now

	switch {
	case rep.rateLimited:
		wait := time.Duration(0)
		for _, ra := range rep.retryAfters {
			if ra > wait {
				wait = ra
			}
		}
		if wait <= 0 {
			wait = p.cfg.DefaultRetryAfter
		}
		c.remaining = 0
		c.resetAt = now.Add(wait + p.cfg.PenaltyMargin)
		c.penalizedUntil = c.resetAt
	case now.Before(c.penalizedUntil):
		// still serving a 429 penalty
	case rep.quotaUnknown:
		c.remaining = 0
		if !c.resetAt.After(now) {
			c.resetAt = now.Add(p.cfg.Window)
		}
	case len(rep.quotas) > 0:
		minRemaining := rep.quotas[0].Remaining
		var maxReset time.Time
		for _, q := range rep.quotas {
			if q.Remaining < minRemaining {
				minRemaining = q.Remaining
			}
			if q.ResetAt.After(maxReset) {
				maxReset = q.ResetAt
			}
		}
		c.remaining = minRemaining - c.inFlight
		if c.remaining < 0 {
			c.remaining = 0
		}
		if !maxReset.IsZero() {
			c.resetAt = maxReset
		}
	}
	// An exhausted credential with no reset information recovers after a
	// full window.
	if c.remaining <= 0 && c.resetAt.IsZero() {
		c.resetAt = now.Add(p.cfg.Window)
	}
	metrics.SchedulerQuotaRemaining.WithLabelValues(c.ID).Set(float64(c.remaining))
}
