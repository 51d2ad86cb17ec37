package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/cache"
	"github.com/kimjw0623/find-angel-sub000/internal/circuitbreaker"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

type Kind string

const (
	KindNotable   Kind = "NOTABLE_LISTING"
	KindUnhealthy Kind = "UNHEALTHY"
	KindRecovery  Kind = "RECOVERY"
)

type Alert struct {
	Kind Kind
	// Key identifies repeats of the same alert for cooldown. Empty means
	// Kind and Title.
	Key     string
	Title   string
	Message string
	Fields  map[string]string
}

func (a Alert) cooldownKey() string {
	if a.Key != "" {
		return a.Key
	}
	return string(a.Kind) + ":" + a.Title
}

type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// cooldownCapacity bounds how many distinct keys are remembered.
const cooldownCapacity = 8192

type channel struct {
	name    string
	alerter Alerter
	breaker *circuitbreaker.Breaker
}

// MultiAlerter fans alerts out to every channel. Repeats of a key inside the
// cooldown are dropped, and a channel that keeps failing is skipped until
// its breaker lets a trial through.
type MultiAlerter struct {
	channels []channel
	recent   *cache.LRU[string, struct{}]
	logger   *slog.Logger
}

func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	m := &MultiAlerter{logger: logger.With("component", "alerter")}
	if cooldown > 0 {
		m.recent = cache.NewLRU[string, struct{}](cooldownCapacity, cooldown)
	}
	for _, a := range alerters {
		name := alerterName(a)
		m.channels = append(m.channels, channel{
			name:    name,
			alerter: a,
			breaker: circuitbreaker.New(circuitbreaker.Config{
				FailureThreshold: 3,
				OpenTimeout:      time.Minute,
				OnStateChange: func(from, to circuitbreaker.State) {
					metrics.AlertBreakerState.WithLabelValues(name).Set(float64(to))
					m.logger.Warn("alert channel breaker changed", "channel", name, "from", from.String(), "to", to.String())
				},
			}),
		})
	}
	return m
}

func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	key := alert.cooldownKey()
	if m.recent != nil && !m.recent.Add(key, struct{}{}, time.Time{}) {
		m.logger.Debug("alert suppressed by cooldown", "key", key)
		metrics.AlertsSentTotal.WithLabelValues("all", "cooldown").Inc()
		return nil
	}

	var firstErr error
	for _, ch := range m.channels {
		err := ch.breaker.Do(func() error { return ch.alerter.Send(ctx, alert) })
		switch {
		case err == nil:
			metrics.AlertsSentTotal.WithLabelValues(ch.name, "ok").Inc()
			continue
		case errors.Is(err, circuitbreaker.ErrCircuitOpen):
			metrics.AlertsSentTotal.WithLabelValues(ch.name, "circuit_open").Inc()
		default:
			metrics.AlertsSentTotal.WithLabelValues(ch.name, "error").Inc()
		}
		m.logger.Warn("alert send failed", "channel", ch.name, "kind", alert.Kind, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func alerterName(a Alerter) string {
	switch a.(type) {
	case *SlackAlerter:
		return "slack"
	case *WebhookAlerter:
		return "webhook"
	case *NoopAlerter:
		return "noop"
	default:
		return "unknown"
	}
}

func sortedFields(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	emoji := ":warning:"
	switch alert.Kind {
	case KindNotable:
		emoji = ":moneybag:"
	case KindRecovery:
		emoji = ":white_check_mark:"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s *[%s]* %s\n%s", emoji, alert.Kind, alert.Title, alert.Message)
	if len(alert.Fields) > 0 {
		text.WriteString("\n")
		for _, k := range sortedFields(alert.Fields) {
			fmt.Fprintf(&text, "- *%s*: %s\n", k, alert.Fields[k])
		}
	}

	body, err := json.Marshal(map[string]string{"text": text.String()})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return postJSON(ctx, s.client, s.webhookURL, body, "slack")
}

type WebhookAlerter struct {
	url    string
	client *http.Client
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]any{
		"kind":    string(alert.Kind),
		"key":     alert.cooldownKey(),
		"title":   alert.Title,
		"message": alert.Message,
		"fields":  alert.Fields,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return postJSON(ctx, w.client, w.url, body, "webhook")
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", name, resp.StatusCode)
	}
	return nil
}

// NoopAlerter is used when no channel is configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
