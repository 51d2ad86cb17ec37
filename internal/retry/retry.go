// Package retry decides whether a failed market request is worth sending
// again and how long to wait before it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision carries the class and a short reason used as a metric label.
type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type markedError struct {
	err      error
	decision Decision
}

func (e *markedError) Error() string { return e.err.Error() }
func (e *markedError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of what it wraps.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, decision: Decision{Class: ClassTransient, Reason: "explicit_transient"}}
}

// Terminal marks err as final. The scheduler wraps every exhausted request
// with it so callers never retry a second time.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, decision: Decision{Class: ClassTerminal, Reason: "explicit_terminal"}}
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *markedError
	if errors.As(err, &marked) {
		return marked.decision
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var coded StatusCoder
	if errors.As(err, &coded) {
		return classifyStatus(coded.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if strings.Contains(lower, rule.token) {
			return rule.decision
		}
	}
	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyStatus(code int) Decision {
	reason := fmt.Sprintf("http_%d", code)
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Decision{Class: ClassTransient, Reason: reason}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		// A revoked or mistyped API key does not heal by retrying.
		return Decision{Class: ClassTerminal, Reason: "credential_rejected"}
	case code >= 500:
		return Decision{Class: ClassTransient, Reason: reason}
	default:
		return Decision{Class: ClassTerminal, Reason: reason}
	}
}

type messageRule struct {
	token    string
	decision Decision
}

var (
	terminalByMessage  = Decision{Class: ClassTerminal, Reason: "message_terminal"}
	transientByMessage = Decision{Class: ClassTransient, Reason: "message_transient"}
)

// messageRules are checked in order; terminal tokens come first so a
// "malformed ... timeout" body is not retried.
var messageRules = []messageRule{
	{"invalid argument", terminalByMessage},
	{"malformed", terminalByMessage},
	{"parse error", terminalByMessage},
	{"unauthorized", terminalByMessage},
	{"forbidden", terminalByMessage},
	{"not found", terminalByMessage},
	{"timeout", transientByMessage},
	{"timed out", transientByMessage},
	{"temporar", transientByMessage},
	{"unavailable", transientByMessage},
	{"maintenance", transientByMessage},
	{"connection reset", transientByMessage},
	{"connection refused", transientByMessage},
	{"broken pipe", transientByMessage},
	{"unexpected eof", transientByMessage},
	{"too many requests", transientByMessage},
	{"rate limit", transientByMessage},
	{"server closed idle connection", transientByMessage},
}

// Backoff doubles the wait per attempt starting at Base, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay is the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
