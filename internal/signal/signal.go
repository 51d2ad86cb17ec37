// Package signal carries fire-and-forget notifications between the scanner,
// generator and collector processes.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	PatternUpdated      Type = "pattern_updated"
	CollectionCompleted Type = "collection_completed"
	HealthCheck         Type = "health_check"
)

type Message struct {
	Type         Type      `json:"type"`
	At           time.Time `json:"at"`
	GenerationID uuid.UUID `json:"generation_id,omitempty"`
	Source       string    `json:"source,omitempty"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode signal: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode signal: missing type")
	}
	return m, nil
}

// Publisher sends a message. Delivery is best effort: nobody listening is
// not an error.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscriber delivers messages of the given types until ctx is done, then
// closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, types ...Type) (<-chan Message, error)
}

// Bus is an in-process Publisher and Subscriber. Slow subscribers drop
// messages rather than blocking the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	types map[Type]bool
	ch    chan Message
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

func (b *Bus) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.types[msg.Type] {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, types ...Type) (<-chan Message, error) {
	sub := &subscription{types: make(map[Type]bool, len(types)), ch: make(chan Message, 16)}
	for _, t := range types {
		sub.types[t] = true
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.ch)
		b.mu.Unlock()
	}()
	return sub.ch, nil
}
