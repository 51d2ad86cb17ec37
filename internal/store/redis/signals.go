package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kimjw0623/find-angel-sub000/internal/signal"
)

// Signals publishes and receives cross-process notifications over Redis
// pub/sub. Each message type has its own channel, "<namespace>:<type>".
type Signals struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger
}

func NewSignals(url, namespace string, logger *slog.Logger) (*Signals, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewSignalsWithClient(client, namespace, logger), nil
}

func NewSignalsWithClient(client *redis.Client, namespace string, logger *slog.Logger) *Signals {
	if namespace == "" {
		namespace = "findangel"
	}
	return &Signals{
		client:    client,
		namespace: namespace,
		logger:    logger.With("component", "signals"),
	}
}

func (s *Signals) Channel(t signal.Type) string {
	return s.namespace + ":" + string(t)
}

// Publish sends msg without waiting for receivers. The returned count of
// receivers is only logged.
func (s *Signals) Publish(ctx context.Context, msg signal.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	receivers, err := s.client.Publish(ctx, s.Channel(msg.Type), data).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	s.logger.Debug("signal published", "type", msg.Type, "receivers", receivers)
	return nil
}

func (s *Signals) Subscribe(ctx context.Context, types ...signal.Type) (<-chan signal.Message, error) {
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = s.Channel(t)
	}
	ps := s.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	out := make(chan signal.Message, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				msg, err := signal.Decode([]byte(raw.Payload))
				if err != nil {
					s.logger.Warn("dropping malformed signal", "channel", raw.Channel, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Signals) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Signals) Close() error {
	return s.client.Close()
}
