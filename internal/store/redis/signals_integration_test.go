//go:build integration

package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kimjw0623/find-angel-sub000/internal/signal"
	storeredis "github.com/kimjw0623/find-angel-sub000/internal/store/redis"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}

func TestSignalsPublishSubscribe(t *testing.T) {
	url := setupRedis(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	pub, err := storeredis.NewSignals(url, "it", logger)
	require.NoError(t, err)
	defer pub.Close()
	sub, err := storeredis.NewSignals(url, "it", logger)
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := sub.Subscribe(ctx, signal.PatternUpdated)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, signal.Message{Type: signal.CollectionCompleted, At: time.Now()}))
	require.NoError(t, pub.Publish(ctx, signal.Message{Type: signal.PatternUpdated, At: time.Now(), Source: "generator"}))

	select {
	case msg := <-ch:
		assert.Equal(t, signal.PatternUpdated, msg.Type)
		assert.Equal(t, "generator", msg.Source)
	case <-ctx.Done():
		t.Fatal("signal not received")
	}
}
