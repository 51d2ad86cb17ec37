package pattern

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/signal"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
	storemocks "github.com/kimjw0623/find-angel-sub000/internal/store/mocks"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestGenerator(t *testing.T) (*Generator, *storemocks.MockListingRepository, *storemocks.MockPatternRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	listings := storemocks.NewMockListingRepository(ctrl)
	patterns := storemocks.NewMockPatternRepository(ctrl)
	g := NewGenerator(listings, patterns, GeneratorConfig{}, testLogger)
	g.newID = func() uuid.UUID { return uuid.MustParse("11111111-1111-4111-8111-111111111111") }
	g.nowFn = func() time.Time { return asOf }
	return g, listings, patterns
}

func TestGenerateWritesBuiltSet(t *testing.T) {
	t.Parallel()

	g, listings, patterns := newTestGenerator(t)
	window := &store.ListingWindow{Priced: active(necklace(1000, 70), necklace(1100, 70))}

	listings.EXPECT().Window(gomock.Any(), asOf, 7*24*time.Hour, 30*24*time.Hour).Return(window, nil)
	patterns.EXPECT().WriteGeneration(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, set *model.PatternSet) (bool, error) {
			assert.Equal(t, asOf, set.Generation.AsOf)
			assert.Len(t, set.Accessories, 2)
			assert.Empty(t, set.Bracelets)
			return true, nil
		})

	id, err := g.Generate(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-4111-8111-111111111111", id.String())
}

func TestGenerateWindowErrorSkipsWrite(t *testing.T) {
	t.Parallel()

	g, listings, _ := newTestGenerator(t)
	listings.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	id, err := g.Generate(context.Background(), asOf)
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, id)
}

func TestGenerateWriteErrorPropagates(t *testing.T) {
	t.Parallel()

	g, listings, patterns := newTestGenerator(t)
	listings.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&store.ListingWindow{}, nil)
	patterns.EXPECT().WriteGeneration(gomock.Any(), gomock.Any()).Return(false, errors.New("tx aborted"))

	_, err := g.Generate(context.Background(), asOf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx aborted")
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	g, listings, patterns := newTestGenerator(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	listings.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time, time.Duration, time.Duration) (*store.ListingWindow, error) {
			close(entered)
			<-release
			return &store.ListingWindow{}, nil
		})
	patterns.EXPECT().WriteGeneration(gomock.Any(), gomock.Any()).Return(true, nil)

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), asOf)
		done <- err
	}()
	<-entered

	_, err := g.Generate(context.Background(), asOf)
	require.ErrorIs(t, err, ErrGenerationInProgress)
	_, err = g.CopyLatest(context.Background(), asOf)
	require.ErrorIs(t, err, ErrGenerationInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestCopyLatest(t *testing.T) {
	t.Parallel()

	t.Run("copies active generation", func(t *testing.T) {
		t.Parallel()
		g, _, patterns := newTestGenerator(t)
		from := uuid.MustParse("22222222-2222-4222-8222-222222222222")
		later := asOf.Add(15 * time.Minute)

		patterns.EXPECT().ActiveGeneration(gomock.Any()).Return(&model.Generation{ID: from, AsOf: asOf, IsActive: true}, nil)
		patterns.EXPECT().CopyGeneration(gomock.Any(), from, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ uuid.UUID, gen model.Generation) (bool, error) {
				assert.Equal(t, later, gen.AsOf)
				return true, nil
			})

		id, err := g.CopyLatest(context.Background(), later)
		require.NoError(t, err)
		assert.NotEqual(t, from, id)
	})

	t.Run("nothing to copy", func(t *testing.T) {
		t.Parallel()
		g, _, patterns := newTestGenerator(t)
		patterns.EXPECT().ActiveGeneration(gomock.Any()).Return(nil, nil)

		_, err := g.CopyLatest(context.Background(), asOf)
		require.ErrorIs(t, err, ErrNoActiveGeneration)
	})
}

func TestServiceTick(t *testing.T) {
	t.Parallel()

	current := &model.Generation{ID: uuid.MustParse("22222222-2222-4222-8222-222222222222"), AsOf: asOf, IsActive: true}

	tests := []struct {
		name      string
		pending   bool
		expect    func(l *storemocks.MockListingRepository, p *storemocks.MockPatternRepository)
		publish   bool
		pendAfter bool
	}{
		{
			name:    "collection pending runs full generation",
			pending: true,
			expect: func(l *storemocks.MockListingRepository, p *storemocks.MockPatternRepository) {
				l.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&store.ListingWindow{}, nil)
				p.EXPECT().WriteGeneration(gomock.Any(), gomock.Any()).Return(true, nil)
			},
			publish: true,
		},
		{
			name: "no collection copies latest",
			expect: func(_ *storemocks.MockListingRepository, p *storemocks.MockPatternRepository) {
				p.EXPECT().ActiveGeneration(gomock.Any()).Return(current, nil)
				p.EXPECT().CopyGeneration(gomock.Any(), current.ID, gomock.Any()).Return(true, nil)
			},
			publish: true,
		},
		{
			name: "no active generation falls back to full",
			expect: func(l *storemocks.MockListingRepository, p *storemocks.MockPatternRepository) {
				p.EXPECT().ActiveGeneration(gomock.Any()).Return(nil, nil)
				l.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&store.ListingWindow{}, nil)
				p.EXPECT().WriteGeneration(gomock.Any(), gomock.Any()).Return(true, nil)
			},
			publish: true,
		},
		{
			name:    "failed generation keeps collection pending",
			pending: true,
			expect: func(l *storemocks.MockListingRepository, _ *storemocks.MockPatternRepository) {
				l.EXPECT().Window(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
			},
			pendAfter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, listings, patterns := newTestGenerator(t)
			tt.expect(listings, patterns)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			bus := signal.NewBus()
			updates, err := bus.Subscribe(ctx, signal.PatternUpdated)
			require.NoError(t, err)

			svc := NewService(g, bus, bus, ServiceConfig{}, nil, testLogger)
			svc.nowFn = func() time.Time { return asOf }
			if tt.pending {
				svc.MarkCollected()
			}
			svc.Tick(ctx)

			select {
			case msg := <-updates:
				require.True(t, tt.publish, "unexpected publish")
				assert.Equal(t, signal.PatternUpdated, msg.Type)
				assert.NotEqual(t, uuid.Nil, msg.GenerationID)
			default:
				require.False(t, tt.publish, "expected publish")
			}
			assert.Equal(t, tt.pendAfter, svc.pending.Load())
		})
	}
}

func TestServiceRunQueuesCollectionSignal(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGenerator(t)
	bus := signal.NewBus()
	svc := NewService(g, bus, bus, ServiceConfig{Schedule: "0 0 0 1 1 *"}, nil, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, signal.Message{Type: signal.CollectionCompleted, At: asOf})
		return svc.pending.Load()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
