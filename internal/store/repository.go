package store

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . ListingRepository,PatternRepository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

// ListingWindow is the slice of listing history one generation reads.
type ListingWindow struct {
	// Priced holds ACTIVE listings plus listings sold within the sold window.
	Priced []model.ListingRecord
	// Outcomes holds SOLD and EXPIRED listings within the success window.
	Outcomes []model.ListingRecord
}

// UnseenResult counts the listings a collection cycle closed out.
type UnseenResult struct {
	Sold    int64
	Expired int64
}

// ListingRepository provides access to collected listing history.
type ListingRepository interface {
	UpsertBatch(ctx context.Context, listings []model.Listing, seenAt time.Time) (int, error)
	// MarkUnseen closes ACTIVE listings of the given scope whose last sighting
	// is before seenBefore: SOLD while their expiry is still ahead of now,
	// EXPIRED otherwise.
	MarkUnseen(ctx context.Context, scope []model.Category, seenBefore, now time.Time) (UnseenResult, error)
	Window(ctx context.Context, asOf time.Time, soldWithin, outcomeWithin time.Duration) (*ListingWindow, error)
}

// PatternRepository provides access to pattern generations and their rows.
type PatternRepository interface {
	// ActiveGeneration returns nil, nil when nothing was ever activated.
	ActiveGeneration(ctx context.Context) (*model.Generation, error)
	LatestGeneration(ctx context.Context) (*model.Generation, error)
	ListGenerations(ctx context.Context, limit int) ([]model.Generation, error)
	LoadGeneration(ctx context.Context, id uuid.UUID) (*model.PatternSet, error)
	// WriteGeneration stores every row of set and activates it in the same
	// transaction unless a generation with a newer as_of already exists.
	WriteGeneration(ctx context.Context, set *model.PatternSet) (activated bool, err error)
	// CopyGeneration re-stamps the rows of from under gen, following the same
	// activation rule as WriteGeneration.
	CopyGeneration(ctx context.Context, from uuid.UUID, gen model.Generation) (activated bool, err error)
}
