package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/cache"
)

// CacheSnapshotStore keeps the latest poll result and short-lived signal
// responses in a cache.Store (memory or redis). Nothing is kept past its TTL.
type CacheSnapshotStore struct {
	store     cache.Store
	resultTTL time.Duration
}

// NewCacheSnapshotStore creates the store. resultTTL bounds how long a poll result stays readable.
func NewCacheSnapshotStore(store cache.Store, resultTTL time.Duration) repository.SnapshotStore {
	return &CacheSnapshotStore{store: store, resultTTL: resultTTL}
}

func resultKey(ds models.Dataset) string  { return "result:" + string(ds) }
func signalsKey(ds models.Dataset) string { return "signals:" + string(ds) }

func (s *CacheSnapshotStore) SaveResult(ctx context.Context, r models.PollResult) error {
	if err := cache.SetJSON(ctx, s.store, resultKey(r.Dataset), r, s.resultTTL); err != nil {
		return fmt.Errorf("save result %s: %w", r.Dataset, err)
	}
	return nil
}

func (s *CacheSnapshotStore) LatestResult(ctx context.Context, ds models.Dataset) (models.PollResult, bool, error) {
	r, err := cache.GetJSON[models.PollResult](ctx, s.store, resultKey(ds))
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.PollResult{}, false, nil
	}
	if err != nil {
		return models.PollResult{}, false, fmt.Errorf("load result %s: %w", ds, err)
	}
	return r, true, nil
}

func (s *CacheSnapshotStore) SaveSignals(ctx context.Context, ds models.Dataset, signals []models.Signal, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := cache.SetJSON(ctx, s.store, signalsKey(ds), signals, ttl); err != nil {
		return fmt.Errorf("save signals %s: %w", ds, err)
	}
	return nil
}

func (s *CacheSnapshotStore) CachedSignals(ctx context.Context, ds models.Dataset) ([]models.Signal, bool, error) {
	out, err := cache.GetJSON[[]models.Signal](ctx, s.store, signalsKey(ds))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load signals %s: %w", ds, err)
	}
	return out, true, nil
}
