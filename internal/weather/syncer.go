package weather

import (
	"context"
	"errors"
	"time"

	"github.com/vetrodar/cabinbooking/internal/domain"
)

var ErrSyncDisabled = errors.New("weather sync is disabled")

type Repository interface {
	ListBySpot(ctx context.Context, spot string) ([]domain.ForecastRow, error)
	BatchInsert(ctx context.Context, rows []domain.ForecastRow) error
	DeleteBefore(ctx context.Context, spot string, cutoff time.Time) (int64, error)
}

type Cache interface {
	GetForecast(ctx context.Context, spot string) ([]domain.ForecastRow, error)
	SetForecast(ctx context.Context, spot string, rows []domain.ForecastRow) error
}

type SyncStats struct {
	Spot      string `json:"spot"`
	Fetched   int    `json:"fetched"`
	Inserted  int    `json:"inserted"`
	Deleted   int64  `json:"deleted"`
	FromCache bool   `json:"from_cache"`
}

type Syncer struct {
	provider  Provider
	repo      Repository
	cache     Cache
	enabled   bool
	retention time.Duration
}

func NewSyncer(provider Provider, repo Repository, cache Cache, enabled bool, retention time.Duration) *Syncer {
	return &Syncer{
		provider:  provider,
		repo:      repo,
		cache:     cache,
		enabled:   enabled,
		retention: retention,
	}
}

// Sync is a diff-and-store pass: fetch the forecast for a spot, drop the rows
// already present, batch-insert the fresh ones and trim everything older than
// the retention window. The Redis cache short-circuits the provider call when
// a recent response is still within its TTL.
func (s *Syncer) Sync(ctx context.Context, spot string) (*SyncStats, error) {
	if !s.enabled {
		return nil, ErrSyncDisabled
	}

	stats := &SyncStats{Spot: spot}

	var rows []domain.ForecastRow
	if s.cache != nil {
		if cached, err := s.cache.GetForecast(ctx, spot); err == nil && cached != nil {
			rows = cached
			stats.FromCache = true
		}
	}
	if rows == nil {
		fetched, err := s.provider.Fetch(ctx, spot)
		if err != nil {
			return nil, err
		}
		rows = fetched
		if s.cache != nil {
			_ = s.cache.SetForecast(ctx, spot, rows)
		}
	}
	stats.Fetched = len(rows)

	existing, err := s.repo.ListBySpot(ctx, spot)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, row := range existing {
		seen[row.Timestamp.Unix()] = struct{}{}
	}

	fresh := make([]domain.ForecastRow, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.Timestamp.Unix()]; ok {
			continue
		}
		fresh = append(fresh, row)
	}
	if len(fresh) > 0 {
		if err := s.repo.BatchInsert(ctx, fresh); err != nil {
			return nil, err
		}
	}
	stats.Inserted = len(fresh)

	if s.retention > 0 {
		deleted, err := s.repo.DeleteBefore(ctx, spot, time.Now().Add(-s.retention))
		if err != nil {
			return nil, err
		}
		stats.Deleted = deleted
	}

	return stats, nil
}
