package cache

import (
	"context"
	"time"

	"salepoint/backend/internal/domain"
)

// StockCache holds advisory stock-check results keyed by cart fingerprint.
// Entries may go stale within their TTL; the commit transaction never reads
// from here.
type StockCache interface {
	Get(ctx context.Context, key string) (*domain.StockCheckResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.StockCheckResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string) (*domain.StockCheckResponse, bool, error) {
	return nil, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ *domain.StockCheckResponse, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
