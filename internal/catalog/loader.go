// Package catalog builds the per-session snapshot of catalog items and
// customers that invoice forms read from.
package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bizdesk/backend/internal/cache"
	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
)

const snapshotKey = "current"

type Source interface {
	ListActiveCatalogItems(ctx context.Context) ([]domain.CatalogItem, error)
	ListCustomerOptions(ctx context.Context) ([]domain.CustomerOption, error)
}

type Loader struct {
	source   Source
	cache    cache.SnapshotCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewLoader(source Source, cacheStore cache.SnapshotCache, cacheTTL time.Duration, logger *zap.Logger) *Loader {
	if cacheStore == nil {
		cacheStore = cache.NoopSnapshotCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Load returns the current snapshot, from cache when fresh. Cache failures
// are logged and fall through to the source.
func (l *Loader) Load(ctx context.Context) (*domain.CatalogSnapshot, error) {
	cached, ok, err := l.cache.Get(ctx, snapshotKey)
	if err != nil {
		l.logger.Warn("catalog snapshot cache read failed", zap.Error(err))
	}
	if err == nil && ok {
		return cached, nil
	}

	items, err := l.source.ListActiveCatalogItems(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := l.source.ListCustomerOptions(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.CatalogSnapshot{
		Items:     make([]invoice.CatalogItem, 0, len(items)),
		Customers: customers,
		LoadedAt:  l.now().UTC(),
	}
	for _, item := range items {
		snapshot.Items = append(snapshot.Items, item.Option())
	}

	if err := l.cache.Set(ctx, snapshotKey, snapshot, l.cacheTTL); err != nil {
		l.logger.Warn("catalog snapshot cache write failed", zap.Error(err))
	}
	return snapshot, nil
}

// Invalidate drops the cached snapshot after master data changes. Sessions
// that already hold a snapshot keep it.
func (l *Loader) Invalidate(ctx context.Context) {
	if err := l.cache.Delete(ctx, snapshotKey); err != nil {
		l.logger.Warn("catalog snapshot cache invalidation failed", zap.Error(err))
	}
}

func HasCustomer(snapshot *domain.CatalogSnapshot, id string) bool {
	if snapshot == nil || id == "" {
		return false
	}
	for _, c := range snapshot.Customers {
		if c.ID == id {
			return true
		}
	}
	return false
}
