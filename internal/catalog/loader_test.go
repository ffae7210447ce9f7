package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizdesk/backend/internal/domain"
)

type fakeSource struct {
	itemCalls int
	items     []domain.CatalogItem
	customers []domain.CustomerOption
	err       error
}

func (f *fakeSource) ListActiveCatalogItems(context.Context) ([]domain.CatalogItem, error) {
	f.itemCalls++
	return f.items, f.err
}

func (f *fakeSource) ListCustomerOptions(context.Context) ([]domain.CustomerOption, error) {
	return f.customers, f.err
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CatalogSnapshot
	failGet bool
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.CatalogSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.CatalogSnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func newSource() *fakeSource {
	return &fakeSource{
		items: []domain.CatalogItem{
			{ID: "item-1", ItemName: "Bracket", SellingPrice: decimal.NewFromInt(250), Tax: decimal.NewFromInt(5), Active: true},
		},
		customers: []domain.CustomerOption{{ID: "cust-1", Name: "Acme"}},
	}
}

func TestLoadProjectsItemsForTheForm(t *testing.T) {
	loader := NewLoader(newSource(), nil, 0, nil)

	snapshot, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, "Bracket", snapshot.Items[0].DisplayName)
	assert.True(t, snapshot.Items[0].UnitPrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, HasCustomer(snapshot, "cust-1"))
	assert.False(t, HasCustomer(snapshot, "cust-2"))
}

func TestLoadUsesCacheUntilInvalidated(t *testing.T) {
	source := newSource()
	c := &mapCache{entries: map[string]*domain.CatalogSnapshot{}}
	loader := NewLoader(source, c, time.Minute, nil)
	ctx := context.Background()

	_, err := loader.Load(ctx)
	require.NoError(t, err)
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.itemCalls)

	loader.Invalidate(ctx)
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.itemCalls)
}

func TestLoadFallsThroughOnCacheError(t *testing.T) {
	source := newSource()
	loader := NewLoader(source, &mapCache{entries: map[string]*domain.CatalogSnapshot{}, failGet: true}, time.Minute, nil)

	snapshot, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Customers, 1)
}

func TestLoadPropagatesSourceError(t *testing.T) {
	source := newSource()
	source.err = errors.New("db down")
	loader := NewLoader(source, nil, 0, nil)

	_, err := loader.Load(context.Background())
	assert.EqualError(t, err, "db down")
}
