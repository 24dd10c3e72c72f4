package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// memStore is an in-memory ItemStore that counts list calls.
type memStore struct {
	mu    sync.Mutex
	items []models.MarketplaceItem
	lists int
}

func (s *memStore) ListItems(context.Context) ([]models.MarketplaceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return append([]models.MarketplaceItem{}, s.items...), nil
}

func (s *memStore) GetItem(_ context.Context, id string) (*models.MarketplaceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return &it, nil
		}
	}
	return nil, fmt.Errorf("item %s not found", id)
}

func (s *memStore) CreateItem(_ context.Context, d models.ItemDraft) (*models.MarketplaceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := models.MarketplaceItem{ID: fmt.Sprintf("item-%d", len(s.items)+1), Name: d.Name, Price: d.Price, Images: d.Images}
	s.items = append(s.items, it)
	return &it, nil
}

func (s *memStore) UpdateItem(_ context.Context, id string, p models.ItemPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i] = p.Apply(s.items[i])
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteItem(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := NewClient(fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestListingsReadThrough(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	store := &memStore{items: []models.MarketplaceItem{
		{ID: "item-1", Name: "Maize Seed", Price: decimal.NewFromInt(45), Images: []string{}},
	}}
	c := NewListings(store, rdb, time.Minute, zap.NewNop())

	first, err := c.ListItems(ctx)
	require.NoError(t, err)
	second, err := c.ListItems(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, store.listCalls())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.True(t, second[0].Price.Equal(decimal.NewFromInt(45)))

	ttl, err := rdb.TTL(ctx, KeyAllListings).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestListingsInvalidateOnMutation(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	store := &memStore{}
	c := NewListings(store, rdb, time.Minute, zap.NewNop())

	items, err := c.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	created, err := c.CreateItem(ctx, models.ItemDraft{Name: "Urea", Price: decimal.NewFromInt(900)})
	require.NoError(t, err)

	items, err = c.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, store.listCalls())

	name := "Urea 50kg"
	ok, err := c.UpdateItem(ctx, created.ID, models.ItemPatch{Name: &name})
	require.NoError(t, err)
	require.True(t, ok)

	items, err = c.ListItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Urea 50kg", items[0].Name)

	ok, err = c.DeleteItem(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	items, err = c.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 4, store.listCalls())
}

func TestListingsFailedMutationKeepsCache(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	store := &memStore{}
	c := NewListings(store, rdb, time.Minute, zap.NewNop())
	_, err := c.ListItems(ctx)
	require.NoError(t, err)

	ok, err := c.DeleteItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := rdb.Exists(ctx, KeyAllListings).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// With Redis unreachable every call goes straight to the store.
func TestListingsRedisDown(t *testing.T) {
	rdb := NewClient("127.0.0.1:1", "", 0)
	defer rdb.Close()

	store := &memStore{items: []models.MarketplaceItem{{ID: "item-1", Name: "Maize Seed"}}}
	c := NewListings(store, rdb, time.Minute, zap.NewNop())

	for i := 0; i < 2; i++ {
		items, err := c.ListItems(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, 2, store.listCalls())

	_, err := c.CreateItem(context.Background(), models.ItemDraft{Name: "Urea"})
	assert.NoError(t, err)
}

// gatedStore holds ListItems open until released.
type gatedStore struct {
	*memStore
	started chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListItems(ctx context.Context) ([]models.MarketplaceItem, error) {
	items, err := s.memStore.ListItems(ctx)
	close(s.started)
	<-s.release
	return items, err
}

func TestListingsStaleFillIsDropped(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mem := &memStore{items: []models.MarketplaceItem{
		{ID: "item-1", Name: "Maize Seed", Price: decimal.NewFromInt(45), Images: []string{}},
	}}
	gated := &gatedStore{memStore: mem, started: make(chan struct{}), release: make(chan struct{})}
	slow := NewListings(gated, rdb, time.Minute, zap.NewNop())
	fast := NewListings(mem, rdb, time.Minute, zap.NewNop())

	done := make(chan []models.MarketplaceItem)
	go func() {
		items, err := slow.ListItems(ctx)
		assert.NoError(t, err)
		done <- items
	}()

	// The slow reader has the old price; the update lands before it fills.
	<-gated.started
	price := decimal.NewFromInt(50)
	ok, err := fast.UpdateItem(ctx, "item-1", models.ItemPatch{Price: &price})
	require.NoError(t, err)
	require.True(t, ok)
	close(gated.release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.True(t, stale[0].Price.Equal(decimal.NewFromInt(45)))

	n, err := rdb.Exists(ctx, KeyAllListings).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	fresh, err := fast.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.True(t, fresh[0].Price.Equal(price))

	n, err = rdb.Exists(ctx, KeyAllListings).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
