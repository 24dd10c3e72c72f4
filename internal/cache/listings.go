// Package cache keeps the full listing set in Redis between mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/farm-market/internal/models"
	"go.uber.org/zap"
)

const (
	KeyAllListings = "listings:all"
	// KeyListingsGen counts invalidations. A fill only lands if no
	// invalidation happened since the fill's store read began.
	KeyListingsGen = "listings:gen"
)

var fillScript = redis.NewScript(`
if tonumber(redis.call("GET", KEYS[2]) or "0") ~= tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

type ItemStore interface {
	ListItems(ctx context.Context) ([]models.MarketplaceItem, error)
	GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error)
	CreateItem(ctx context.Context, draft models.ItemDraft) (*models.MarketplaceItem, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (bool, error)
	DeleteItem(ctx context.Context, id string) (bool, error)
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Listings is a read-through cache in front of an ItemStore. Only the
// full list is cached; any successful mutation drops it and bumps the
// generation, so a read that raced the mutation cannot write the old list
// back. Redis failures are logged and the call goes to the store.
type Listings struct {
	next   ItemStore
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewListings(next ItemStore, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Listings {
	return &Listings{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Listings) ListItems(ctx context.Context) ([]models.MarketplaceItem, error) {
	b, err := c.rdb.Get(ctx, KeyAllListings).Bytes()
	switch {
	case err == nil:
		var items []models.MarketplaceItem
		if jerr := json.Unmarshal(b, &items); jerr == nil && items != nil {
			return items, nil
		} else if jerr != nil {
			c.logger.Warn("Discarding undecodable listing cache", zap.Error(jerr))
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Redis Get error", zap.String("key", KeyAllListings), zap.Error(err))
	}

	gen, genErr := c.rdb.Get(ctx, KeyListingsGen).Int64()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = 0, nil
	}

	items, err := c.next.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		c.logger.Warn("Redis Get error", zap.String("key", KeyListingsGen), zap.Error(genErr))
		return items, nil
	}
	if b, err := json.Marshal(items); err == nil {
		c.fill(ctx, b, gen)
	}
	return items, nil
}

// fill stores the list unless the generation moved on while it was read.
func (c *Listings) fill(ctx context.Context, b []byte, gen int64) {
	keys := []string{KeyAllListings, KeyListingsGen}
	stored, err := fillScript.Run(ctx, c.rdb, keys, b, gen, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("Redis Set error", zap.String("key", KeyAllListings), zap.Error(err))
		return
	}
	if stored == 0 {
		c.logger.Debug("Skipping stale listing cache fill", zap.Int64("generation", gen))
	}
}

func (c *Listings) GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	return c.next.GetItem(ctx, id)
}

func (c *Listings) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.MarketplaceItem, error) {
	item, err := c.next.CreateItem(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return item, nil
}

func (c *Listings) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (bool, error) {
	ok, err := c.next.UpdateItem(ctx, id, patch)
	if ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Listings) DeleteItem(ctx context.Context, id string) (bool, error) {
	ok, err := c.next.DeleteItem(ctx, id)
	if ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Listings) invalidate(ctx context.Context) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, KeyListingsGen)
		pipe.Del(ctx, KeyAllListings)
		return nil
	})
	if err != nil {
		c.logger.Warn("Redis Delete error", zap.String("key", KeyAllListings), zap.Error(err))
	}
}
