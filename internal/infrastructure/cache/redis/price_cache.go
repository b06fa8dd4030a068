// internal/infrastructure/cache/redis/price_cache.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"
)

const anyCompetitor = "*"

// LatestPriceCache кэширует последние цены поверх любого хранилища.
// Ошибки Redis только логируются: источником истины остается хранилище.
// Ключ, который не удалось сбросить после записи, помечается грязным и
// читается мимо кэша, пока сброс не пройдет.
type LatestPriceCache struct {
	store storage.PriceStore
	cache *Cache
	ttl   time.Duration

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewLatestPriceCache оборачивает хранилище кэшем
func NewLatestPriceCache(store storage.PriceStore, cache *Cache, ttl time.Duration) *LatestPriceCache {
	return &LatestPriceCache{store: store, cache: cache, ttl: ttl, dirty: make(map[string]struct{})}
}

func latestKey(productID, competitor string) string {
	if competitor == "" {
		competitor = anyCompetitor
	}
	return fmt.Sprintf("latest:%s:%s", productID, competitor)
}

// Unwrap возвращает хранилище под кэшем
func (c *LatestPriceCache) Unwrap() storage.PriceStore {
	return c.store
}

func (c *LatestPriceCache) EnsureSchema(ctx context.Context) error {
	return c.store.EnsureSchema(ctx)
}

// Record пишет в хранилище и сбрасывает затронутые ключи
func (c *LatestPriceCache) Record(ctx context.Context, obs storage.PriceObservation) (int64, error) {
	id, err := c.store.Record(ctx, obs)
	if err != nil {
		return 0, err
	}

	keys := []string{latestKey(obs.ProductID, obs.CompetitorName), latestKey(obs.ProductID, "")}
	c.invalidate(ctx, keys...)
	return id, nil
}

// invalidate сбрасывает ключи, при ошибке помечает их грязными
func (c *LatestPriceCache) invalidate(ctx context.Context, keys ...string) bool {
	err := c.cache.Delete(ctx, keys...)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if err != nil {
			c.dirty[key] = struct{}{}
		} else {
			delete(c.dirty, key)
		}
	}
	if err != nil {
		logger.Warn("⚠️ Failed to invalidate latest price cache %v: %v", keys, err)
		return false
	}
	return true
}

func (c *LatestPriceCache) isDirty(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.dirty[key]
	return ok
}

// Latest читает из кэша, при промахе - из хранилища с записью в кэш.
// Отсутствие наблюдения не кэшируется.
func (c *LatestPriceCache) Latest(ctx context.Context, productID, competitor string) (*storage.PriceObservation, error) {
	key := latestKey(productID, competitor)

	if c.isDirty(key) && !c.invalidate(ctx, key) {
		return c.store.Latest(ctx, productID, competitor)
	}

	var cached storage.PriceObservation
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.Warn("⚠️ Latest price cache read failed for %s: %v", key, err)
	}

	obs, err := c.store.Latest(ctx, productID, competitor)
	if err != nil || obs == nil {
		return obs, err
	}

	if err := c.cache.Set(ctx, key, obs, c.ttl); err != nil {
		logger.Warn("⚠️ Latest price cache write failed for %s: %v", key, err)
	}
	return obs, nil
}

func (c *LatestPriceCache) History(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	return c.store.History(ctx, productID, limit)
}
