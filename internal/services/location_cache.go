package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/redis"
)

// LocationCache хранит в Redis последнюю переданную позицию курьера по каждому заказу
type LocationCache struct {
	redis  *redis.Client
	config *config.CacheConfig
	log    *logger.Logger
	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheMetrics представляет метрики кеша позиций
type CacheMetrics struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	TotalReqs uint64  `json:"total_requests"`
	HitRate   float64 `json:"hit_rate"`
}

// NewLocationCache создает кеш позиций
func NewLocationCache(redis *redis.Client, cfg *config.CacheConfig, log *logger.Logger) *LocationCache {
	return &LocationCache{
		redis:  redis,
		config: cfg,
		log:    log,
	}
}

// Save запоминает позицию; запись живет LocationTTL секунд
func (c *LocationCache) Save(ctx context.Context, point models.TrackingPoint) error {
	if !c.config.Enabled {
		return nil
	}
	return c.redis.Set(ctx, c.key(point.OrderID), point, c.ttl())
}

// Last возвращает последнюю позицию по заказу; found=false, если данных нет
func (c *LocationCache) Last(ctx context.Context, orderID string) (models.TrackingPoint, bool, error) {
	var point models.TrackingPoint
	if !c.config.Enabled {
		c.misses.Add(1)
		return point, false, nil
	}

	if err := c.redis.Get(ctx, c.key(orderID), &point); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			c.misses.Add(1)
			return point, false, nil
		}
		return point, false, err
	}

	c.hits.Add(1)
	return point, true, nil
}

// Forget удаляет позицию заказа (после доставки или отмены)
func (c *LocationCache) Forget(ctx context.Context, orderID string) error {
	if !c.config.Enabled {
		return nil
	}
	return c.redis.Delete(ctx, c.key(orderID))
}

// Metrics возвращает счетчики попаданий
func (c *LocationCache) Metrics() CacheMetrics {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}

	return CacheMetrics{Hits: hits, Misses: misses, TotalReqs: total, HitRate: rate}
}

func (c *LocationCache) key(orderID string) string {
	return redis.GenerateKey(redis.KeyPrefixOrderLocation, orderID)
}

func (c *LocationCache) ttl() time.Duration {
	return time.Duration(c.config.LocationTTL) * time.Second
}
