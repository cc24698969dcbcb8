// Package catalog resolves a service id to its duration in minutes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/store"
)

const keyPrefix = "catalog:duration:"

type Catalog struct {
	services store.ServiceStore
	redis    *redis.Client
	cacheTTL time.Duration
	log      *slog.Logger
}

func New(services store.ServiceStore, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{services: services, log: log.With(slog.String("component", "catalog"))}
}

// UseRedisCache enables a read-through cache of durations. A nil client or
// non-positive ttl leaves caching off.
func (c *Catalog) UseRedisCache(client *redis.Client, ttl time.Duration) {
	c.redis = client
	c.cacheTTL = ttl
}

// Duration returns the duration of an active service. Unknown and inactive
// services are domain.ErrServiceNotFound.
func (c *Catalog) Duration(ctx context.Context, serviceID uuid.UUID) (int, error) {
	if minutes, ok := c.readCache(ctx, serviceID); ok {
		return minutes, nil
	}

	svc, err := c.services.FindService(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, serviceID)
	}
	if err != nil {
		return 0, err
	}
	if !svc.IsActive {
		return 0, fmt.Errorf("%w: %s is inactive", domain.ErrServiceNotFound, serviceID)
	}
	if svc.DurationMinutes <= 0 {
		return 0, fmt.Errorf("%w: service %s has %d minutes", domain.ErrInvalidDuration, serviceID, svc.DurationMinutes)
	}

	c.writeCache(ctx, serviceID, svc.DurationMinutes)
	return svc.DurationMinutes, nil
}

// Invalidate drops a cached duration after the service changed.
func (c *Catalog) Invalidate(ctx context.Context, serviceID uuid.UUID) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, keyPrefix+serviceID.String()).Err()
}

func (c *Catalog) readCache(ctx context.Context, serviceID uuid.UUID) (int, bool) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return 0, false
	}
	val, err := c.redis.Get(ctx, keyPrefix+serviceID.String()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("catalog cache read failed", slog.Any("err", err))
		}
		return 0, false
	}
	minutes, err := strconv.Atoi(val)
	if err != nil || minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

func (c *Catalog) writeCache(ctx context.Context, serviceID uuid.UUID, minutes int) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+serviceID.String(), minutes, c.cacheTTL).Err(); err != nil {
		c.log.Warn("catalog cache write failed", slog.Any("err", err))
	}
}
