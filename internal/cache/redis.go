package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vetrodar/cabinbooking/config"
	"github.com/vetrodar/cabinbooking/internal/domain"
)

type RedisCache struct {
	client      *redis.Client
	tripsTTL    time.Duration
	forecastTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, tripsTTL, forecastTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		tripsTTL:    tripsTTL,
		forecastTTL: forecastTTL,
	}
}

// Client exposes the underlying connection for the rate-limit middleware,
// which shares the same Redis instance.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) GetTrips(ctx context.Context) ([]domain.Trip, error) {
	data, err := c.client.Get(ctx, tripsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var trips []domain.Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *RedisCache) SetTrips(ctx context.Context, trips []domain.Trip) error {
	payload, err := json.Marshal(trips)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tripsKey(), payload, c.tripsTTL).Err()
}

func (c *RedisCache) GetForecast(ctx context.Context, spot string) ([]domain.ForecastRow, error) {
	data, err := c.client.Get(ctx, forecastKey(spot)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rows []domain.ForecastRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *RedisCache) SetForecast(ctx context.Context, spot string, rows []domain.ForecastRow) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, forecastKey(spot), payload, c.forecastTTL).Err()
}

func tripsKey() string {
	return "cache:trips"
}

func forecastKey(spot string) string {
	return fmt.Sprintf("cache:forecast:%s", spot)
}
