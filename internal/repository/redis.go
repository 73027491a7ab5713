package repository

import (
	"context"
	"fmt"
	"time"

	"fieldhire/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisOfferIndex keeps one set of booking ids per category/purpose/date
// triple. Entries carry a TTL so index garbage from crashed processes ages
// out on its own.
type RedisOfferIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisOfferIndex(client *redis.Client, ttl time.Duration) *RedisOfferIndex {
	return &RedisOfferIndex{
		client: client,
		ttl:    ttl,
	}
}

func offerKey(category, purpose string, date time.Time) string {
	return fmt.Sprintf("offers:%s:%s:%s", category, purpose, date.Format("2006-01-02"))
}

func (r *RedisOfferIndex) Add(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := offerKey(category, purpose, date)
	if err := r.client.SAdd(ctx, key, bookingID).Err(); err != nil {
		return fmt.Errorf("failed to add offer to redis: %w", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set offer ttl: %w", err)
		}
	}
	return nil
}

func (r *RedisOfferIndex) Remove(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.SRem(ctx, offerKey(category, purpose, date), bookingID).Err(); err != nil {
		return fmt.Errorf("failed to remove offer from redis: %w", err)
	}
	return nil
}

func (r *RedisOfferIndex) List(ctx context.Context, category, purpose string, date time.Time) ([]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	ids, err := r.client.SMembers(ctx, offerKey(category, purpose, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list offers from redis: %w", err)
	}
	return ids, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
