package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, id string) (Offer, error)
	Set(ctx context.Context, o Offer) error
	Delete(ctx context.Context, id string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, id string) (Offer, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Offer{}, ErrCacheMiss
	}
	if err != nil {
		return Offer{}, fmt.Errorf("redis get failed: %w", err)
	}

	var o Offer
	if err := json.Unmarshal(data, &o); err != nil {
		return Offer{}, fmt.Errorf("unmarshal offer failed: %w", err)
	}
	return o, nil
}

func (r *RedisCache) Set(ctx context.Context, o Offer) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal offer failed: %w", err)
	}

	// up to a fifth of the base ttl so entries written together do not expire together
	ttl := r.baseTTL
	if spread := int64(r.baseTTL / 5); spread > 0 {
		ttl += time.Duration(rand.Int63n(spread))
	}

	if err := r.client.Set(ctx, cacheKey(o.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(id string) string {
	return fmt.Sprintf("offer:%s", id)
}
