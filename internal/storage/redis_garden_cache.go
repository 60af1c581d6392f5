package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/vec"
)

// RedisGardenCache кеширует публичные (read-only) сады в Redis.
// Публичная страница /{username} — самый горячий read-путь;
// кеш снимает нагрузку с MongoDB. Инвалидация — по событиям блоков.
type RedisGardenCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// cachedBlock — компактное JSON-представление размещённого блока.
type cachedBlock struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Pos       vec.Vec3   `json:"pos"`
	PlantedAt *time.Time `json:"planted_at,omitempty"`
}

// RedisCacheConfig содержит настройки подключения к Redis.
type RedisCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// DefaultRedisCacheConfig возвращает конфигурацию по умолчанию.
func DefaultRedisCacheConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "growdoro:garden:",
		TTL:       60 * time.Second,
	}
}

// NewRedisGardenCache создаёт кеш публичных садов.
func NewRedisGardenCache(config *RedisCacheConfig) (*RedisGardenCache, error) {
	if config == nil {
		config = DefaultRedisCacheConfig()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "growdoro:garden:"
	}
	if config.TTL == 0 {
		config.TTL = 60 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis garden cache готов: %s (TTL %s)", config.Addr, config.TTL)
	return &RedisGardenCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (c *RedisGardenCache) key(owner garden.Owner) string {
	return c.keyPrefix + owner.Key()
}

// Get возвращает закешированные размещённые блоки владельца.
// (nil, false) означает cache miss.
func (c *RedisGardenCache) Get(ctx context.Context, owner garden.Owner) ([]*garden.Block, bool) {
	data, err := c.client.Get(ctx, c.key(owner)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logging.Warn("garden cache get: %v", err)
		return nil, false
	}

	var cached []cachedBlock
	if err := json.Unmarshal(data, &cached); err != nil {
		logging.Warn("garden cache decode: %v", err)
		return nil, false
	}

	blocks := make([]*garden.Block, 0, len(cached))
	for _, cb := range cached {
		pos := cb.Pos
		blocks = append(blocks, &garden.Block{
			ID:        cb.ID,
			Owner:     owner,
			Type:      cb.Type,
			Pos:       &pos,
			PlantedAt: cb.PlantedAt,
		})
	}
	return blocks, true
}

// Set сохраняет размещённые блоки владельца с TTL.
func (c *RedisGardenCache) Set(ctx context.Context, owner garden.Owner, blocks []*garden.Block) error {
	cached := make([]cachedBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Pos == nil {
			continue
		}
		cached = append(cached, cachedBlock{
			ID:        b.ID,
			Type:      b.Type,
			Pos:       *b.Pos,
			PlantedAt: b.PlantedAt,
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(owner), data, c.ttl).Err()
}

// Invalidate сбрасывает кеш владельца (вызывается на событиях блоков).
func (c *RedisGardenCache) Invalidate(ctx context.Context, owner garden.Owner) {
	if err := c.client.Del(ctx, c.key(owner)).Err(); err != nil {
		logging.Warn("garden cache invalidate %s: %v", owner.Key(), err)
	}
}

// Close закрывает клиент Redis.
func (c *RedisGardenCache) Close() error {
	return c.client.Close()
}
