package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"surveypilot/internal/model"
)

// DefaultConfigTTL bounds how stale cached business configuration can get
const DefaultConfigTTL = 5 * time.Minute

// ConfigSource is the authoritative configuration store behind the cache
type ConfigSource interface {
	Rules(ctx context.Context, businessID string) ([]model.CombinationRule, error)
	Triggers(ctx context.Context, businessID string) ([]model.TriggerDefinition, error)
	Topics(ctx context.Context, businessID string) ([]model.TopicGroup, error)
	Questions(ctx context.Context, businessID string) ([]model.CandidateQuestion, error)
}

// ConfigCache is a read-through Redis cache in front of a ConfigSource.
// Redis failures fall through to the source.
type ConfigCache struct {
	client *redis.Client
	source ConfigSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewConfigCache creates a new config cache
func NewConfigCache(client *redis.Client, source ConfigSource, ttl time.Duration, logger *zap.Logger) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// Key helpers
func configKey(businessID, part string) string {
	return fmt.Sprintf("biz:%s:cfg:%s", businessID, part)
}

func (c *ConfigCache) Rules(ctx context.Context, businessID string) ([]model.CombinationRule, error) {
	return readThrough(ctx, c, configKey(businessID, "rules"), func() ([]model.CombinationRule, error) {
		return c.source.Rules(ctx, businessID)
	})
}

func (c *ConfigCache) Triggers(ctx context.Context, businessID string) ([]model.TriggerDefinition, error) {
	return readThrough(ctx, c, configKey(businessID, "triggers"), func() ([]model.TriggerDefinition, error) {
		return c.source.Triggers(ctx, businessID)
	})
}

func (c *ConfigCache) Topics(ctx context.Context, businessID string) ([]model.TopicGroup, error) {
	return readThrough(ctx, c, configKey(businessID, "topics"), func() ([]model.TopicGroup, error) {
		return c.source.Topics(ctx, businessID)
	})
}

func (c *ConfigCache) Questions(ctx context.Context, businessID string) ([]model.CandidateQuestion, error) {
	return readThrough(ctx, c, configKey(businessID, "questions"), func() ([]model.CandidateQuestion, error) {
		return c.source.Questions(ctx, businessID)
	})
}

// Invalidate drops every cached part of a business configuration
func (c *ConfigCache) Invalidate(ctx context.Context, businessID string) error {
	return c.client.Del(ctx,
		configKey(businessID, "rules"),
		configKey(businessID, "triggers"),
		configKey(businessID, "topics"),
		configKey(businessID, "questions"),
	).Err()
}

// Warm reloads a business configuration from the source into the cache
func (c *ConfigCache) Warm(ctx context.Context, businessID string) error {
	if err := c.Invalidate(ctx, businessID); err != nil {
		return err
	}
	if _, err := c.Rules(ctx, businessID); err != nil {
		return err
	}
	if _, err := c.Triggers(ctx, businessID); err != nil {
		return err
	}
	if _, err := c.Topics(ctx, businessID); err != nil {
		return err
	}
	_, err := c.Questions(ctx, businessID)
	return err
}

func readThrough[T any](ctx context.Context, c *ConfigCache, key string, load func() ([]T, error)) ([]T, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("Config cache read failed", zap.String("key", key), zap.Error(err))
	}

	items, err := load()
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return items, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("Config cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}
