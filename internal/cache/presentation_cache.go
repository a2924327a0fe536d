package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"surveypilot/internal/model"
)

// PresentationCache tracks which questions a customer was asked and when.
//
// Each customer has three keys:
//   - a ZSET of question IDs scored by last presentation (unix seconds)
//   - a counter of completed interactions
//   - a HASH of question ID to the interaction count when it was last asked
type PresentationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresentationCache creates a new presentation history cache
func NewPresentationCache(client *redis.Client, ttl time.Duration) *PresentationCache {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &PresentationCache{
		client: client,
		ttl:    ttl,
	}
}

func presentedKey(businessID, customerID string) string {
	return fmt.Sprintf("biz:%s:cust:%s:presented", businessID, customerID)
}

func interactionsKey(businessID, customerID string) string {
	return fmt.Sprintf("biz:%s:cust:%s:interactions", businessID, customerID)
}

func askedAtKey(businessID, customerID string) string {
	return fmt.Sprintf("biz:%s:cust:%s:asked_at", businessID, customerID)
}

// History returns the presentation record of every question the customer was asked
func (c *PresentationCache) History(ctx context.Context, businessID, customerID string) (map[string]model.PresentationRecord, error) {
	pipe := c.client.Pipeline()
	presented := pipe.ZRangeWithScores(ctx, presentedKey(businessID, customerID), 0, -1)
	counter := pipe.Get(ctx, interactionsKey(businessID, customerID))
	askedAt := pipe.HGetAll(ctx, askedAtKey(businessID, customerID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	total, err := counter.Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return buildHistory(presented.Val(), total, askedAt.Val()), nil
}

// RecordInteraction counts one interaction and stamps every presented question with it.
// An interaction that presented nothing still advances the counter.
func (c *PresentationCache) RecordInteraction(ctx context.Context, businessID, customerID string, questionIDs []string, at time.Time) error {
	counterKey := interactionsKey(businessID, customerID)
	total, err := c.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return err
	}
	if len(questionIDs) == 0 {
		return c.client.Expire(ctx, counterKey, c.ttl).Err()
	}

	members := make([]redis.Z, len(questionIDs))
	stamps := make(map[string]interface{}, len(questionIDs))
	for i, id := range questionIDs {
		members[i] = redis.Z{Score: float64(at.Unix()), Member: id}
		stamps[id] = total
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, presentedKey(businessID, customerID), members...)
		pipe.HSet(ctx, askedAtKey(businessID, customerID), stamps)
		pipe.Expire(ctx, presentedKey(businessID, customerID), c.ttl)
		pipe.Expire(ctx, askedAtKey(businessID, customerID), c.ttl)
		pipe.Expire(ctx, counterKey, c.ttl)
		return nil
	})
	return err
}

func buildHistory(presented []redis.Z, total int, askedAt map[string]string) map[string]model.PresentationRecord {
	history := make(map[string]model.PresentationRecord, len(presented))
	for _, z := range presented {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		since := 0
		if stamp, err := strconv.Atoi(askedAt[id]); err == nil && total >= stamp {
			since = total - stamp
		}
		history[id] = model.PresentationRecord{
			QuestionID:        id,
			LastPresentedAt:   time.Unix(int64(z.Score), 0).UTC(),
			InteractionsSince: since,
		}
	}
	return history
}
