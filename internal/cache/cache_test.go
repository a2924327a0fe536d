package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "biz:b1:cfg:rules", configKey("b1", "rules"))
	assert.Equal(t, "biz:b1:cust:c9:presented", presentedKey("b1", "c9"))
	assert.Equal(t, "biz:b1:cust:c9:interactions", interactionsKey("b1", "c9"))
	assert.Equal(t, "biz:b1:cust:c9:asked_at", askedAtKey("b1", "c9"))
}

func TestBuildHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	presented := []redis.Z{
		{Score: float64(at.Unix()), Member: "q1"},
		{Score: float64(at.Add(-48 * time.Hour).Unix()), Member: "q2"},
		{Score: float64(at.Unix()), Member: "q3"},
	}
	askedAt := map[string]string{"q1": "7", "q2": "3", "q3": "garbage"}

	history := buildHistory(presented, 7, askedAt)
	require.Len(t, history, 3)

	assert.Equal(t, 0, history["q1"].InteractionsSince)
	assert.True(t, history["q1"].LastPresentedAt.Equal(at))

	assert.Equal(t, 4, history["q2"].InteractionsSince)
	assert.True(t, history["q2"].LastPresentedAt.Equal(at.Add(-48*time.Hour)))

	assert.Equal(t, 0, history["q3"].InteractionsSince, "unparseable stamps count as just asked")
}

func TestBuildHistory_Empty(t *testing.T) {
	assert.Empty(t, buildHistory(nil, 0, nil))
}
