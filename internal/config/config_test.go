package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"MONGO_URI", "MONGO_DB", "PORT", "PIPELINE_DEFAULT_MODE", "PIPELINE_HARD_DEADLINE"} {
		t.Setenv(key, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "surveypilot", cfg.MongoDB)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.LatencyBudget())
	assert.Equal(t, 10.0, cfg.Pipeline.BufferPercentage)
	assert.Equal(t, 2.0, cfg.Pipeline.TransitionSeconds)
	assert.Equal(t, "balanced", cfg.Pipeline.DefaultMode)
	assert.False(t, cfg.Pipeline.HardDeadline)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ConfigTTL())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
mongo_db: pilot_test
http_port: "9000"
pipeline:
  latency_budget_ms: 250
  hard_deadline: true
  default_mode: comprehensive
scheduler:
  warm_schedule: "*/5 * * * *"
  businesses: [biz-1]
`)
	t.Setenv("PORT", "9100")
	t.Setenv("CACHE_WARM_BUSINESSES", "biz-1, biz-2,")
	t.Setenv("PIPELINE_LATENCY_BUDGET_MS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pilot_test", cfg.MongoDB)
	assert.Equal(t, "9100", cfg.HTTPPort, "env wins over file")
	assert.Equal(t, 250, cfg.Pipeline.LatencyBudgetMS, "unparsable env values are ignored")
	assert.True(t, cfg.Pipeline.HardDeadline)
	assert.Equal(t, "comprehensive", cfg.Pipeline.DefaultMode)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.WarmSchedule)
	assert.Equal(t, []string{"biz-1", "biz-2"}, cfg.Scheduler.Businesses)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "pipeline: [oops"},
		{"buffer too large", "pipeline:\n  buffer_percentage: 50\n"},
		{"unknown mode", "pipeline:\n  default_mode: turbo\n"},
		{"unknown log format", "log_format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yaml", Path())
	t.Setenv("CONFIG_PATH", "/etc/surveypilot.yaml")
	assert.Equal(t, "/etc/surveypilot.yaml", Path())
}
