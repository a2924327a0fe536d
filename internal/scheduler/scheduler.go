// Package scheduler periodically re-warms the business configuration cache.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmer reloads one business configuration into a cache
type Warmer interface {
	Warm(ctx context.Context, businessID string) error
}

// CacheWarmer runs Warm for a fixed set of businesses on a cron schedule
type CacheWarmer struct {
	logger     *zap.Logger
	warmer     Warmer
	businesses []string
	timeout    time.Duration
	cron       *cron.Cron
}

// NewCacheWarmer parses a standard 5-field cron expression,
// e.g. "*/5 * * * *" (every five minutes) or "0 6 * * *" (daily 6am)
func NewCacheWarmer(logger *zap.Logger, warmer Warmer, schedule string, businesses []string) (*CacheWarmer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule = strings.TrimSpace(schedule)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}

	w := &CacheWarmer{
		logger:     logger,
		warmer:     warmer,
		businesses: businesses,
		timeout:    30 * time.Second,
		cron:       cron.New(cron.WithParser(parser)),
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return w, nil
}

// Start schedules the job in the background
func (w *CacheWarmer) Start() {
	w.logger.Info("Cache warm scheduled", zap.Strings("businesses", w.businesses))
	w.cron.Start()
}

// Stop waits for a running job to finish or ctx to end
func (w *CacheWarmer) Stop(ctx context.Context) {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce warms every business, logging failures and carrying on. It returns the failure count.
func (w *CacheWarmer) RunOnce(ctx context.Context) int {
	failed := 0
	for _, id := range w.businesses {
		wctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.warmer.Warm(wctx, id)
		cancel()
		if err != nil {
			failed++
			w.logger.Warn("Cache warm failed", zap.String("businessId", id), zap.Error(err))
			continue
		}
		w.logger.Debug("Cache warmed", zap.String("businessId", id))
	}
	return failed
}
