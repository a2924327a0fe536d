// Package app wires the selection service to its stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"surveypilot/internal/cache"
	"surveypilot/internal/config"
	"surveypilot/internal/model"
	"surveypilot/internal/pipeline"
	"surveypilot/internal/priority"
	"surveypilot/internal/repository"
	"surveypilot/internal/scheduler"
	"surveypilot/internal/selector"
	"surveypilot/internal/service"
	"surveypilot/internal/storage/sqlite"
	"surveypilot/internal/store/filestore"
	"surveypilot/internal/trigger"
)

// App holds the long-lived dependencies of the HTTP service
type App struct {
	Logger      *zap.Logger
	Mongo       *mongo.Client
	Redis       *redis.Client
	Store       *repository.Store
	ConfigCache *cache.ConfigCache
	History     *cache.PresentationCache
	Selections  *service.SelectionService
	Warmer      *scheduler.CacheWarmer // nil when no warm schedule is configured
}

// NewOrchestrator builds the selection pipeline from configuration
func NewOrchestrator(cfg *config.Config, logger *zap.Logger) *pipeline.Orchestrator {
	p := cfg.Pipeline
	return pipeline.NewOrchestrator(
		logger,
		trigger.NewEvaluator(logger, trigger.WithParallelThreshold(p.ParallelThreshold)),
		priority.NewAdjuster(logger,
			priority.WithParallelThreshold(p.ParallelThreshold),
			priority.WithFairnessWeight(p.FairnessWeight),
		),
		selector.NewEstimator(nil),
		pipeline.Config{
			LatencyBudget:     p.LatencyBudget(),
			HardDeadline:      p.HardDeadline,
			BufferPercentage:  p.BufferPercentage,
			TransitionSeconds: p.TransitionSeconds,
			DefaultMode:       model.ProcessingMode(p.DefaultMode),
		},
	)
}

// New connects to MongoDB and Redis and builds the service graph
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	mongoClient, err := Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to MongoDB", zap.String("db", cfg.MongoDB))

	rdb := redis.NewClient(&redis.Options{
		Addr: strings.TrimPrefix(cfg.RedisURI, "redis://"),
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		mongoClient.Disconnect(ctx)
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	logger.Info("Connected to Redis")

	// Initialize repositories
	store := repository.NewStore(ctx, mongoClient.Database(cfg.MongoDB), logger)

	// Initialize caches
	configCache := cache.NewConfigCache(rdb, store, cfg.Cache.ConfigTTL(), logger)
	history := cache.NewPresentationCache(rdb, cfg.Cache.HistoryTTL())

	// Initialize services
	selections := service.NewSelectionService(logger, configCache, NewOrchestrator(cfg, logger))
	selections.SetHistoryStore(history)
	selections.SetLogStore(store.LogRepo)

	a := &App{
		Logger:      logger,
		Mongo:       mongoClient,
		Redis:       rdb,
		Store:       store,
		ConfigCache: configCache,
		History:     history,
		Selections:  selections,
	}

	if cfg.Scheduler.WarmSchedule != "" {
		a.Warmer, err = scheduler.NewCacheWarmer(logger, configCache, cfg.Scheduler.WarmSchedule, cfg.Scheduler.Businesses)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	return a, nil
}

// Connect opens and pings a MongoDB client
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Close releases every connection
func (a *App) Close(ctx context.Context) error {
	if a.Warmer != nil {
		a.Warmer.Stop(ctx)
	}
	return errors.Join(a.Redis.Close(), a.Mongo.Disconnect(ctx))
}

// Offline is a selection service backed by local files, for runs without MongoDB or Redis
type Offline struct {
	Selections *service.SelectionService
	Logs       *sqlite.Store
}

// NewOffline loads business configuration from YAML and records runs and history in SQLite
func NewOffline(cfg *config.Config, logger *zap.Logger, businessPath, logDBPath string) (*Offline, error) {
	configs, err := filestore.Load(businessPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load business config: %w", err)
	}

	logs, err := sqlite.Open(logDBPath)
	if err != nil {
		return nil, err
	}

	selections := service.NewSelectionService(logger, configs, NewOrchestrator(cfg, logger))
	selections.SetHistoryStore(logs)
	selections.SetLogStore(logs)

	return &Offline{Selections: selections, Logs: logs}, nil
}

// Close closes the SQLite database
func (o *Offline) Close() error {
	return o.Logs.Close()
}
