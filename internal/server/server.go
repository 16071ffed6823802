// Package server wires the optimizer pipeline behind the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tftgg/internal/batch"
	"tftgg/internal/cache"
	"tftgg/internal/config"
	"tftgg/internal/gql"
	"tftgg/internal/multiplex"
	"tftgg/internal/optimizer"
	"tftgg/internal/plugin"
	"tftgg/internal/telemetry"
	"tftgg/internal/upstream"
	"tftgg/internal/ws"
)

// Server represents the main server
type Server struct {
	cfg        *config.Config
	store      cache.Cache
	client     *upstream.Client
	opt        *optimizer.Optimizer
	plugins    *plugin.PluginManager
	fetcher    *plugin.OptimizedFetcher
	stats      *telemetry.StatsLogger
	wsHandler  *ws.Handler
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	// Create cache based on config
	var store cache.Cache
	if cfg.IsCacheEnabled() {
		switch cfg.Cache.Backend {
		case config.CacheBackendRedis:
			cli := redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Username: cfg.Cache.Redis.Username,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			store = cache.NewRedisCache(cli, cfg.Cache.Redis.KeyPrefix, cfg.Cache.GetTTLDuration())
		default:
			var err error
			store, err = cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.GetTTLDuration())
			if err != nil {
				return nil, fmt.Errorf("failed to create cache: %w", err)
			}
		}

		logger.Info().
			Str("backend", string(cfg.Cache.Backend)).
			Int("ttl", cfg.Cache.TTL).
			Msg("cache enabled")
	} else {
		store = cache.NewNoopCache()
		logger.Info().Msg("cache disabled")
	}

	// Exclude configured operations from batching
	if len(cfg.Batch.DisabledOperations) > 0 {
		gql.SetDisabledOperations(cfg.Batch.DisabledOperations)
		logger.Info().
			Strs("operations", cfg.Batch.DisabledOperations).
			Msg("batching disabled for specific operations")
	}

	client := upstream.NewClient(cfg.Upstream, logger)

	var cacheTTL time.Duration
	if cfg.Cache != nil {
		cacheTTL = cfg.Cache.GetTTLDuration()
	}
	batcher := batch.New(cfg.Batch, cacheTTL, store, telemetry.NewLogTracer(logger), nil, logger)
	opt := optimizer.New(multiplex.New(logger), batcher)

	if cfg.IsBatchingEnabled() {
		logger.Info().
			Int("window", cfg.Batch.Window).
			Int("maxSize", cfg.Batch.MaxSize).
			Msg("batching enabled")
	} else {
		logger.Info().Msg("batching disabled")
	}

	// Create plugin manager based on config
	var pluginMgr *plugin.PluginManager
	var fetcher *plugin.OptimizedFetcher
	if cfg.IsPluginsEnabled() {
		pluginMgr = plugin.NewPluginManager(logger)
		pluginMgr.SetTimeout(cfg.GetPluginTimeoutDuration())

		if err := pluginMgr.LoadFromDirectory(cfg.GetPluginDirectory()); err != nil {
			return nil, fmt.Errorf("failed to load plugins: %w", err)
		}

		fetcher = plugin.NewOptimizedFetcher(opt, client, logger)

		operations := pluginMgr.Operations()
		if len(operations) > 0 {
			logger.Info().
				Strs("operations", operations).
				Str("directory", cfg.GetPluginDirectory()).
				Msg("plugins enabled")
		} else {
			logger.Info().
				Str("directory", cfg.GetPluginDirectory()).
				Msg("plugins enabled but no plugins loaded")
		}
	} else {
		logger.Info().Msg("plugins disabled")
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		client:  client,
		opt:     opt,
		plugins: pluginMgr,
		fetcher: fetcher,
		logger:  logger,
	}

	s.stats = telemetry.NewStatsLogger(cfg.GetStatsLogIntervalDuration(), s.statsSnapshot, logger)
	s.wsHandler = ws.NewHandler(s.statsSnapshot, cfg.GetLiveStatsIntervalDuration(), logger)

	return s, nil
}

// statsSnapshot assembles the live view of the optimizer pipeline
func (s *Server) statsSnapshot() telemetry.StatsSnapshot {
	mux := s.opt.MultiplexSnapshot()
	pending := s.opt.PendingBatches()
	hist := s.opt.BatchHistory()

	waiters := 0
	for _, n := range mux.Waiters {
		waiters += n
	}
	members := 0
	for _, g := range pending {
		members += g.Size
	}

	return telemetry.StatsSnapshot{
		InFlight:       mux.InFlight,
		Waiters:        waiters,
		PendingGroups:  len(pending),
		PendingMembers: members,
		Batches:        hist.Batches,
		AvgBatchSize:   hist.AvgSize,
		HitRate:        hist.HitRate,
		ErrorRate:      hist.ErrorRate,
	}
}

// Start starts the server
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(s.loggingMiddleware())
	router.Use(corsMiddleware())
	router.Use(gin.Recovery())

	s.setupRoutes(router)

	s.stats.Start()

	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", addr).
			Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	s.stats.Stop()

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	// Pending batches drain before the collaborators they need go away
	s.opt.Close()

	if s.plugins != nil {
		s.plugins.Close()
	}

	s.client.Close()
	s.store.Close()

	if httpErr != nil {
		return fmt.Errorf("server shutdown error: %w", httpErr)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
