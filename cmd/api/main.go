package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sdbooth/internal/adapters/storage/localfs"
	"sdbooth/internal/archive"
	"sdbooth/internal/comfy"
	"sdbooth/internal/config"
	"sdbooth/internal/fanout"
	"sdbooth/internal/httpapi"
	"sdbooth/internal/lease"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/pkg/shutdown"
	"sdbooth/internal/repositories"
	"sdbooth/internal/seed"
	"sdbooth/internal/storage"
	"sdbooth/internal/submission"
	"sdbooth/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.ServiceName,
		AddSource:   cfg.LogSource,
	})

	log.Info("starting booth API",
		"version", "0.1.0",
		"store", cfg.StoreDriver,
		"storage", cfg.Storage.Provider,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	deps := httpapi.Deps{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		WSKeepAlive:    cfg.WSKeepAlive,
	}

	// Job store
	var (
		queue     repositories.RenderQueue
		templates repositories.TemplateStore
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; jobs are lost on restart")
		queue = repositories.NewMemoryRenderQueue()
		templates = repositories.NewMemoryTemplateStore()
	default:
		log.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		if err := repositories.EnsureSchema(ctx, pool); err != nil {
			log.LogFatal("failed to apply schema", err)
		}
		log.Info("PostgreSQL connected")

		deps.DB = pool
		queue = repositories.NewRenderQueueRepository(pool)
		templates = repositories.NewTemplateRepository(pool)
	}

	if cfg.SeedTemplates {
		portraits := seed.Portraits()
		if cfg.SeedFile != "" {
			if portraits, err = seed.LoadFile(cfg.SeedFile); err != nil {
				log.LogFatal("failed to load portrait catalogue", err, "path", cfg.SeedFile)
			}
		}
		n, err := seed.RunWith(ctx, templates, portraits, log)
		if err != nil {
			log.LogFatal("failed to seed portrait templates", err)
		}
		if n > 0 {
			log.Info("portrait templates seeded", "count", n)
		}
	}

	// Tick lease
	var lock lease.Locker = lease.Noop{}
	if cfg.RedisAddr != "" {
		log.Info("connecting to Redis")
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		log.Info("Redis connected", "lock_key", cfg.TrackerLockKey)

		deps.Redis = rdb
		lock = lease.NewRedisLock(rdb, cfg.TrackerLockKey, cfg.TrackerLockTTL, log)
	}

	// Archive
	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())
	deps.Storage = sp

	renderer := comfy.NewHTTPClient(cfg.ComfyBaseURL, cfg.ComfyTimeout)
	deps.Comfy = renderer

	registry := fanout.NewRegistry()
	deps.Registry = registry
	deps.Queue = queue
	deps.Submission = submission.NewService(templates, queue, renderer, log)

	// Render tracker
	trk := tracker.New(tracker.Deps{
		Queue:     queue,
		Renderer:  renderer,
		Archiver:  archive.New(sp, log),
		Registry:  registry,
		LocalCopy: localfs.New(cfg.DownloadDir, ""),
		Lock:      lock,
		Interval:  cfg.TrackerInterval,
		Log:       log,
	})
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		if err := trk.Run(shutdownMgr.Context()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("tracker stopped", "error", err.Error())
		}
	}()
	shutdownMgr.Register("tracker", func(ctx context.Context) error {
		select {
		case <-trackerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Hijacked websocket connections outlive server.Shutdown.
	shutdownMgr.RegisterSimple("websocket-clients", func() {
		n := registry.CloseAll()
		log.Info("closed live clients", "count", n)
	})
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr, "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
