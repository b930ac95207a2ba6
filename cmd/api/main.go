package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omchandarana/geogate/internal/cache"
	"github.com/omchandarana/geogate/internal/config"
	"github.com/omchandarana/geogate/internal/db"
	"github.com/omchandarana/geogate/internal/geoip"
	httpx "github.com/omchandarana/geogate/internal/http"
	"github.com/omchandarana/geogate/internal/observability"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if cfg.UsingDevSecret {
		log.Warn("JWT_SECRET is not set; using the insecure development signing key. Do not run like this in production.")
	}

	// database pool + schema

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.RunMigrations(cfg.DBURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 5*time.Second)

	if err := db.EnsureSeedUser(seedCtx, pool, cfg); err != nil {
		log.Error("seed user creation failed", "err", err)
	}

	cancelSeed()

	// lookup cache: redis when configured, in-process otherwise

	var geoCache cache.Cache = cache.NewMemory()

	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword)

		if err != nil {
			log.Warn("redis unavailable, falling back to in-memory cache", "err", err)
		} else {
			geoCache = redisCache
			defer redisCache.Close()
		}
	}

	geo := geoip.NewClient(cfg.GeoBaseURL, cfg.GeoTimeout, geoCache, cfg.GeoCacheTTL)

	// optional tracing

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "geogate", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	// set up routers with the log
	router := httpx.NewRouter(log, pool, cfg, geo)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
