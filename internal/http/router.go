package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/omchandarana/geogate/internal/auth"
	"github.com/omchandarana/geogate/internal/config"
	"github.com/omchandarana/geogate/internal/geoip"
	"github.com/omchandarana/geogate/internal/http/handlers"
	"github.com/omchandarana/geogate/internal/http/middlewares"
	"github.com/omchandarana/geogate/internal/http/respond"
	"github.com/omchandarana/geogate/internal/observability"
	"github.com/omchandarana/geogate/internal/repo/postgres"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, geo *geoip.Client) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(prom.GinHandleMiddleware())

	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("geogate"))
	}

	// Every failure, middleware rejections included, terminates in the
	// same mapper.
	em := respond.NewErrorMapper(log, cfg.Env)

	// rate limit classes

	onReject := func(class string) {
		prom.RateLimitedTotal.WithLabelValues(class).Inc()
	}

	authLimit := middlewares.NewRateLimiter("auth", cfg.AuthRateLimit, cfg.RateWindow, em).OnReject(onReject)
	generalLimit := middlewares.NewRateLimiter("general", cfg.GeneralRateLimit, cfg.RateWindow, em).OnReject(onReject)

	// health + metrics

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping, em)
	r.GET("/health", generalLimit.Middleware(middlewares.KeyByIP), health.Health)
	r.GET("/readyz", health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// wire up the auth flow

	usersRepo := postgres.NewUsersRepo(pool)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, cfg.BcryptCost, em)
	ipHandler := handlers.NewIPInfoHandler(geo, em, prom.ObserveGeoLookup)
	gate := middlewares.NewAuthMiddleware(jwtManager, em)

	api := r.Group("/api")

	api.POST("/register", authLimit.Middleware(middlewares.KeyByIP), authHandler.Register)
	api.POST("/login", authLimit.Middleware(middlewares.KeyByIP), authHandler.Login)
	// The gate runs first so the limiter can key on the authenticated user
	// instead of falling back to the IP.
	api.GET("/validate-token", gate.RequireAuth(), generalLimit.Middleware(middlewares.KeyByUserOrIP), authHandler.ValidateToken)
	api.GET("/ip-info", generalLimit.Middleware(middlewares.KeyByIP), ipHandler.Lookup)

	return r
}
