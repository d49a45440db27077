// Package main is the entrypoint for the orgdir API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/orgdir/orgdir/internal/cache"
	"github.com/orgdir/orgdir/internal/config"
	"github.com/orgdir/orgdir/internal/handler"
	"github.com/orgdir/orgdir/internal/metrics"
	"github.com/orgdir/orgdir/internal/middleware"
	"github.com/orgdir/orgdir/internal/password"
	"github.com/orgdir/orgdir/internal/repository"
	"github.com/orgdir/orgdir/internal/server"
	"github.com/orgdir/orgdir/internal/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Redis is optional; without it the IP limiter is off.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			repo.Close()
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		logger.Info("connected to Redis")
	}

	var recorder metrics.Recorder = metrics.NewNoop()
	var prom *metrics.PrometheusRecorder
	if cfg.MetricsEnabled {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	exposeDetails := !cfg.IsProduction()
	userHandler := handler.NewUserHandler(service.NewUserService(repo, password.Hash, recorder), logger, exposeDetails)
	entityHandler := handler.NewEntityHandler(service.NewEntityService(repo, recorder), logger, exposeDetails)
	assocHandler := handler.NewAssociationHandler(service.NewAssociationService(repo, recorder), logger, exposeDetails)

	var healthHandler *handler.HealthHandler
	if cacheClient != nil {
		healthHandler = handler.NewHealthHandler(repo, cacheClient)
	} else {
		healthHandler = handler.NewHealthHandler(repo, nil)
	}

	r := setupRouter(routerDeps{
		cfg:          cfg,
		logger:       logger,
		base:         handler.New(version),
		health:       healthHandler,
		users:        userHandler,
		entities:     entityHandler,
		associations: assocHandler,
		cache:        cacheClient,
		prom:         prom,
	})

	srv := server.New(r, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.AppPort),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"rate_limit", cfg.RateLimitActive(),
		"metrics", cfg.MetricsEnabled,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "orgdir")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	cfg          *config.Config
	logger       *slog.Logger
	base         *handler.Handler
	health       *handler.HealthHandler
	users        *handler.UserHandler
	entities     *handler.EntityHandler
	associations *handler.AssociationHandler
	cache        *cache.Cache
	prom         *metrics.PrometheusRecorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger, d.cfg.IsDevelopment()))
	if d.prom != nil {
		r.Use(middleware.Metrics(d.prom))
	}
	r.Use(middleware.Security(d.cfg.IsDevelopment()))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.cfg.GetCORSAllowedOrigins())))

	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	r.Get("/", d.base.Hello)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	if d.prom != nil {
		r.Method(http.MethodGet, "/metrics", d.prom.Handler())
	}

	var limiter middleware.IPRateLimiter
	if d.cache != nil {
		limiter = d.cache
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))
		r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  d.logger,
			Limiter: limiter,
			Enabled: d.cfg.RateLimitActive(),
			RPS:     d.cfg.RateLimitRPS,
			Burst:   d.cfg.RateLimitBurst,
		}))

		r.Mount("/users", d.users.Routes())
		r.Mount("/entities", d.entities.Routes())
		r.Mount("/user-entities", d.associations.Routes())
	})

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}
	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

// sanitizeError removes connection secrets from driver error text.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, redactURL(secret))
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
