// Package main is the entrypoint for the Gymkey API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gymkey/gymkey/internal/cache"
	"github.com/gymkey/gymkey/internal/config"
	"github.com/gymkey/gymkey/internal/handler"
	"github.com/gymkey/gymkey/internal/identity"
	"github.com/gymkey/gymkey/internal/memstore"
	"github.com/gymkey/gymkey/internal/metrics"
	"github.com/gymkey/gymkey/internal/middleware"
	"github.com/gymkey/gymkey/internal/payment"
	"github.com/gymkey/gymkey/internal/repository"
	"github.com/gymkey/gymkey/internal/server"
	"github.com/gymkey/gymkey/internal/service"
)

// store is the union of what the lifecycle service and the auth
// middleware need from a backing store.
type store interface {
	service.CheckinStore
	middleware.UserStore
}

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	var (
		st          store
		cacheClient *cache.Cache
	)

	if cfg.LocalMode {
		logger.Info("running in local mode: in-memory store, instant payments")
		st = memstore.New()
	} else {
		// Run pending schema migrations before opening the pool
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error(
				"failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}

		// Initialize database
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		defer repo.Close()
		logger.Info("connected to database")

		// Initialize cache
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		logger.Info("connected to Redis")

		st = repo
	}

	// Select the payment gateway. Missing credentials mean bypass: the
	// service marks reservations paid at creation.
	var gateway payment.Gateway
	switch {
	case cfg.LocalMode:
		gateway = payment.NewInstantGateway()
	case cfg.PaymentConfigured():
		gateway = payment.NewClient(payment.Config{
			BaseURL:       cfg.PayAPIURL,
			ChannelID:     cfg.PayChannelID,
			ChannelSecret: cfg.PayChannelSecret,
			Currency:      cfg.PayCurrency,
			ConfirmURL:    cfg.BaseURL + "/api/v1/payments/confirm",
			CancelURL:     cfg.BaseURL + "/",
		})
	default:
		logger.Warn("payment gateway not configured, bypassing payment")
	}

	// Identity provider
	identityClient := identity.NewClient(cfg.IdentityAPIURL, cfg.IdentityAllowDevBypass || cfg.IsDevelopment())

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	checkinService := service.NewCheckinService(st, gateway, cfg.SkipPayment, loc, metricsRecorder, logger)

	// Initialize handlers
	h := handler.New()
	healthHandler := newHealthHandler(st, cacheClient)
	checkinHandler := handler.NewCheckinHandler(checkinService, loc, logger)
	priceHandler := handler.NewPriceHandler()
	paymentHandler := handler.NewPaymentHandler(checkinService, cfg.BaseURL, logger)
	userHandler := handler.NewUserHandler()
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	// Setup router
	r := setupRouter(routerDeps{
		h:        h,
		health:   healthHandler,
		checkins: checkinHandler,
		prices:   priceHandler,
		payments: paymentHandler,
		users:    userHandler,
		metrics:  metricsHandler,
		store:    st,
		identity: identityClient,
		cache:    cacheClient,
		cfg:      cfg,
		logger:   logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"local_mode", cfg.LocalMode,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newHealthHandler wires whichever dependencies exist into the probes.
// In local mode both checkers are nil and readyz reports them as not
// configured.
func newHealthHandler(st store, cacheClient *cache.Cache) *handler.HealthHandler {
	var db, c handler.HealthChecker
	if repo, ok := st.(*repository.Repository); ok {
		db = repo
	}
	if cacheClient != nil {
		c = cacheClient
	}
	return handler.NewHealthHandler(db, c)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	h        *handler.Handler
	health   *handler.HealthHandler
	checkins *handler.CheckinHandler
	prices   *handler.PriceHandler
	payments *handler.PaymentHandler
	users    *handler.UserHandler
	metrics  *handler.MetricsHandler
	store    store
	identity *identity.Client
	cache    *cache.Cache
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = deps.cfg.IsDevelopment()
	r.Use(middleware.Security(securityCfg))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = deps.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Snapshot)

	// Root info endpoint
	r.Get("/", deps.h.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:   deps.logger,
		Identity: deps.identity,
		Cache:    deps.cache,
		Users:    deps.store,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  deps.logger,
		Cache:   deps.cache,
		Enabled: deps.cfg.RateLimitEnabled,
		RPS:     deps.cfg.RateLimitRPS,
		Burst:   deps.cfg.RateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated: the booking UI quotes prices before sign-in,
		// and the gateway callback carries no bearer credential.
		r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/prices/calculate", deps.prices.Calculate)
		r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/payments/confirm", deps.payments.Confirm)

		// Everything else requires authentication.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			r.Get("/users/me", deps.users.Me)

			r.Route("/checkins", func(r chi.Router) {
				r.Post("/", deps.checkins.Create)
				r.Get("/", deps.checkins.List)
				r.Get("/{id}", deps.checkins.Get)
				r.Delete("/{id}", deps.checkins.Cancel)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(deps.h.NotFound)
	r.MethodNotAllowed(deps.h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
