package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/almatopete/clinica-backend/libs/auth"
	"github.com/almatopete/clinica-backend/libs/config"
	"github.com/almatopete/clinica-backend/libs/db"
	"github.com/almatopete/clinica-backend/libs/httpx"
	"github.com/almatopete/clinica-backend/libs/kafkax"
	otelx "github.com/almatopete/clinica-backend/libs/otel"
	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/libs/runtime"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/authz"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/booking"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/handlers"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/lifecycle"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "clinic-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo)
	engine := booking.NewEngine(repo, logger)
	ctrl := lifecycle.NewController(repo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	var jwksClient *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("JWKS_URL", "")); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_CACHE_TTL", 5*time.Minute))
	}

	apptHandler := handlers.NewAppointmentHandler(engine, ctrl, repo, logger)
	catalogHandler := handlers.NewCatalogHandler(repo, logger)
	adminHandler := handlers.NewAdminHandler(repo, logger)

	authed := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireAuth(h, jwtSecret, jwksClient)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireAuth(handlers.RequireRole(h, authz.RoleAdmin), jwtSecret, jwksClient)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/doctors", catalogHandler.Doctors)
	mux.HandleFunc("/api/v1/slots", catalogHandler.Slots)
	mux.Handle("/api/v1/appointments", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			apptHandler.Create(w, r)
		default:
			apptHandler.List(w, r)
		}
	}))
	mux.Handle("/api/v1/appointments/cancel", authed(apptHandler.Cancel))
	mux.Handle("/api/v1/appointments/reschedule", authed(apptHandler.Reschedule))
	mux.Handle("/api/v1/appointments/confirm", authed(apptHandler.Confirm))
	mux.Handle("/api/v1/appointments/attended", authed(apptHandler.MarkAttended))
	mux.Handle("/api/v1/appointments/no-show", authed(apptHandler.MarkNoShow))
	mux.Handle("/api/v1/admin/appointments/export", adminOnly(adminHandler.Export))
	mux.Handle("/api/v1/admin/appointments/purge", adminOnly(adminHandler.Purge))

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "clinic")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
