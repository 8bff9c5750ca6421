package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/libs/httpx"
	"github.com/strideacademy/coachbook/libs/kafkax"
	otelx "github.com/strideacademy/coachbook/libs/otel"
	"github.com/strideacademy/coachbook/libs/runtime"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/availability"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/booking"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/catalog"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/content"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/enrollment"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/grpcserver"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/handlers"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/roster"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/storage"
	"github.com/strideacademy/coachbook/services/coaching-service/migrations"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("db connection: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	outboxRepo := outbox.NewRepository()
	rosterSvc := roster.NewService(storage.NewAthleteRepository(pool, outboxRepo), logger)
	catalogSvc := catalog.NewService(storage.NewServiceTypeRepository(pool), logger)
	services := handlers.Services{
		ServiceTypes: catalogSvc,
		Availability: availability.NewService(storage.NewAvailabilityRepository(pool), catalogSvc, logger),
		Bookings: booking.NewEngine(storage.NewBookingRepository(pool, outboxRepo), catalogSvc, rosterSvc,
			booking.Options{EnforceAvailability: cfg.EnforceAvailability}, logger),
		Enrollments: enrollment.NewService(storage.NewEnrollmentRepository(pool, outboxRepo), logger),
		Content:     content.NewService(storage.NewContentRepository(pool), rosterSvc, logger),
		Roster:      rosterSvc,
	}

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	})
	go publisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			defer rdb.Close()
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
			limit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "coachbook:ratelimit", rateKey).
				Middleware(logger, true)
		} else {
			limit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, rateKey).Middleware()
		}
	}

	var jwks *auth.JWKSClient
	if cfg.JWKSURL != "" {
		jwks = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, jwks)
	router := handlers.New(services, logger).Routes(authenticate(verifier, limit))
	router.Get("/healthz", runtime.HealthHandler)
	router.Get("/readyz", runtime.ReadyHandler(checks...))

	httpHandler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.CORSAllowedOrigins}),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(httpHandler, "coaching"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpcserver.New(logger, checks, 10*time.Second)
	go func() {
		if err := grpcSrv.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

// authenticate verifies the bearer token before the limiter runs, so only
// verified callers are counted.
func authenticate(verifier *auth.Verifier, limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return verifier.Middleware(limit(next)) }
}

// rateKey buckets callers by token subject.
func rateKey(r *http.Request) string {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return "sub:" + claims.Subject
}
