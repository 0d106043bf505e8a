package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/lexconnect/lexconnect/libs/config"
	"github.com/lexconnect/lexconnect/libs/db"
	"github.com/lexconnect/lexconnect/libs/httpx"
	"github.com/lexconnect/lexconnect/libs/kafkax"
	otelx "github.com/lexconnect/lexconnect/libs/otel"
	"github.com/lexconnect/lexconnect/libs/runtime"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/booking"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/conflict"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/directory"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/handlers"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/outbox"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/query"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/storage"
	"github.com/lexconnect/lexconnect/services/appointment-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8083")
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

	loc, err := time.LoadLocation(config.String("PRACTICE_TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid PRACTICE_TIMEZONE", "err", err)
		panic(err)
	}
	storeOpts := storage.Options{Clock: time.Now, Location: loc, Logger: logger}

	var (
		store  storage.Store
		checks []runtime.ReadyCheck
	)
	switch driver := strings.ToLower(config.String("STORE_DRIVER", "postgres")); driver {
	case "memory":
		logger.Warn("using in-memory appointment store; data is lost on restart")
		store = storage.NewMemory(storeOpts)
	case "postgres":
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

		if config.Bool("MIGRATE_ON_START", true) {
			if err := db.Migrate(ctx, pool, migrations.FS, ".", "appointment_goose_db_version"); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}

		outboxRepo := outbox.NewRepository()
		store = storage.NewPostgres(pool, outboxRepo, storeOpts)

		brokers := config.String("KAFKA_BROKERS", "")
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)

		checks = append(checks,
			runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
			runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true},
		)
	default:
		logger.Error("unknown STORE_DRIVER", "driver", driver)
		panic("STORE_DRIVER must be postgres or memory")
	}

	lawyers, closeLawyers, err := directory.NewProvider(logger,
		config.String("DIRECTORY_GRPC_ADDR", ""),
		directory.ParseSeed(config.String("DIRECTORY_STATIC_LAWYERS", "")),
	)
	if err != nil {
		logger.Error("lawyer directory init failed", "err", err)
		panic(err)
	}
	defer func() { _ = closeLawyers() }()
	lawyers = directory.NewCached(lawyers, config.Duration("DIRECTORY_CACHE_TTL", time.Minute))

	bookingSvc := booking.NewService(store, conflict.NewChecker(conflict.LinearScan{}), lawyers, logger, booking.Config{
		Clock:    time.Now,
		Location: loc,
	})
	appointmentHandler := handlers.NewAppointmentHandler(bookingSvc, query.NewService(store), lawyers, logger)

	rateLimitMW, closeLimiter := rateLimiter(logger, &checks)
	defer closeLimiter()

	router := mux.NewRouter()
	appointmentHandler.Register(router)

	base := runtime.NewBaseMuxWithReady(checks...)
	base.Handle("/api/", router)

	httpHandler := httpx.Chain(base,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
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

// rateLimiter prefers a Redis-backed limiter shared across replicas and falls
// back to a per-process one. RATE_LIMIT_ENABLED=false turns limiting off.
func rateLimiter(logger *slog.Logger, checks *[]runtime.ReadyCheck) (httpx.Middleware, func()) {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if !config.Bool("RATE_LIMIT_ENABLED", true) {
		return nil, func() {}
	}
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limit)
		return httpx.NewRateLimiter(limit, time.Minute).Middleware(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	*checks = append(*checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: true})
	logger.Info("rate limiting enabled (redis)", "per_minute", limit, "redis_addr", addr)
	rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "appt-rl"))
	return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), func() { _ = rdb.Close() }
}
