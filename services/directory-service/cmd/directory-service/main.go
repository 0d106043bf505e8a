package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/lexconnect/lexconnect/libs/config"
	"github.com/lexconnect/lexconnect/libs/db"
	"github.com/lexconnect/lexconnect/libs/grpcx"
	"github.com/lexconnect/lexconnect/libs/httpx"
	otelx "github.com/lexconnect/lexconnect/libs/otel"
	"github.com/lexconnect/lexconnect/libs/runtime"
	"github.com/lexconnect/lexconnect/services/directory-service/internal/grpcserver"
	"github.com/lexconnect/lexconnect/services/directory-service/internal/handlers"
	"github.com/lexconnect/lexconnect/services/directory-service/internal/storage"
	"github.com/lexconnect/lexconnect/services/directory-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "directory-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
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

	var (
		store  storage.Store
		checks []runtime.ReadyCheck
	)
	seed := storage.ParseSeed(config.String("DIRECTORY_SEED_LAWYERS", ""))
	if strings.EqualFold(config.String("DIRECTORY_STORE", "postgres"), "memory") {
		logger.Warn("using in-memory lawyer directory", "seeded", len(seed))
		store = storage.NewMemory(seed...)
	} else {
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
			if err := db.Migrate(ctx, pool, migrations.FS, ".", "directory_goose_db_version"); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}
		repo := storage.NewRepository(pool)
		for _, l := range seed {
			if _, err := repo.Upsert(ctx, l); err != nil {
				logger.Error("seed lawyer failed", "lawyer_id", l.ID, "err", err)
			}
		}
		store = repo
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	router := mux.NewRouter()
	handlers.New(store, logger).Register(router)

	base := runtime.NewBaseMuxWithReady(checks...)
	base.Handle("/api/", router)
	handler := httpx.Chain(base,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "directory")
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

	grpcSrv := grpcx.NewServer(logger)
	grpcserver.Register(grpcSrv, store)
	go func() {
		if err := grpcx.Serve(ctx, logger, grpcSrv, ":"+grpcPort); err != nil {
			logger.Error("grpc server error", "err", err)
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
