package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexconnect/lexconnect/libs/config"
	"github.com/lexconnect/lexconnect/libs/db"
	"github.com/lexconnect/lexconnect/libs/httpx"
	"github.com/lexconnect/lexconnect/libs/kafkax"
	otelx "github.com/lexconnect/lexconnect/libs/otel"
	"github.com/lexconnect/lexconnect/libs/runtime"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/consumer"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/email"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/inbox"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/notify"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/storage"
	"github.com/lexconnect/lexconnect/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	brokers := config.String("KAFKA_BROKERS", "")
	checks := []runtime.ReadyCheck{
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var (
		recorder inbox.Recorder
		store    storage.Store
	)
	switch driver := strings.ToLower(config.String("STORE_DRIVER", "postgres")); driver {
	case "memory":
		logger.Warn("using in-memory inbox; duplicates are only detected until restart")
		recorder = inbox.NewMemory()
		store = storage.NewMemory()
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
			if err := db.Migrate(ctx, pool, migrations.FS, ".", "notification_goose_db_version"); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}
		recorder = inbox.NewRepository(pool)
		store = storage.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		logger.Error("unknown STORE_DRIVER", "driver", driver)
		panic("STORE_DRIVER must be postgres or memory")
	}

	sender, err := newSender(logger)
	if err != nil {
		logger.Error("email sender init failed", "err", err)
		panic(err)
	}

	handler := notify.NewHandler(sender, store, logger)
	eventConsumer := consumer.New(logger, recorder, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  config.List("KAFKA_CONSUME_TOPICS", strings.Join(notify.Topics, ",")),
	}, handler.Handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(checks...)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "provider", sender.ProviderID())
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

// newSender returns an SMTP sender, or a log-only one when SMTP_HOST is empty.
func newSender(logger *slog.Logger) (email.Sender, error) {
	host := strings.TrimSpace(config.String("SMTP_HOST", ""))
	if host == "" {
		logger.Warn("SMTP_HOST not set; emails are logged, not sent")
		return email.NewLogSender(logger), nil
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     host,
		Port:     config.String("SMTP_PORT", "1025"),
		Username: config.String("SMTP_USER", ""),
		Password: config.String("SMTP_PASSWORD", ""),
		From:     config.String("SMTP_FROM", "no-reply@lexconnect.local"),
		FromName: config.String("SMTP_FROM_NAME", "LexConnect"),
	})
}
