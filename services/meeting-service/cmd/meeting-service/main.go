package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/config"
	"github.com/md-rashed-zaman/oneonone/libs/db"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/kafkax"
	otelx "github.com/md-rashed-zaman/oneonone/libs/otel"
	"github.com/md-rashed-zaman/oneonone/libs/runtime"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/drafts"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/handlers"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/storage"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/sweeper"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "meeting-service")
	port, err := config.Port("PORT", "8082")
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

	if config.Bool("DB_MIGRATE", false) {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied", "count", len(applied))
	}

	draftTTLMinutes, err := config.Int("DRAFT_TTL_MINUTES", 60)
	if err != nil {
		panic(err)
	}
	draftTTL := time.Duration(draftTTLMinutes) * time.Minute

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	var draftStore drafts.Store
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		draftStore = drafts.NewRedisStore(rdb, draftTTL)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("draft store: redis", "redis_addr", addr, "ttl", draftTTL)
	} else {
		draftStore = drafts.NewMemoryStore(draftTTL)
		logger.Warn("draft store: in-memory (REDIS_ADDR not set)")
	}

	brokers := config.List("KAFKA_BROKERS")
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	sweepEvery, err := config.Seconds("SWEEP_INTERVAL_SECONDS", time.Minute)
	if err != nil {
		panic(err)
	}
	store := storage.NewStore(pool, outboxRepo)
	go sweeper.NewWorker(store, logger, sweeper.WorkerConfig{Interval: sweepEvery}).Run(ctx)

	api := http.NewServeMux()
	handlers.NewMeetingHandler(store, draftStore, logger).Register(api)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/meetings/", httpx.RequireUser(api))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "meeting")

	if err := runtime.Serve(ctx, runtime.NewServer(port, httpHandler), logger); err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}
