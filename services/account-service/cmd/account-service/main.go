package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/config"
	"github.com/md-rashed-zaman/oneonone/libs/db"
	"github.com/md-rashed-zaman/oneonone/libs/events"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/kafkax"
	otelx "github.com/md-rashed-zaman/oneonone/libs/otel"
	"github.com/md-rashed-zaman/oneonone/libs/runtime"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/consumer"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/handlers"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/inbox"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/sessions"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "account-service")
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

	if config.Bool("DB_MIGRATE", false) {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied", "count", len(applied))
	}

	signer, err := buildSigner()
	if err != nil {
		logger.Error("failed to init jwt signer", "err", err)
		panic(err)
	}
	accessTTLMinutes, err := config.Int("ACCESS_TTL_MINUTES", 60)
	if err != nil {
		panic(err)
	}
	refreshTTLHours, err := config.Int("REFRESH_TTL_HOURS", 720)
	if err != nil {
		panic(err)
	}

	store := storage.NewStore(pool, inbox.NewRepository())
	refreshRepo := sessions.NewRefreshRepository(pool)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.List("KAFKA_BROKERS"); len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		notifications := consumer.New(logger, store, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "account-service"),
			Topics:  events.MeetingTopics(),
		})
		go notifications.Run(ctx)
	} else {
		logger.Warn("meeting event consumer disabled (KAFKA_BROKERS not set)")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewAuthHandler(signer, store, refreshRepo, logger, handlers.AuthConfig{
		AccessTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(refreshTTLHours) * time.Hour,
	}).Register(mux)

	api := http.NewServeMux()
	handlers.NewAccountHandler(store, logger).Register(api)
	mux.Handle("/api/v1/account/", httpx.RequireUser(api))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "account")

	if err := runtime.Serve(ctx, runtime.NewServer(port, httpHandler), logger); err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}

// buildSigner prefers RS256 keys. JWT_PRIVATE_KEYS_PEM may hold several
// concatenated PEM blocks so retired keys keep verifying.
func buildSigner() (handlers.TokenSigner, error) {
	pems := config.String("JWT_PRIVATE_KEYS_PEM", "")
	if pems == "" {
		pems = config.String("JWT_PRIVATE_KEY_PEM", "")
	}
	if pems != "" {
		return handlers.NewRS256Signer(pems, config.String("JWT_ACTIVE_KID", ""))
	}
	return handlers.NewHS256Signer(config.String("JWT_SECRET", "dev-secret")), nil
}
