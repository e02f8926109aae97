package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/auth"
	"github.com/md-rashed-zaman/oneonone/libs/config"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	otelx "github.com/md-rashed-zaman/oneonone/libs/otel"
	"github.com/md-rashed-zaman/oneonone/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	jwksTTL, err := config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute)
	if err != nil {
		panic(err)
	}
	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, jwksTTL)
	}
	verifier := tokenVerifier{secret: config.String("JWT_SECRET", "dev-secret"), jwks: jwksClient}

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, upstreams{
		account: mustParseURL(config.String("ACCOUNT_URL", "http://account-service:8081")),
		meeting: mustParseURL(config.String("MEETING_URL", "http://meeting-service:8082")),
	}, verifier)

	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		panic(err)
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		panic(err)
	}
	corsMaxAge, err := config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute)
	if err != nil {
		panic(err)
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
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

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   listOr("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders:   listOr("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           corsMaxAge,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")

	if err := runtime.Serve(ctx, runtime.NewServer(port, handler), logger); err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}

type upstreams struct {
	account *url.URL
	meeting *url.URL
}

func registerRoutes(mux *http.ServeMux, up upstreams, verifier tokenVerifier) {
	accountProxy := httputil.NewSingleHostReverseProxy(up.account)
	meetingProxy := httputil.NewSingleHostReverseProxy(up.meeting)
	otelTransport := otelhttp.NewTransport(http.DefaultTransport)
	accountProxy.Transport = otelTransport
	meetingProxy.Transport = otelTransport

	registerProxy(mux, "/api/v1/auth", stripIdentity(accountProxy))
	registerProxy(mux, "/.well-known/jwks.json", stripIdentity(accountProxy))
	registerProxy(mux, "/api/v1/account", requireAuth(accountProxy, verifier))
	registerProxy(mux, "/api/v1/meetings", requireAuth(meetingProxy, verifier))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func listOr(key, fallback string) []string {
	if v := config.List(key); len(v) > 0 {
		return v
	}
	return strings.Split(fallback, ",")
}
