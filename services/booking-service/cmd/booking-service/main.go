package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okorolenko/masterbook/libs/config"
	"github.com/okorolenko/masterbook/libs/db"
	"github.com/okorolenko/masterbook/libs/httpx"
	"github.com/okorolenko/masterbook/libs/kafkax"
	otelx "github.com/okorolenko/masterbook/libs/otel"
	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/libs/runtime"
	"github.com/okorolenko/masterbook/migrations"
	"github.com/okorolenko/masterbook/services/booking-service/internal/availability"
	"github.com/okorolenko/masterbook/services/booking-service/internal/booking"
	"github.com/okorolenko/masterbook/services/booking-service/internal/generator"
	"github.com/okorolenko/masterbook/services/booking-service/internal/handlers"
	"github.com/okorolenko/masterbook/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	if err := migrations.Up(dbURL); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	slotRepo := storage.NewSlotRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	templateRepo := storage.NewTemplateRepository(pool)
	outboxRepo := outbox.NewRepository()

	availabilityEngine := availability.NewEngine(slotRepo, catalogRepo)
	bookingEngine := booking.NewEngine(slotRepo, catalogRepo, outboxRepo)
	gen := generator.NewGenerator(slotRepo, templateRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	var rateLimit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limit := config.Int("RATE_LIMIT_PER_MINUTE", 60)
		limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service)
		rateLimit = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handler := handlers.New(catalogRepo, slotRepo, templateRepo, availabilityEngine, bookingEngine, gen, logger)
	handler.Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
	}
	if rateLimit != nil {
		middlewares = append(middlewares, rateLimit)
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
