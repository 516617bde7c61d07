/**
 * @description
 * This is the main entry point for the contribution-service. It loads configuration,
 * connects to PostgreSQL, RabbitMQ, Redis, and Paystack, wires the application service,
 * starts the gateway confirmation consumer and the interest scheduler, and serves HTTP.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/redis/go-redis/v9: Backing store for the contribution rate limit.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/paystack, pkg/rabbitmq: Clients for the payment gateway and the event bus.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dewbox/contribution-service/internal/api"
	"github.com/dewbox/contribution-service/internal/app"
	"github.com/dewbox/contribution-service/internal/config"
	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/dewbox/contribution-service/pkg/paystack"
	"github.com/dewbox/contribution-service/pkg/rabbitmq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("cannot load config", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		logger.Warn("INTERNAL_API_KEY is not set; admin routes will refuse every request")
	}

	serviceOpts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		logger.Error("invalid service configuration", "error", err)
		os.Exit(1)
	}
	interestRate, err := app.InterestJobRate(cfg)
	if err != nil {
		logger.Error("invalid interest job configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting contribution-service", "port", cfg.ServerPort, "timezone", serviceOpts.Location.String(), "piggy_wallet_mode", cfg.PiggyWalletMode)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	dbpool, err := store.NewPool(bootCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connected")

	if err := store.Migrate(bootCtx, dbpool); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected")
	}
	defer publisher.Close()

	var gateway app.PaymentGateway
	if strings.TrimSpace(cfg.PaystackSecretKey) == "" {
		logger.Warn("PAYSTACK_SECRET_KEY is not set; gateway contributions disabled")
	} else {
		gateway = paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	}

	repository := store.NewPostgresRepository(dbpool, cfg.LockTimeout())
	contributionService := app.NewService(repository, gateway, publisher, logger, serviceOpts)

	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq consumer unavailable; gateway confirmations arrive by webhook only", "error", err)
	} else {
		defer rabbitConsumer.Close()
		confirmations := app.NewGatewayConfirmationConsumer(contributionService, logger)
		bindings := map[string]rabbitmq.Handler{
			domain.RoutingGatewayConfirmed: confirmations.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(domain.EventsExchange, cfg.GatewayEventQueue, bindings); err != nil {
			logger.Error("gateway confirmation consumer start failed", "error", err)
			os.Exit(1)
		}
	}

	var limiter api.RateLimiter
	if cfg.ContributionRateLimitPerMinute > 0 {
		if redisClient := connectRedis(logger, cfg.RedisURL); redisClient != nil {
			defer redisClient.Close()
			limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
		}
	}

	if cfg.ClerkJWKSURL == "" {
		logger.Warn("CLERK_JWKS_URL is not set; subscriber routes will reject every token")
	}
	handler := api.NewHandler(contributionService, logger, cfg.PaystackSecretKey)
	router := api.NewRouter(handler, api.RouterConfig{
		Keys:                   api.NewJWKSCache(cfg.ClerkJWKSURL, 10*time.Minute),
		InternalAPIKey:         cfg.InternalAPIKey,
		AllowedOrigins:         cfg.AllowedOrigins(),
		RateLimiter:            limiter,
		ContributionsPerMinute: cfg.ContributionRateLimitPerMinute,
		Logger:                 logger,
	})

	scheduler := app.NewScheduler(contributionService, logger, cfg.InterestJobSchedule, interestRate)
	scheduler.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("interest job still running at shutdown")
	}

	logger.Info("shutdown complete")
}

// connectRedis returns nil when Redis is not configured or unreachable, which turns the
// contribution rate limit off.
func connectRedis(logger *slog.Logger, redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		logger.Warn("redis url missing; contribution rate limiting disabled", "env", "REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; contribution rate limiting disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed; contribution rate limiting disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}
