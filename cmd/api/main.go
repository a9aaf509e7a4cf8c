package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/meatshop-orders/internal/api"
	"github.com/example/meatshop-orders/internal/auth"
	"github.com/example/meatshop-orders/internal/cache"
	"github.com/example/meatshop-orders/internal/command"
	"github.com/example/meatshop-orders/internal/config"
	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/product"
	"github.com/example/meatshop-orders/internal/infrastructure/kafka"
	"github.com/example/meatshop-orders/internal/infrastructure/rabbitmq"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/logger"
	"github.com/example/meatshop-orders/internal/notification"
	"github.com/example/meatshop-orders/internal/query"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "meatshop-api", Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	s, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	c, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	notifier, closeNotifier, err := openNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	tiers, err := loyalty.NewTierTable(cfg.LoyaltyTierThresholds)
	if err != nil {
		return err
	}
	if !tiers.IsDefault() {
		log.Warn("loyalty tier thresholds differ from the published defaults", "tiers", tiers.String())
	}
	policy, err := loyalty.ParseTierPolicy(cfg.LoyaltyTierPolicy)
	if err != nil {
		return err
	}

	ledger := inventory.NewLedger(s, c, log)
	discounts := discount.NewService(s, c, log)
	loyaltySvc := loyalty.NewService(s, tiers, policy, notifier, log)
	cmdHandler := command.NewHandler(s, ledger, discounts, loyaltySvc, notifier, log,
		command.WithMaxConcurrentLookups(cfg.CheckoutMaxConcurrentLookups))

	handlers := api.NewHandlers(api.Deps{
		Commands:  cmdHandler,
		Queries:   query.NewHandler(s, log),
		Products:  product.NewService(s, c, log),
		Ledger:    ledger,
		Discounts: discounts,
		Loyalty:   loyaltySvc,
		Logger:    log,
	})
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: jwtService,
		Logger:     log,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			"addr", cfg.HTTPAddr,
			"store", cfg.StoreBackend,
			"cache", cfg.CacheBackend,
			"broker", cfg.NotifyBroker,
			"tier_policy", string(policy),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("connected to PostgreSQL")
	return store.NewPostgresStore(db), closer(db, log, "postgres"), nil
}

func openCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to Redis", "addr", cfg.RedisAddr)
		return cache.NewRedis(client, "meatshop:", cfg.CacheTTL), func() { _ = client.Close() }, nil
	case "none":
		return cache.Nop{}, func() {}, nil
	default:
		return cache.NewLRU(cfg.CacheSize, cfg.CacheTTL), func() {}, nil
	}
}

func openNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (notification.Notifier, func(), error) {
	switch cfg.NotifyBroker {
	case "kafka":
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic)
		return notification.NewBrokerNotifier(producer, log), func() { _ = producer.Close() }, nil
	case "rabbitmq":
		client, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, cfg.NotifyTopic, log)
		if err != nil {
			return nil, nil, err
		}
		return notification.NewBrokerNotifier(client, log), func() { _ = client.Close() }, nil
	default:
		return notification.NewLogNotifier(log), func() {}, nil
	}
}

func closer(db *sql.DB, log *slog.Logger, name string) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("close failed", "resource", name, "error", err)
		}
	}
}
