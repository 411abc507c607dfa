package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardapio/internal/client"
	"cardapio/internal/config"
	"cardapio/internal/events"
	"cardapio/internal/kv"
	"cardapio/internal/logging"
	"cardapio/internal/repositories"
	"cardapio/pkg/rabbitmq"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const kafkaGroupID = "cardapio-queued-orders"

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database ---
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := repositories.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := db.AutoMigrate(&kv.Entry{}); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// --- Key-value storage for carts and pending orders ---
	cartKV, pendingKV, err := openKV(ctx, cfg, db)
	if err != nil {
		logger.Fatal("Failed to initialize key-value store", zap.Error(err))
	}

	deps := Deps{
		DB:        db,
		CartKV:    cartKV,
		PendingKV: pendingKV,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Logger:    logger,
	}
	if cfg.OrderAPIURL != "" {
		deps.API = client.NewAPIClient(cfg.OrderAPIURL, cfg.HTTPClientTimeout)
		logger.Info("submitting orders to remote API", zap.String("url", cfg.OrderAPIURL))
	}

	// --- Event broker ---
	var consume func(handler events.Handler) error
	switch cfg.EventsBroker {
	case "rabbitmq":
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		deps.Publisher = mqClient
		consume = func(handler events.Handler) error {
			return mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
				return handler(ctx, msg.RoutingKey, msg.Body)
			})
		}
	case "kafka":
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		deps.Publisher = publisher
		consumer := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, kafkaGroupID, logger)
		defer consumer.Close()
		consume = func(handler events.Handler) error {
			go func() {
				if err := consumer.Run(ctx, handler); err != nil {
					logger.Error("Kafka consumer stopped", zap.Error(err))
				}
			}()
			return nil
		}
	}

	app := NewApp(deps)

	// --- Queued order consumer ---
	if consume != nil {
		logger.Info("Starting queued order consumer", zap.String("broker", cfg.EventsBroker))
		if err := consume(queuedOrderHandler(app.Orders, logger)); err != nil {
			logger.Error("Failed to start queued order consumer", zap.Error(err))
		}
	}

	// --- Start HTTP Server ---
	logger.Info("Starting server", zap.String("port", cfg.Port), zap.Strings("order_tiers", app.Submitter.Tiers()))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.Port); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	cancel()

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// openKV returns the store carts live in and the one pending orders live in. Only carts expire.
func openKV(ctx context.Context, cfg *config.Config, db *gorm.DB) (kv.Store, kv.Store, error) {
	switch cfg.KVBackend {
	case "memory":
		store := kv.NewMemoryStore()
		return store, store, nil
	case "redis":
		rdb, err := kv.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(rdb, cfg.CartTTL), kv.NewRedisStore(rdb, 0), nil
	case "gorm":
		store := kv.NewGormStore(db)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported kv backend %q", cfg.KVBackend)
	}
}
