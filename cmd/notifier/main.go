package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/meatshop-orders/internal/config"
	"github.com/example/meatshop-orders/internal/email"
	"github.com/example/meatshop-orders/internal/infrastructure/kafka"
	"github.com/example/meatshop-orders/internal/infrastructure/rabbitmq"
	"github.com/example/meatshop-orders/internal/logger"
	"github.com/example/meatshop-orders/internal/notification"
)

// consumerGroup is the dedicated consumer group for email notifications.
const consumerGroup = "email-notifier"

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "meatshop-notifier", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, log)

	log.Info("notifier starting",
		"broker", cfg.NotifyBroker,
		"topic", cfg.NotifyTopic,
		"smtp", cfg.SMTPHost+":"+cfg.SMTPPort,
		"from", cfg.SMTPFrom,
	)

	if err := consume(ctx, cfg, log, handler); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	log.Info("notifier stopped")
}

func consume(ctx context.Context, cfg config.Config, log *slog.Logger, handler *notification.Handler) error {
	switch cfg.NotifyBroker {
	case "rabbitmq":
		client, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, cfg.NotifyTopic, log)
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Consume(ctx, handler.HandleEvent)
	case "kafka":
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.NotifyTopic, consumerGroup, log)
		defer consumer.Close()
		return consumer.Consume(ctx, handler.HandleEvent)
	default:
		log.Warn("no broker to consume from; notifications are only logged by the API", "broker", cfg.NotifyBroker)
		<-ctx.Done()
		return nil
	}
}
