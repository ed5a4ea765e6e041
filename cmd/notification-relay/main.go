package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/outbox"
	"github.com/ATR1285/Procure/pkg/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging)
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.NotificationTopic,
		Balancer: &kafka.LeastBytes{},
		Async:    false,
	})
	defer writer.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.DLQTopic,
		Balancer: &kafka.LeastBytes{},
		Async:    false,
	})
	defer dlqWriter.Close()

	repo := postgres.NewOutboxRepository(db.DB())
	relay := outbox.NewRelay(repo, writer, dlqWriter, logger, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := relay.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("notification relay stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("notification relay shutting down")
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	if cfg.Format == "console" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
