package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/ai"
	"github.com/ATR1285/Procure/pkg/auth"
	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/eventbus"
	"github.com/ATR1285/Procure/pkg/ingest"
	"github.com/ATR1285/Procure/pkg/inventory"
	"github.com/ATR1285/Procure/pkg/match"
	"github.com/ATR1285/Procure/pkg/model"
	"github.com/ATR1285/Procure/pkg/store/postgres"
	redisclient "github.com/ATR1285/Procure/pkg/store/redis"
	"github.com/ATR1285/Procure/pkg/worker"
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

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()
	bus := eventbus.NewBus(redis.Client())

	eventRepo := postgres.NewEventRepository(db.DB())
	invoiceRepo := postgres.NewInvoiceRepository(db.DB())
	outboxRepo := postgres.NewOutboxRepository(db.DB())
	inventoryRepo := postgres.NewInventoryRepository(db.DB())
	statusRepo := postgres.NewStatusRepository(db.DB())

	local := erp.NewLocalClient(db.DB(), logger)
	adapter := erp.NewAdapter(postgres.NewConnectionRepository(db.DB()), local, logger)

	var analyzer ai.Analyzer = ai.NewHeuristicAnalyzer()
	if cfg.AI.BaseURL != "" {
		analyzer = ai.NewHTTPAnalyzer(&cfg.AI, logger)
	}

	notifier := &reviewNotifier{
		bus:    bus,
		outbox: outboxRepo,
		tokens: auth.NewApprovalTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.ApprovalTokenTTL),
		logger: logger,
	}

	engine := match.NewEngine(invoiceRepo, adapter, analyzer, nil, notifier, logger)
	scanner := inventory.NewScanner(inventoryRepo, eventRepo, 0, logger)
	source := ingest.NewHTTPSource(&cfg.Ingest, logger)

	w := worker.New(eventRepo, statusRepo, engine, outboxRepo, bus, scanner, source, &cfg.Worker, logger)
	w.SetBackendRefresher(adapter)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	w.Run(ctx)
	logger.Info("worker stopped")
}

// reviewNotifier fans match outcomes out: a redis event for dashboards,
// plus an outbox notification with a signed approval link whenever an
// invoice lands in review.
type reviewNotifier struct {
	bus    *eventbus.Bus
	outbox *postgres.OutboxRepository
	tokens *auth.ApprovalTokenManager
	logger *zap.Logger
}

func (n *reviewNotifier) InvoiceUpdated(ctx context.Context, invoice *model.Invoice) {
	invoiceEvent := eventbus.InvoiceEvent{
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		Confidence:    invoice.ConfidenceScore,
	}
	if event, err := eventbus.NewEvent("invoice_updated", invoiceEvent); err == nil {
		if err := n.bus.Publish(ctx, eventbus.ChannelInvoice, event); err != nil {
			n.logger.Warn("failed to publish invoice event", zap.Error(err))
		}
	}

	if invoice.Status != model.InvoicePendingReview {
		return
	}

	token, err := n.tokens.GenerateApprovalToken(invoice.ID)
	if err != nil {
		n.logger.Warn("failed to mint approval token", zap.Error(err), zap.String("invoice_number", invoice.InvoiceNumber))
		return
	}

	payload := model.JSONB{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"reasoning":      invoice.Reasoning,
		"approval_token": token,
	}
	if invoice.ConfidenceScore != nil {
		payload["confidence"] = *invoice.ConfidenceScore
	}

	notification := &model.NotificationEvent{
		EventID:   uuid.New(),
		EventType: "invoice_review_needed",
		Payload:   payload,
		Channels:  []string{"email"},
		Status:    model.OutboxStatusPending,
	}
	if err := n.outbox.Create(ctx, notification); err != nil {
		n.logger.Warn("failed to write review notification", zap.Error(err), zap.String("invoice_number", invoice.InvoiceNumber))
	}
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	if cfg.Format == "console" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
