// Package worker runs the autonomous agent loop. The event queue in the
// database is the single source of truth: each cycle claims pending
// events, dispatches them, and commits terminal statuses, so the worker
// functions whether or not any interactive component is running.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/eventbus"
	"github.com/ATR1285/Procure/pkg/metrics"
	"github.com/ATR1285/Procure/pkg/model"
)

const serviceName = "worker"

// Queue is the durable event queue contract the loop coordinates on.
type Queue interface {
	Enqueue(ctx context.Context, event *model.Event) error
	ClaimPending(ctx context.Context) ([]model.Event, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
}

// Heartbeater records that this worker is alive.
type Heartbeater interface {
	Heartbeat(ctx context.Context, serviceName, status string) error
}

// InvoiceProcessor is the decision engine entry point.
type InvoiceProcessor interface {
	ProcessInvoiceMatch(ctx context.Context, payload *model.InvoicePayload) error
}

// NotificationStore accepts outbox rows for external notification
// senders.
type NotificationStore interface {
	Create(ctx context.Context, event *model.NotificationEvent) error
}

// StockScanner is the periodic low-stock check.
type StockScanner interface {
	Scan(ctx context.Context) (int, error)
}

// BackendRefresher re-resolves the active ERP backend. The API server
// activates connections in its own process, so the worker re-reads the
// active row every cycle instead of relying on an in-process signal.
type BackendRefresher interface {
	Refresh(ctx context.Context)
}

// IngestSource yields invoice documents found by the external
// extraction service.
type IngestSource interface {
	FetchLatest(ctx context.Context) ([]model.InvoicePayload, error)
}

type Worker struct {
	queue     Queue
	status    Heartbeater
	engine    InvoiceProcessor
	outbox    NotificationStore
	bus       *eventbus.Bus
	stockScan StockScanner
	ingest    IngestSource
	backend   BackendRefresher
	logger    *zap.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
	busyDelay      time.Duration
	stockInterval  time.Duration
	ingestInterval time.Duration

	lastStockRun  time.Time
	lastIngestRun time.Time
}

func New(
	queue Queue,
	status Heartbeater,
	engine InvoiceProcessor,
	outbox NotificationStore,
	bus *eventbus.Bus,
	stockScan StockScanner,
	ingest IngestSource,
	cfg *config.WorkerConfig,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:          queue,
		status:         status,
		engine:         engine,
		outbox:         outbox,
		bus:            bus,
		stockScan:      stockScan,
		ingest:         ingest,
		logger:         logger,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		busyDelay:      cfg.BusyDelay,
		stockInterval:  cfg.StockInterval,
		ingestInterval: cfg.IngestInterval,
	}
}

// SetBackendRefresher wires the ERP connection refresh into the loop.
func (w *Worker) SetBackendRefresher(r BackendRefresher) {
	w.backend = r
}

// Run drives the loop until ctx is cancelled. It never exits on its own:
// a failing cycle is logged, recorded as a synthetic AGENT_ERROR event,
// and retried after backoff. Cancellation stops claiming new work but
// events already claimed in the current cycle finish processing.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("agent worker started",
		zap.Duration("initial_backoff", w.initialBackoff),
		zap.Duration("max_backoff", w.maxBackoff),
		zap.Duration("stock_interval", w.stockInterval),
		zap.Duration("ingest_interval", w.ingestInterval),
	)

	wait := w.initialBackoff
	for {
		if ctx.Err() != nil {
			w.logger.Info("agent worker stopped")
			return
		}

		claimed, err := w.cycle(ctx)
		switch {
		case err != nil:
			w.logger.Error("worker cycle failed", zap.Error(err))
			w.recordLoopError(ctx, err)
			if !w.sleep(ctx, wait) {
				return
			}
			wait = w.nextBackoff(wait)
		case claimed == 0:
			if !w.sleep(ctx, wait) {
				return
			}
			wait = w.nextBackoff(wait)
		default:
			wait = w.initialBackoff
			if !w.sleep(ctx, w.busyDelay) {
				return
			}
		}
	}
}

// cycle is one pass: heartbeat, claim, dispatch, periodic scans. Every
// cycle is self-contained; only the two scan timestamps survive between
// cycles.
func (w *Worker) cycle(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	if err := w.status.Heartbeat(ctx, serviceName, "healthy"); err != nil {
		w.logger.Warn("heartbeat failed", zap.Error(err))
	}

	if w.backend != nil {
		w.backend.Refresh(ctx)
	}

	events, err := w.queue.ClaimPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("claim pending events: %w", err)
	}
	metrics.QueueDepth.Set(float64(len(events)))

	// Claimed events are committed as PROCESSING; finish them even if
	// shutdown is requested mid-batch.
	procCtx := context.WithoutCancel(ctx)
	for i := range events {
		w.processEvent(procCtx, &events[i])
	}

	w.runPeriodicScans(ctx)

	return len(events), nil
}

func (w *Worker) processEvent(ctx context.Context, event *model.Event) {
	w.logger.Info("processing event",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.EventType)),
	)

	if err := w.dispatch(ctx, event); err != nil {
		w.logger.Error("event failed",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		if failErr := w.queue.Fail(ctx, event.ID); failErr != nil {
			w.logger.Error("could not mark event failed",
				zap.String("event_id", event.ID.String()),
				zap.Error(failErr),
			)
		}
		metrics.EventsProcessed.WithLabelValues(string(event.EventType), string(model.EventFailed)).Inc()
		return
	}

	if err := w.queue.Complete(ctx, event.ID); err != nil {
		w.logger.Error("could not mark event done",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return
	}
	metrics.EventsProcessed.WithLabelValues(string(event.EventType), string(model.EventDone)).Inc()
}

func (w *Worker) dispatch(ctx context.Context, event *model.Event) error {
	switch event.EventType {
	case model.EventInvoiceReceived:
		payload, err := model.DecodeInvoicePayload(event)
		if err != nil {
			return err
		}
		return w.engine.ProcessInvoiceMatch(ctx, payload)
	case model.EventStockAlert:
		return w.handleStockAlert(ctx, event)
	case model.EventAgentError:
		// Synthetic bookkeeping rows; nothing to do beyond closing them.
		return nil
	default:
		return fmt.Errorf("no handler for event type %q", event.EventType)
	}
}

func (w *Worker) handleStockAlert(ctx context.Context, event *model.Event) error {
	notification := &model.NotificationEvent{
		EventID:   uuid.New(),
		EventType: "stock_alert",
		Payload:   event.Payload,
		Channels:  []string{"email", "sms"},
		Status:    model.OutboxStatusPending,
	}
	if err := w.outbox.Create(ctx, notification); err != nil {
		return fmt.Errorf("write stock alert notification: %w", err)
	}

	if w.bus != nil {
		if busEvent, err := eventbus.NewEvent("stock_alert", event.Payload); err == nil {
			_ = w.bus.Publish(ctx, eventbus.ChannelStock, busEvent)
		}
	}
	return nil
}

// runPeriodicScans runs the stock and ingestion checks when due. Their
// timestamps advance even on failure so a persistently broken scan
// cannot starve the other scan or the event loop.
func (w *Worker) runPeriodicScans(ctx context.Context) {
	now := time.Now()

	if w.stockScan != nil && now.Sub(w.lastStockRun) >= w.stockInterval {
		w.lastStockRun = now
		if flagged, err := w.stockScan.Scan(ctx); err != nil {
			metrics.ScanErrors.WithLabelValues("stock").Inc()
			w.logger.Error("stock scan failed", zap.Error(err))
		} else if flagged > 0 {
			w.logger.Info("stock scan flagged items", zap.Int("count", flagged))
		}
	}

	if w.ingest != nil && now.Sub(w.lastIngestRun) >= w.ingestInterval {
		w.lastIngestRun = now
		if err := w.runIngestScan(ctx); err != nil {
			metrics.ScanErrors.WithLabelValues("ingest").Inc()
			w.logger.Error("ingestion scan failed", zap.Error(err))
		}
	}
}

func (w *Worker) runIngestScan(ctx context.Context) error {
	payloads, err := w.ingest.FetchLatest(ctx)
	if err != nil {
		return err
	}
	for i := range payloads {
		event, err := model.NewEvent(model.EventInvoiceReceived, payloads[i])
		if err != nil {
			w.logger.Error("could not encode ingested invoice", zap.Error(err))
			continue
		}
		if err := w.queue.Enqueue(ctx, event); err != nil {
			return fmt.Errorf("enqueue ingested invoice: %w", err)
		}
	}
	if len(payloads) > 0 {
		w.logger.Info("ingested invoice documents", zap.Int("count", len(payloads)))
	}
	return nil
}

// recordLoopError writes a synthetic FAILED event so operators can see
// outer-loop failures in the same queue they already watch.
func (w *Worker) recordLoopError(ctx context.Context, loopErr error) {
	event, err := model.NewEvent(model.EventAgentError, model.AgentErrorPayload{
		Error:     loopErr.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	event.Status = model.EventFailed
	if err := w.queue.Enqueue(context.WithoutCancel(ctx), event); err != nil {
		w.logger.Warn("could not record loop error event", zap.Error(err))
	}
}

func (w *Worker) nextBackoff(wait time.Duration) time.Duration {
	next := wait * 2
	if next > w.maxBackoff {
		next = w.maxBackoff
	}
	return next
}

// sleep waits for d or until cancellation; returns false on shutdown.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
