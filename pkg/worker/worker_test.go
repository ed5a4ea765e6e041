package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/model"
)

type fakeQueue struct {
	pending  []model.Event
	claimErr error

	enqueued  []*model.Event
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (q *fakeQueue) Enqueue(_ context.Context, event *model.Event) error {
	q.enqueued = append(q.enqueued, event)
	return nil
}

func (q *fakeQueue) ClaimPending(context.Context) ([]model.Event, error) {
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	claimed := q.pending
	q.pending = nil
	for i := range claimed {
		claimed[i].Status = model.EventProcessing
	}
	return claimed, nil
}

func (q *fakeQueue) Complete(_ context.Context, id uuid.UUID) error {
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, id uuid.UUID) error {
	q.failed = append(q.failed, id)
	return nil
}

type fakeStatus struct {
	beats int
	err   error
}

func (s *fakeStatus) Heartbeat(context.Context, string, string) error {
	s.beats++
	return s.err
}

type fakeEngine struct {
	payloads []*model.InvoicePayload
	err      error
}

func (e *fakeEngine) ProcessInvoiceMatch(_ context.Context, payload *model.InvoicePayload) error {
	e.payloads = append(e.payloads, payload)
	return e.err
}

type fakeOutbox struct {
	created []*model.NotificationEvent
}

func (o *fakeOutbox) Create(_ context.Context, event *model.NotificationEvent) error {
	o.created = append(o.created, event)
	return nil
}

type fakeRefresher struct {
	refreshes int
}

func (r *fakeRefresher) Refresh(context.Context) {
	r.refreshes++
}

func testConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		BusyDelay:      time.Millisecond,
		StockInterval:  time.Hour,
		IngestInterval: time.Hour,
	}
}

func newTestWorker(queue *fakeQueue, engine *fakeEngine, outbox *fakeOutbox) (*Worker, *fakeStatus) {
	status := &fakeStatus{}
	w := New(queue, status, engine, outbox, nil, nil, nil, testConfig(), zap.NewNop())
	return w, status
}

func mustEvent(t *testing.T, eventType model.EventType, payload interface{}) model.Event {
	t.Helper()
	event, err := model.NewEvent(eventType, payload)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return *event
}

func TestCycleRefreshesERPBackend(t *testing.T) {
	w, _ := newTestWorker(&fakeQueue{}, &fakeEngine{}, &fakeOutbox{})
	refresher := &fakeRefresher{}
	w.SetBackendRefresher(refresher)

	for i := 0; i < 3; i++ {
		if _, err := w.cycle(context.Background()); err != nil {
			t.Fatalf("cycle failed: %v", err)
		}
	}
	if refresher.refreshes != 3 {
		t.Fatalf("expected a backend refresh per cycle, got %d", refresher.refreshes)
	}
}

func TestCycleDispatchesInvoiceEvent(t *testing.T) {
	queue := &fakeQueue{pending: []model.Event{
		mustEvent(t, model.EventInvoiceReceived, model.InvoicePayload{
			InvoiceNumber: "INV-1", VendorName: "acme", InvoiceAmount: 12.5,
		}),
	}}
	engine := &fakeEngine{}
	w, status := newTestWorker(queue, engine, &fakeOutbox{})

	claimed, err := w.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 claimed event, got %d", claimed)
	}
	if status.beats != 1 {
		t.Fatalf("expected one heartbeat, got %d", status.beats)
	}
	if len(engine.payloads) != 1 || engine.payloads[0].InvoiceNumber != "INV-1" {
		t.Fatalf("engine did not receive the payload: %+v", engine.payloads)
	}
	if len(queue.completed) != 1 || len(queue.failed) != 0 {
		t.Fatalf("expected event completed, got completed=%d failed=%d", len(queue.completed), len(queue.failed))
	}
}

func TestMalformedPayloadFailsEvent(t *testing.T) {
	event := mustEvent(t, model.EventInvoiceReceived, model.InvoicePayload{
		InvoiceNumber: "INV-2", VendorName: "acme",
	})
	delete(event.Payload, "vendorName")

	queue := &fakeQueue{pending: []model.Event{event}}
	engine := &fakeEngine{}
	w, _ := newTestWorker(queue, engine, &fakeOutbox{})

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("a bad payload must not fail the cycle: %v", err)
	}
	if len(engine.payloads) != 0 {
		t.Fatal("engine must not see a malformed payload")
	}
	if len(queue.failed) != 1 {
		t.Fatalf("expected the event marked failed, got %d", len(queue.failed))
	}
}

func TestEventFailureDoesNotStopBatch(t *testing.T) {
	first := mustEvent(t, model.EventInvoiceReceived, model.InvoicePayload{
		InvoiceNumber: "INV-3", VendorName: "acme",
	})
	second := mustEvent(t, model.EventInvoiceReceived, model.InvoicePayload{
		InvoiceNumber: "INV-4", VendorName: "globex",
	})

	queue := &fakeQueue{pending: []model.Event{first, second}}
	engine := &fakeEngine{err: errors.New("storage down")}
	w, _ := newTestWorker(queue, engine, &fakeOutbox{})

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(engine.payloads) != 2 {
		t.Fatalf("expected both events dispatched, got %d", len(engine.payloads))
	}
	if len(queue.failed) != 2 {
		t.Fatalf("expected both events failed, got %d", len(queue.failed))
	}
}

func TestStockAlertWritesNotification(t *testing.T) {
	queue := &fakeQueue{pending: []model.Event{
		mustEvent(t, model.EventStockAlert, model.StockAlertPayload{
			ItemID: 9, ItemName: "Widget", CurrentStock: 2, Threshold: 10,
		}),
	}}
	outbox := &fakeOutbox{}
	w, _ := newTestWorker(queue, &fakeEngine{}, outbox)

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(outbox.created) != 1 {
		t.Fatalf("expected one notification row, got %d", len(outbox.created))
	}
	notification := outbox.created[0]
	if notification.EventType != "stock_alert" {
		t.Fatalf("unexpected notification type %q", notification.EventType)
	}
	if len(notification.Channels) != 2 {
		t.Fatalf("expected email and sms channels, got %v", notification.Channels)
	}
	if len(queue.completed) != 1 {
		t.Fatalf("expected the event completed, got %d", len(queue.completed))
	}
}

func TestUnknownEventTypeFails(t *testing.T) {
	queue := &fakeQueue{pending: []model.Event{
		mustEvent(t, model.EventType("MYSTERY"), map[string]string{"k": "v"}),
	}}
	w, _ := newTestWorker(queue, &fakeEngine{}, &fakeOutbox{})

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(queue.failed) != 1 {
		t.Fatalf("expected unknown event marked failed, got %d", len(queue.failed))
	}
}

func TestAgentErrorEventsJustComplete(t *testing.T) {
	queue := &fakeQueue{pending: []model.Event{
		mustEvent(t, model.EventAgentError, model.AgentErrorPayload{Error: "earlier failure"}),
	}}
	w, _ := newTestWorker(queue, &fakeEngine{}, &fakeOutbox{})

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(queue.completed) != 1 || len(queue.failed) != 0 {
		t.Fatalf("expected bookkeeping event completed, got completed=%d failed=%d", len(queue.completed), len(queue.failed))
	}
}

func TestHeartbeatFailureIsNotFatal(t *testing.T) {
	queue := &fakeQueue{}
	status := &fakeStatus{err: errors.New("status table missing")}
	w := New(queue, status, &fakeEngine{}, &fakeOutbox{}, nil, nil, nil, testConfig(), zap.NewNop())

	if _, err := w.cycle(context.Background()); err != nil {
		t.Fatalf("a heartbeat failure must not fail the cycle: %v", err)
	}
}

func TestRunRecordsLoopErrorAndKeepsGoing(t *testing.T) {
	queue := &fakeQueue{claimErr: errors.New("database down")}
	w, _ := newTestWorker(queue, &fakeEngine{}, &fakeOutbox{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if len(queue.enqueued) == 0 {
		t.Fatal("expected a synthetic error event in the queue")
	}
	recorded := queue.enqueued[0]
	if recorded.EventType != model.EventAgentError {
		t.Fatalf("expected AGENT_ERROR, got %s", recorded.EventType)
	}
	if recorded.Status != model.EventFailed {
		t.Fatalf("synthetic error events must be born FAILED, got %s", recorded.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	queue := &fakeQueue{}
	w, _ := newTestWorker(queue, &fakeEngine{}, &fakeOutbox{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	w, _ := newTestWorker(&fakeQueue{}, &fakeEngine{}, &fakeOutbox{})

	wait := w.initialBackoff
	wait = w.nextBackoff(wait)
	if wait != 2*time.Millisecond {
		t.Fatalf("expected backoff to double to 2ms, got %v", wait)
	}
	wait = w.nextBackoff(w.nextBackoff(wait))
	if wait != w.maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", w.maxBackoff, wait)
	}
}
