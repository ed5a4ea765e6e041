package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ATR1285/Procure/pkg/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
		WithoutReturning:     true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return db, mock
}

func eventColumns() []string {
	return []string{"id", "event_type", "payload", "status", "created_at", "processed_at"}
}

func TestClaimPendingFlipsStatusInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	eventID := uuid.New()
	rows := sqlmock.NewRows(eventColumns()).
		AddRow(eventID, string(model.EventInvoiceReceived), []byte(`{"invoiceNumber":"INV-1","vendorName":"acme"}`), string(model.EventPending), time.Now(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE status = \$1 ORDER BY created_at ASC FOR UPDATE SKIP LOCKED`).
		WithArgs(string(model.EventPending)).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "events" SET "status"=\$1 WHERE id IN \(\$2\)`).
		WithArgs(string(model.EventProcessing), eventID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.ClaimPending(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected one claimed event, got %d", len(claimed))
	}
	if claimed[0].Status != model.EventProcessing {
		t.Fatalf("claimed event should be PROCESSING, got %s", claimed[0].Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClaimPendingEmptyQueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE status = \$1 ORDER BY created_at ASC FOR UPDATE SKIP LOCKED`).
		WithArgs(string(model.EventPending)).
		WillReturnRows(sqlmock.NewRows(eventColumns()))
	mock.ExpectCommit()

	claimed, err := repo.ClaimPending(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected no events, got %d", len(claimed))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompleteGuardsTerminalStatuses(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)
	eventID := uuid.New()

	// Already-terminal rows match zero rows; the call still succeeds.
	mock.ExpectExec(`UPDATE "events" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Complete(context.Background(), eventID); err != nil {
		t.Fatalf("complete must be idempotent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFailMarksEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)
	eventID := uuid.New()

	mock.ExpectExec(`UPDATE "events" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Fail(context.Background(), eventID); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
