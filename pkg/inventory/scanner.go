// Package inventory implements the periodic stock-level scan.
package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/model"
)

// Store is the inventory persistence the scanner needs.
type Store interface {
	ListBelowThreshold(ctx context.Context) ([]model.InventoryItem, error)
	AlertedSince(ctx context.Context, itemID uint, since time.Time) (bool, error)
	LogAlert(ctx context.Context, log *model.AlertLog) error
	TouchLastChecked(ctx context.Context, itemID uint) error
}

// Enqueuer accepts new queue events.
type Enqueuer interface {
	Enqueue(ctx context.Context, event *model.Event) error
}

// Scanner flags low-stock items as STOCK_ALERT events. Alerts are
// deduplicated per item within the cooldown window so a slow restock
// does not spam the notification senders.
type Scanner struct {
	store    Store
	queue    Enqueuer
	cooldown time.Duration
	logger   *zap.Logger
}

func NewScanner(store Store, queue Enqueuer, cooldown time.Duration, logger *zap.Logger) *Scanner {
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}
	return &Scanner{
		store:    store,
		queue:    queue,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Scan returns the number of items newly flagged this pass.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	items, err := s.store.ListBelowThreshold(ctx)
	if err != nil {
		return 0, fmt.Errorf("list low stock items: %w", err)
	}

	flagged := 0
	for i := range items {
		item := &items[i]
		if err := s.store.TouchLastChecked(ctx, item.ID); err != nil {
			s.logger.Warn("could not update last checked", zap.Uint("item_id", item.ID), zap.Error(err))
		}

		alerted, err := s.store.AlertedSince(ctx, item.ID, time.Now().Add(-s.cooldown))
		if err != nil {
			return flagged, fmt.Errorf("check alert history for item %d: %w", item.ID, err)
		}
		if alerted {
			continue
		}

		event, err := model.NewEvent(model.EventStockAlert, model.StockAlertPayload{
			ItemID:          item.ID,
			ItemName:        item.Name,
			CurrentStock:    item.Quantity,
			Threshold:       item.ReorderThreshold,
			ReorderQuantity: item.ReorderQuantity,
			SKU:             item.SKU,
			UnitPrice:       item.UnitPrice,
		})
		if err != nil {
			return flagged, err
		}
		if err := s.queue.Enqueue(ctx, event); err != nil {
			return flagged, fmt.Errorf("enqueue stock alert for item %d: %w", item.ID, err)
		}

		if err := s.store.LogAlert(ctx, &model.AlertLog{
			ItemID:    item.ID,
			AlertType: "low_stock",
			Message:   fmt.Sprintf("%s at %d (threshold %d)", item.Name, item.Quantity, item.ReorderThreshold),
		}); err != nil {
			s.logger.Warn("could not log alert", zap.Uint("item_id", item.ID), zap.Error(err))
		}

		flagged++
		s.logger.Info("low stock flagged",
			zap.Uint("item_id", item.ID),
			zap.String("item", item.Name),
			zap.Int("quantity", item.Quantity),
			zap.Int("threshold", item.ReorderThreshold),
		)
	}
	return flagged, nil
}
