package match

import (
	"math"

	"github.com/ATR1285/Procure/pkg/model"
)

const amountEpsilon = 0.01

// POMatchPolicy selects which purchase order, if any, an invoice should
// be reconciled against. It is a named policy rather than inline logic
// because the fallback behavior is a business heuristic that may need
// replacing.
type POMatchPolicy interface {
	SelectPO(pos []model.PurchaseOrder, invoiceAmount float64) *model.PurchaseOrder
}

// AmountFirstFallbackPolicy picks the first PO whose total matches the
// invoice amount within epsilon; when none matches it falls back to the
// vendor's first PO as a weak match. The fallback is a heuristic carried
// over from operations, not a guaranteed correctness rule.
type AmountFirstFallbackPolicy struct{}

func (AmountFirstFallbackPolicy) SelectPO(pos []model.PurchaseOrder, invoiceAmount float64) *model.PurchaseOrder {
	if len(pos) == 0 {
		return nil
	}
	for i := range pos {
		if pos[i].TotalAmount != 0 && math.Abs(pos[i].TotalAmount-invoiceAmount) < amountEpsilon {
			return &pos[i]
		}
	}
	return &pos[0]
}
