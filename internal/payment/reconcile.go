// Package payment keeps a sale's paid/remaining/status fields consistent as
// payments arrive. Every function here is pure: validation happens before any
// write is attempted, and persistence belongs to the caller.
package payment

import (
	"errors"
	"time"

	"comptoir/backend/internal/domain"
)

var (
	ErrInvalidAmount  = errors.New("payment amount must be positive")
	ErrExceedsBalance = errors.New("payment amount exceeds remaining balance")
	ErrInvalidMethod  = errors.New("unknown payment method")
)

type Stats struct {
	Paid      int64
	Remaining int64
	FullyPaid bool
}

// Compute derives the payment stats of a sale. The completion boundary is
// inclusive: remaining == 0 means fully paid.
func Compute(sale domain.Sale) Stats {
	remaining := sale.TotalAmount - sale.PaidAmount
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		Paid:      sale.PaidAmount,
		Remaining: remaining,
		FullyPaid: remaining <= 0,
	}
}

// Validate checks whether amount can be applied to the sale. It must pass
// before Apply is called.
func Validate(sale domain.Sale, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > Compute(sale).Remaining {
		return ErrExceedsBalance
	}
	return nil
}

// Apply folds one payment event into the sale and returns the updated copy.
// The per-method bucket and PaidAmount move together; when the new paid total
// reaches TotalAmount the sale completes and the completion date is stamped.
// The sale's revision is left untouched: bumping it is the store's job.
func Apply(sale domain.Sale, event domain.PaymentEvent) (domain.Sale, error) {
	if !event.Method.Valid() {
		return domain.Sale{}, ErrInvalidMethod
	}
	if err := Validate(sale, event.Amount); err != nil {
		return domain.Sale{}, err
	}

	updated := sale
	updated.Payments = sale.Payments.Clone()
	updated.Payments[event.Method] += event.Amount
	updated.PaidAmount += event.Amount

	if updated.PaidAmount >= updated.TotalAmount {
		updated.Status = domain.SaleStatusCompleted
		completedAt := event.Date
		if completedAt.IsZero() {
			completedAt = time.Now().UTC()
		}
		updated.CompletedAt = &completedAt
	}

	return updated, nil
}

// Consistent reports whether PaidAmount can be reconstructed as the sum of
// the per-method buckets. It is checkable independently of the incremental
// updates and holds for every sale the engine produces.
func Consistent(sale domain.Sale) bool {
	return sale.Payments.Total() == sale.PaidAmount
}

// Label maps a sale to its user-facing status label. Single source of truth:
// dashboard counts, table badges and detail views all go through here.
func Label(sale domain.Sale) string {
	if sale.Status == domain.SaleStatusCancelled {
		return domain.LabelCancelled
	}
	if sale.IsCredit {
		switch {
		case sale.Status == domain.SaleStatusCompleted || sale.PaidAmount >= sale.TotalAmount:
			return domain.LabelPaid
		case sale.PaidAmount > 0:
			return domain.LabelPartiallyPaid
		default:
			return domain.LabelAwaiting
		}
	}
	if sale.Status == domain.SaleStatusCompleted {
		return domain.LabelFinished
	}
	return domain.LabelAwaiting
}
