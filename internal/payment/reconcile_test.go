package payment

import (
	"errors"
	"testing"

	"comptoir/backend/internal/domain"
)

func creditSale(total int64) domain.Sale {
	return domain.Sale{
		ID:          "sale-test",
		ClientID:    "cli-test",
		StoreID:     "magasin-principal",
		IsCredit:    true,
		TotalAmount: total,
		Payments:    make(domain.PaymentBreakdown),
		Status:      domain.SaleStatusPending,
	}
}

func TestComputeRemainingNeverNegative(t *testing.T) {
	sale := creditSale(10000)
	sale.PaidAmount = 12000

	stats := Compute(sale)
	if stats.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", stats.Remaining)
	}
	if !stats.FullyPaid {
		t.Fatalf("expected fully paid")
	}
}

func TestApplyPartialThenFinalPayment(t *testing.T) {
	sale := creditSale(10000)

	sale, err := Apply(sale, domain.PaymentEvent{Amount: 4000, Method: domain.PayCash})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if sale.PaidAmount != 4000 {
		t.Fatalf("expected paid 4000, got %d", sale.PaidAmount)
	}
	if sale.Status != domain.SaleStatusPending {
		t.Fatalf("expected sale still pending, got %s", sale.Status)
	}
	if got := Compute(sale).Remaining; got != 6000 {
		t.Fatalf("expected remaining 6000, got %d", got)
	}
	if Label(sale) != domain.LabelPartiallyPaid {
		t.Fatalf("expected label %q, got %q", domain.LabelPartiallyPaid, Label(sale))
	}

	sale, err = Apply(sale, domain.PaymentEvent{Amount: 6000, Method: domain.PayOrangeMoney})
	if err != nil {
		t.Fatalf("final payment failed: %v", err)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected sale completed, got %s", sale.Status)
	}
	if sale.CompletedAt == nil {
		t.Fatalf("expected completion date to be stamped")
	}
	if !Consistent(sale) {
		t.Fatalf("breakdown total %d does not match paid %d", sale.Payments.Total(), sale.PaidAmount)
	}
	if sale.Payments[domain.PayCash] != 4000 || sale.Payments[domain.PayOrangeMoney] != 6000 {
		t.Fatalf("unexpected breakdown: %v", sale.Payments)
	}
	if Label(sale) != domain.LabelPaid {
		t.Fatalf("expected label %q, got %q", domain.LabelPaid, Label(sale))
	}
}

func TestApplyRejectsOverpayment(t *testing.T) {
	sale := creditSale(10000)
	sale, err := Apply(sale, domain.PaymentEvent{Amount: 4000, Method: domain.PayCash})
	if err != nil {
		t.Fatalf("setup payment failed: %v", err)
	}

	_, err = Apply(sale, domain.PaymentEvent{Amount: 6001, Method: domain.PayCash})
	if !errors.Is(err, ErrExceedsBalance) {
		t.Fatalf("expected ErrExceedsBalance, got %v", err)
	}
	// The rejected payment must not have touched the sale.
	if sale.PaidAmount != 4000 || sale.Payments.Total() != 4000 {
		t.Fatalf("sale mutated by rejected payment: paid=%d breakdown=%v", sale.PaidAmount, sale.Payments)
	}
}

func TestApplyRejectsNonPositiveAmounts(t *testing.T) {
	sale := creditSale(5000)
	for _, amount := range []int64{0, -1, -5000} {
		if _, err := Apply(sale, domain.PaymentEvent{Amount: amount, Method: domain.PayCash}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestApplyRejectsUnknownMethod(t *testing.T) {
	sale := creditSale(5000)
	if _, err := Apply(sale, domain.PaymentEvent{Amount: 1000, Method: "bitcoin"}); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestApplyExactBalanceCompletes(t *testing.T) {
	sale := creditSale(5000)
	sale, err := Apply(sale, domain.PaymentEvent{Amount: 5000, Method: domain.PayMobileMoney})
	if err != nil {
		t.Fatalf("exact payment failed: %v", err)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("paying the exact balance must complete the sale, got %s", sale.Status)
	}
	if got := Compute(sale).Remaining; got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
}

func TestLabelDerivation(t *testing.T) {
	cases := []struct {
		name string
		sale domain.Sale
		want string
	}{
		{
			name: "cancelled always wins",
			sale: domain.Sale{IsCredit: true, TotalAmount: 1000, PaidAmount: 500, Status: domain.SaleStatusCancelled},
			want: domain.LabelCancelled,
		},
		{
			name: "credit unpaid",
			sale: domain.Sale{IsCredit: true, TotalAmount: 1000, Status: domain.SaleStatusPending},
			want: domain.LabelAwaiting,
		},
		{
			name: "credit partial",
			sale: domain.Sale{IsCredit: true, TotalAmount: 1000, PaidAmount: 400, Status: domain.SaleStatusPending},
			want: domain.LabelPartiallyPaid,
		},
		{
			name: "credit settled",
			sale: domain.Sale{IsCredit: true, TotalAmount: 1000, PaidAmount: 1000, Status: domain.SaleStatusCompleted},
			want: domain.LabelPaid,
		},
		{
			name: "counter completed",
			sale: domain.Sale{TotalAmount: 1000, PaidAmount: 1000, Status: domain.SaleStatusCompleted},
			want: domain.LabelFinished,
		},
		{
			name: "counter pending",
			sale: domain.Sale{TotalAmount: 1000, Status: domain.SaleStatusPending},
			want: domain.LabelAwaiting,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Label(tc.sale); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
