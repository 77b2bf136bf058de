package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/store"
)

func TestUpdateSalePaymentRevisionGuard(t *testing.T) {
	databaseURL := os.Getenv("COMPTOIR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COMPTOIR_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	clientID := fmt.Sprintf("cli-it-%d", stamp)
	storeID := "magasin-principal"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM loyalty_history WHERE client_id = $1`, clientID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	})

	if _, err := s.CreateClient(ctx, domain.Client{
		ID:          clientID,
		FullName:    "Client Integration",
		LoyaltyTier: domain.TierBronze,
	}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		ID:          saleID,
		ClientID:    clientID,
		StoreID:     storeID,
		SellerID:    "vendeur",
		IsCredit:    true,
		TotalAmount: 10000,
		Payments:    make(domain.PaymentBreakdown),
		Status:      domain.SaleStatusPending,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.Revision != 1 {
		t.Fatalf("expected initial revision 1, got %d", sale.Revision)
	}

	first := *sale
	first.PaidAmount = 4000
	first.Payments = domain.PaymentBreakdown{domain.PayCash: 4000}
	updated, err := s.UpdateSalePayment(ctx, first, sale.Revision)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", updated.Revision)
	}

	stale := *sale
	stale.PaidAmount = 3000
	stale.Payments = domain.PaymentBreakdown{domain.PayCard: 3000}
	if _, err := s.UpdateSalePayment(ctx, stale, sale.Revision); !errors.Is(err, store.ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}

	reread, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if reread.PaidAmount != 4000 || reread.Payments[domain.PayCash] != 4000 {
		t.Fatalf("stale write landed: %+v", reread)
	}

	// Accrual must leave the client and the history entry consistent.
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	credited := *client
	credited.LoyaltyPoints = 50
	credited.TotalSpent = 10000
	if _, err := s.ApplyLoyaltyAccrual(ctx, credited, domain.LoyaltyHistoryEntry{
		ClientID:    clientID,
		PointsAdded: 50,
		Source:      "purchase",
		SaleID:      saleID,
		StoreID:     storeID,
	}); err != nil {
		t.Fatalf("apply accrual: %v", err)
	}

	history, err := s.ListLoyaltyHistory(ctx, clientID, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].PointsAdded != 50 {
		t.Fatalf("unexpected history: %+v", history)
	}
}
