package loyalty

import (
	"testing"

	"comptoir/backend/internal/domain"
)

func testConfig() Config {
	return Config{SilverThreshold: 500, GoldThreshold: 1500, RatePercent: 0.5}
}

func TestPointsFloorsFractions(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{3000, 15},
		{10000, 50},
		{199, 0},
		{200, 1},
		{399, 1},
		{50, 0},
		{0, 0},
		{-500, 0},
	}
	for _, tc := range cases {
		if got := Points(tc.amount, 0.5); got != tc.want {
			t.Fatalf("Points(%d): expected %d, got %d", tc.amount, tc.want, got)
		}
	}
}

func TestTierForGoldBeforeSilver(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		points int64
		want   domain.LoyaltyTier
	}{
		{0, domain.TierBronze},
		{499, domain.TierBronze},
		{500, domain.TierSilver},
		{1499, domain.TierSilver},
		{1500, domain.TierGold},
		{5000, domain.TierGold},
	}
	for _, tc := range cases {
		if got := TierFor(tc.points, cfg); got != tc.want {
			t.Fatalf("TierFor(%d): expected %s, got %s", tc.points, tc.want, got)
		}
	}
}

func TestAccrueCrossesGoldThreshold(t *testing.T) {
	client := domain.Client{
		ID:            "cli-1",
		LoyaltyPoints: 1490,
		LoyaltyTier:   domain.TierSilver,
		TotalSpent:    298000,
	}

	accrual := Accrue(client, 3000, testConfig())
	if accrual.PointsAdded != 15 {
		t.Fatalf("expected 15 points added, got %d", accrual.PointsAdded)
	}
	if accrual.NewPoints != 1505 {
		t.Fatalf("expected new balance 1505, got %d", accrual.NewPoints)
	}
	if accrual.NewTier != domain.TierGold {
		t.Fatalf("expected tier %s, got %s", domain.TierGold, accrual.NewTier)
	}
	if accrual.NewTotalSpent != 301000 {
		t.Fatalf("expected total spent 301000, got %d", accrual.NewTotalSpent)
	}
}

func TestAccrueZeroPointsIsNoOp(t *testing.T) {
	client := domain.Client{ID: "cli-1", LoyaltyPoints: 120, TotalSpent: 24000}

	accrual := Accrue(client, 50, testConfig())
	if accrual.PointsAdded != 0 {
		t.Fatalf("expected zero points, got %d", accrual.PointsAdded)
	}
	if accrual.NewPoints != 120 || accrual.NewTotalSpent != 24000 {
		t.Fatalf("no-op accrual must not change balances: %+v", accrual)
	}
	if accrual.NewTier != domain.TierBronze {
		t.Fatalf("expected tier %s, got %s", domain.TierBronze, accrual.NewTier)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	bad := []Config{
		{SilverThreshold: -1, GoldThreshold: 1500, RatePercent: 0.5},
		{SilverThreshold: 500, GoldThreshold: 500, RatePercent: 0.5},
		{SilverThreshold: 500, GoldThreshold: 400, RatePercent: 0.5},
		{SilverThreshold: 500, GoldThreshold: 1500, RatePercent: -0.1},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
