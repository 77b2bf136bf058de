package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %s", cfg.Address())
	}
	if cfg.StoreID != "magasin-principal" {
		t.Fatalf("expected default store id, got %s", cfg.StoreID)
	}
	if cfg.LoyaltySilverThreshold != 500 || cfg.LoyaltyGoldThreshold != 1500 {
		t.Fatalf("unexpected loyalty thresholds: %d / %d", cfg.LoyaltySilverThreshold, cfg.LoyaltyGoldThreshold)
	}
	if cfg.LoyaltyRatePercent != 0.5 {
		t.Fatalf("expected default rate 0.5, got %f", cfg.LoyaltyRatePercent)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_STORE_ID", "annexe-thies")
	t.Setenv("LOYALTY_RATE_PERCENT", "1.25")
	t.Setenv("AUTH_SECRET", "  padded-secret  ")
	t.Setenv("STATS_TTL_SECONDS", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "9090" || cfg.StoreID != "annexe-thies" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.LoyaltyRatePercent != 1.25 {
		t.Fatalf("expected rate 1.25, got %f", cfg.LoyaltyRatePercent)
	}
	if cfg.AuthSecret != "padded-secret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.AuthSecret)
	}
	if cfg.StatsTTLSeconds != 30 {
		t.Fatalf("expected ttl fallback 30, got %d", cfg.StatsTTLSeconds)
	}
}
