// Package loyalty converts qualifying sale amounts into points and tier
// status. Thresholds and the accrual rate are injected, never ambient, so the
// computation stays testable in isolation.
package loyalty

import (
	"fmt"
	"math"

	"comptoir/backend/internal/domain"
)

type Config struct {
	SilverThreshold int64
	GoldThreshold   int64
	RatePercent     float64
}

func (c Config) Validate() error {
	if c.SilverThreshold < 0 || c.GoldThreshold < 0 {
		return fmt.Errorf("loyalty thresholds must be non-negative")
	}
	if c.GoldThreshold <= c.SilverThreshold {
		return fmt.Errorf("gold threshold must be above silver threshold")
	}
	if c.RatePercent < 0 {
		return fmt.Errorf("loyalty rate must be non-negative")
	}
	return nil
}

// Points computes floor(amount * rate / 100). Non-positive amounts earn
// nothing.
func Points(amount int64, ratePercent float64) int64 {
	if amount <= 0 {
		return 0
	}
	return int64(math.Floor(float64(amount) * ratePercent / 100))
}

// TierFor classifies a point balance. Gold is checked before silver, so a
// balance clearing both thresholds is gold, never silver.
func TierFor(points int64, cfg Config) domain.LoyaltyTier {
	switch {
	case points >= cfg.GoldThreshold:
		return domain.TierGold
	case points >= cfg.SilverThreshold:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

// Accrual is the computed outcome of one qualifying sale. PointsAdded == 0
// means the accrual is a no-op and no client mutation or history entry should
// be written.
type Accrual struct {
	PointsAdded   int64
	NewPoints     int64
	NewTier       domain.LoyaltyTier
	NewTotalSpent int64
}

// Accrue computes the point delta and tier transition for a client after a
// sale of the given amount. Pure: the caller persists the result.
func Accrue(client domain.Client, amount int64, cfg Config) Accrual {
	added := Points(amount, cfg.RatePercent)
	if added <= 0 {
		return Accrual{
			NewPoints:     client.LoyaltyPoints,
			NewTier:       TierFor(client.LoyaltyPoints, cfg),
			NewTotalSpent: client.TotalSpent,
		}
	}

	newPoints := client.LoyaltyPoints + added
	return Accrual{
		PointsAdded:   added,
		NewPoints:     newPoints,
		NewTier:       TierFor(newPoints, cfg),
		NewTotalSpent: client.TotalSpent + amount,
	}
}
