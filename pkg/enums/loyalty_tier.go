package enums

// LoyaltyTier is derived from lifetime points and never stored.
type LoyaltyTier string

const (
	LoyaltyTierBronze LoyaltyTier = "bronze"
	LoyaltyTierSilver LoyaltyTier = "silver"
	LoyaltyTierGold   LoyaltyTier = "gold"
)

const (
	silverTierPoints = 500
	goldTierPoints   = 1000
)

// TierForPoints maps lifetime points to a tier.
func TierForPoints(points int64) LoyaltyTier {
	switch {
	case points >= goldTierPoints:
		return LoyaltyTierGold
	case points >= silverTierPoints:
		return LoyaltyTierSilver
	default:
		return LoyaltyTierBronze
	}
}

// NextTierAt returns the lifetime points needed for the next tier, or 0 at the top.
func (t LoyaltyTier) NextTierAt() int64 {
	switch t {
	case LoyaltyTierBronze:
		return silverTierPoints
	case LoyaltyTierSilver:
		return goldTierPoints
	default:
		return 0
	}
}
