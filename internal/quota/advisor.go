package quota

// Upgrade describes what the next tier up offers. Used to enrich denial
// responses only.
type Upgrade struct {
	NextTier Tier     `json:"next_tier"`
	Benefits []string `json:"benefits"`
}

var tierBenefits = map[Tier][]string{
	TierActive: {
		"100 requests per day",
		"Food plate image analysis",
		"Workout plan generation",
	},
	TierGrowth: {
		"500 requests per day",
		"Meal plan generation",
		"Higher per-minute burst limits",
		"Up to 25 ingredient search results",
	},
	TierThrive: {
		"Unlimited requests",
		"All analysis and planning features",
		"Priority support",
	},
}

// NextTierBenefits returns the upgrade path from the current tier, or nil for
// the top tier. Pure function over the static tier table.
func NextTierBenefits(current Tier) *Upgrade {
	next, ok := current.Next()
	if !ok {
		return nil
	}
	return &Upgrade{NextTier: next, Benefits: tierBenefits[next]}
}
