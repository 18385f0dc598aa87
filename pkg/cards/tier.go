package cards

// Tier is the expressiveness level a target platform supports. Lower tiers
// force feature downgrades.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierAdvanced Tier = "advanced"
	TierPremium  Tier = "premium"
)

// rank orders tiers for clamping.
func (t Tier) rank() int {
	switch t {
	case TierPremium:
		return 2
	case TierAdvanced:
		return 1
	default:
		return 0
	}
}

// Clamp resolves a requested tier against a renderer's target: the result is
// min(requested, target).
func Clamp(requested, target Tier) Tier {
	if requested.rank() > target.rank() {
		return target
	}
	return requested
}
