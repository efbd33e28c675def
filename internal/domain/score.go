package domain

// StarsForScore maps a round score onto the 0-3 star tiers. Boundaries are
// inclusive on the lower bound of each tier: 90% earns the third star, 60%
// the second, 30% the first.
func StarsForScore(score, total int) int {
	if total <= 0 {
		return 0
	}
	percentage := 100 * score / total
	switch {
	case percentage >= 90:
		return 3
	case percentage >= 60:
		return 2
	case percentage >= 30:
		return 1
	default:
		return 0
	}
}
