package scoring

// Band is a presentation bucket for a word score.
type Band string

const (
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs_improvement"
	BandPoor             Band = "poor"
)

// Thresholds are the lower bounds of the good and needs-improvement bands.
type Thresholds struct {
	Good float64
	Fair float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Good: 0.5, Fair: 0.3}
}

// Classify buckets score.
func Classify(score float64, th Thresholds) Band {
	switch {
	case score >= th.Good:
		return BandGood
	case score >= th.Fair:
		return BandNeedsImprovement
	default:
		return BandPoor
	}
}
