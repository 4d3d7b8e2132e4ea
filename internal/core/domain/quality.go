package domain

// Quality scores range over [MinQualityScore, MaxQualityScore].
const (
	MinQualityScore = 0.0
	MaxQualityScore = 5.0

	// qualityPenaltyPerPoint is the multiplier lost per point below MaxQualityScore.
	qualityPenaltyPerPoint = 0.04
)

// QualityMultiplier maps an OCR quality score to a similarity multiplier.
//
// A missing score is neutral (1.0). Known scores are clamped to [0, 5] and
// map linearly onto [0.8, 1.0], so no multiplier exceeds the neutral
// ceiling and a low base similarity can lose at most a fifth of its value.
func QualityMultiplier(score *float64) float64 {
	if score == nil {
		return 1.0
	}
	q := *score
	if q < MinQualityScore {
		q = MinQualityScore
	}
	if q > MaxQualityScore {
		q = MaxQualityScore
	}
	return 1.0 - qualityPenaltyPerPoint*(MaxQualityScore-q)
}
