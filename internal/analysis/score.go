package analysis

import "math"

// The composition center. Artworks balanced around this point score highest.
const (
	centerX = 0.5
	centerY = 0.5
)

// baseFloor is the lowest base score any artwork can receive, however far its
// composition center drifts.
const baseFloor = 0.1

// Verdict thresholds, evaluated high to low with the first match winning.
// The comparisons are strict: a score of exactly 0.7 is "good", not
// "excellent".
const (
	thresholdExcellent = 0.7
	thresholdGood      = 0.5
	thresholdAdjust    = 0.3
)

// Verdict texts attached to successful outcomes.
const (
	VerdictExcellent = "excellently balanced composition"
	VerdictGood      = "good composition with minor deviations"
	VerdictAdjust    = "composition requires adjustment"
	VerdictExpert    = "non-standard composition, requires expert review"
)

// BaseScore computes the pre-noise confidence score for an artwork whose
// composition center sits at (x, y). The score falls off linearly with
// Euclidean distance from the center point: exactly centered yields 1.0, and
// for in-range inputs the far corners yield 1−√0.5 ≈ 0.2929. The floor only
// binds for out-of-range coordinates.
func BaseScore(x, y float64) float64 {
	d := math.Hypot(x-centerX, y-centerY)
	return math.Max(baseFloor, 1-d)
}

// Verdict maps a confidence score to its verdict text. The score is taken as
// is — noise can push it outside [0,1], and the buckets are open at the top
// on purpose so such values still land in the highest bucket.
func Verdict(score float64) string {
	switch {
	case score > thresholdExcellent:
		return VerdictExcellent
	case score > thresholdGood:
		return VerdictGood
	case score > thresholdAdjust:
		return VerdictAdjust
	default:
		return VerdictExpert
	}
}
