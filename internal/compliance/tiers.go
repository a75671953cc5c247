package compliance

import "math"

// overGeneration is the flat tolerance for actual above scheduled.
const overGeneration = 100

// Scales applied to the tier table. Warning bands are exactly twice the
// compliance bands.
const (
	complianceScale = 1
	warningScale    = 2
)

// tier is one band of the under-generation rule, selected by the scheduled value.
type tier struct {
	lower, upper   float64
	lowerInclusive bool
	flat           float64 // absolute MW tolerance, used when fraction is zero
	fraction       float64 // tolerance as a fraction of scheduled
	cap            float64 // upper limit on the fractional tolerance, zero for none
}

// tiers is shared by IsCompliant and GradeOf. Boundaries are (lower, upper],
// except the first band which also includes zero.
var tiers = []tier{
	{lower: 0, upper: 100, lowerInclusive: true, flat: 10},
	{lower: 100, upper: 200, fraction: 0.10},
	{lower: 200, upper: 1000, fraction: 0.05},
	{lower: 1000, upper: math.Inf(1), fraction: 0.02, cap: 100},
}

func (t tier) contains(scheduled float64) bool {
	if t.lowerInclusive {
		if scheduled < t.lower {
			return false
		}
	} else if scheduled <= t.lower {
		return false
	}
	return scheduled <= t.upper
}

func (t tier) bound(scheduled, scale float64) float64 {
	if t.fraction == 0 {
		return t.flat * scale
	}
	b := scheduled * t.fraction * scale
	if t.cap > 0 {
		return math.Min(b, t.cap*scale)
	}
	return b
}

// threshold returns the tolerated absolute deviation for a signed deviation d
// against scheduled, at the given scale. ok is false when no band applies
// (negative scheduled with under-generation).
func threshold(d, scheduled, scale float64) (limit float64, ok bool) {
	if d > 0 {
		return overGeneration * scale, true
	}
	for _, t := range tiers {
		if t.contains(scheduled) {
			return t.bound(scheduled, scale), true
		}
	}
	return 0, false
}
