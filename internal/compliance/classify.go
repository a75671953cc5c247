// Package compliance decides whether actual generation stays inside the band
// tolerated around the scheduled (PDP) value, grades intervals for the heatmap
// and computes the day's summary statistics. Everything here is pure.
package compliance

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when a value reaching the classifier is not a
// finite number, or an interval label cannot be parsed.
var ErrInvalidInput = errors.New("invalid input")

// Grade is the three-level heatmap severity of an interval.
type Grade int

const (
	GradeOK Grade = iota
	GradeWarning
	GradeViolation
)

func (g Grade) String() string {
	switch g {
	case GradeOK:
		return "ok"
	case GradeWarning:
		return "warning"
	default:
		return "violation"
	}
}

// Color returns the heatmap colour name.
func (g Grade) Color() string {
	switch g {
	case GradeOK:
		return "green"
	case GradeWarning:
		return "yellow"
	default:
		return "red"
	}
}

// MarshalText encodes the grade by name.
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Deviation returns actual minus scheduled. ok is false if either value is
// absent or not a finite number.
func Deviation(actual, scheduled sql.NullFloat64) (d float64, ok bool) {
	if !actual.Valid || !scheduled.Valid {
		return 0, false
	}
	if !finite(actual.Float64) || !finite(scheduled.Float64) {
		return 0, false
	}
	return actual.Float64 - scheduled.Float64, true
}

// IsCompliant reports whether actual is inside the tolerance band for scheduled.
//
// Over-generation is tolerated up to 100 MW. Under-generation is tolerated by
// band: 10 MW up to 100 MW scheduled, 10% up to 200 MW, 5% up to 1000 MW and
// min(2%, 100 MW) above. Negative scheduled values have no band.
func IsCompliant(actual, scheduled float64) (bool, error) {
	if err := checkFinite(actual, scheduled); err != nil {
		return false, err
	}
	return within(actual-scheduled, scheduled, complianceScale), nil
}

// GradeOf grades an interval: OK when compliant, Warning when inside twice the
// compliance band (200 MW for over-generation), Violation otherwise.
func GradeOf(actual, scheduled float64) (Grade, error) {
	if err := checkFinite(actual, scheduled); err != nil {
		return GradeViolation, err
	}
	d := actual - scheduled
	if within(d, scheduled, complianceScale) {
		return GradeOK, nil
	}
	if within(d, scheduled, warningScale) {
		return GradeWarning, nil
	}
	return GradeViolation, nil
}

func within(d, scheduled, scale float64) bool {
	limit, ok := threshold(d, scheduled, scale)
	if !ok {
		return false
	}
	return math.Abs(d) <= limit
}

func checkFinite(actual, scheduled float64) error {
	if !finite(actual) {
		return fmt.Errorf("%w: actual %v", ErrInvalidInput, actual)
	}
	if !finite(scheduled) {
		return fmt.Errorf("%w: scheduled %v", ErrInvalidInput, scheduled)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
