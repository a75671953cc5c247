package compliance

import (
	"fmt"

	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/slots"
)

// Period is a fixed block of hours used for the per-period breakdown.
type Period struct {
	Name      string
	StartHour int // inclusive
	EndHour   int // exclusive
}

// Periods are the four blocks of the day, in display order.
var Periods = []Period{
	{Name: "Overnight (00h-06h)", StartHour: 0, EndHour: 6},
	{Name: "Morning (06h-12h)", StartHour: 6, EndHour: 12},
	{Name: "Afternoon (12h-18h)", StartHour: 12, EndHour: 18},
	{Name: "Evening (18h-00h)", StartHour: 18, EndHour: 24},
}

// PeriodStats holds the averages of one non-empty period. MeanScheduled and
// MeanDeviation cover only the ScheduledCount intervals that carry a
// scheduled value; both are zero when ScheduledCount is zero.
type PeriodStats struct {
	Period         Period
	Count          int
	ScheduledCount int
	MeanActual     float64
	MeanScheduled  float64
	MeanDeviation  float64
}

// DaySummary is the aggregate view of one report day.
type DaySummary struct {
	Count             int // intervals with an actual value
	DeviationCount    int // of those, intervals that also have a scheduled value
	CompliantCount    int
	MeanDeviation     float64 // over DeviationCount intervals
	PeakTime          string
	PeakActual        float64
	CompliancePercent float64 // CompliantCount / Count
	Periods           []PeriodStats
}

// HasDeviation reports whether any interval had both values.
func (s *DaySummary) HasDeviation() bool {
	return s != nil && s.DeviationCount > 0
}

type periodAcc struct {
	count, scheduledCount     int
	actual, scheduled, devSum float64
}

// Summarize computes the day's aggregates over intervals that have an actual
// value. It returns nil when no interval qualifies.
//
// The peak is the first interval holding the maximum actual value. An
// interval without a scheduled value has no deviation and is never
// compliant, so it lowers the compliance ratio. "24:00" counts towards the
// day totals but falls in no period.
func Summarize(intervals []models.Interval) (*DaySummary, error) {
	var (
		sum     DaySummary
		devSum  float64
		buckets = make([]periodAcc, len(Periods))
	)

	for _, iv := range intervals {
		if !iv.Actual.Valid {
			continue
		}
		actual := iv.Actual.Float64
		if !finite(actual) {
			return nil, fmt.Errorf("interval %s: %w: actual %v", iv.Time, ErrInvalidInput, actual)
		}
		hour, err := slots.Hour(iv.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		if sum.Count == 0 || actual > sum.PeakActual {
			sum.PeakActual = actual
			sum.PeakTime = iv.Time
		}
		sum.Count++

		var b *periodAcc
		for i, p := range Periods {
			if hour >= p.StartHour && hour < p.EndHour {
				b = &buckets[i]
				b.count++
				b.actual += actual
				break
			}
		}

		if !iv.Scheduled.Valid {
			continue
		}
		ok, err := IsCompliant(actual, iv.Scheduled.Float64)
		if err != nil {
			return nil, fmt.Errorf("interval %s: %w", iv.Time, err)
		}
		d, _ := Deviation(iv.Actual, iv.Scheduled)
		if ok {
			sum.CompliantCount++
		}
		sum.DeviationCount++
		devSum += d
		if b != nil {
			b.scheduledCount++
			b.scheduled += iv.Scheduled.Float64
			b.devSum += d
		}
	}

	if sum.Count == 0 {
		return nil, nil
	}

	if sum.DeviationCount > 0 {
		sum.MeanDeviation = devSum / float64(sum.DeviationCount)
	}
	sum.CompliancePercent = float64(sum.CompliantCount) / float64(sum.Count) * 100

	for i, b := range buckets {
		if b.count == 0 {
			continue
		}
		ps := PeriodStats{
			Period:         Periods[i],
			Count:          b.count,
			ScheduledCount: b.scheduledCount,
			MeanActual:     b.actual / float64(b.count),
		}
		if b.scheduledCount > 0 {
			ps.MeanScheduled = b.scheduled / float64(b.scheduledCount)
			ps.MeanDeviation = b.devSum / float64(b.scheduledCount)
		}
		sum.Periods = append(sum.Periods, ps)
	}

	return &sum, nil
}
