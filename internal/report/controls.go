package report

import (
	"sort"

	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/slots"
)

// DefaultVisibleControls is how many set-point changes the screen list shows
// before it is expanded.
const DefaultVisibleControls = 3

// ControlList is the set-point list as displayed.
type ControlList struct {
	Events []models.ControlEvent
	Hidden int
}

// ListControls orders events for display. The screen view is latest time
// first and truncated unless all is set; the print view is chronological and
// complete.
func ListControls(events []models.ControlEvent, all, printView bool) ControlList {
	sorted := make([]models.ControlEvent, len(events))
	copy(sorted, events)

	if printView {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
		return ControlList{Events: sorted}
	}

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time > sorted[j].Time })
	if all || len(sorted) <= DefaultVisibleControls {
		return ControlList{Events: sorted}
	}
	return ControlList{
		Events: sorted[:DefaultVisibleControls],
		Hidden: len(sorted) - DefaultVisibleControls,
	}
}

// TimelineEvent places one set-point change on a 00:00-24:00 axis.
type TimelineEvent struct {
	Event   models.ControlEvent
	Percent float64 // position along the day, 0..100
	Offset  int     // 0, 1 or 2; raised for labels that would collide
}

// nearPercent is the distance under which consecutive labels are staggered.
const nearPercent = 5

// Timeline lays events out chronologically. An event closer than 5% of the day
// to its predecessor moves to the next of three label rows; otherwise it goes
// back to row 0. Events with malformed times are skipped.
func Timeline(events []models.ControlEvent) []TimelineEvent {
	sorted := make([]models.ControlEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var (
		out    []TimelineEvent
		last   = -10.0
		offset = 0
	)
	for _, ev := range sorted {
		m, err := slots.Minutes(ev.Time)
		if err != nil {
			continue
		}
		pct := float64(m) / slots.DayMinutes * 100
		if pct-last < nearPercent {
			offset = (offset + 1) % 3
		} else {
			offset = 0
		}
		out = append(out, TimelineEvent{Event: ev, Percent: pct, Offset: offset})
		last = pct
	}
	return out
}

// SortObservations orders notes by interval time, keeping creation order for ties.
func SortObservations(obs []models.Observation) []models.Observation {
	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return sorted
}
