// Package slots handles the HH:MM labels that identify half-hour intervals of a
// report day. Labels run from 00:00 to 24:00 and are zero-padded so they sort
// lexically.
package slots

import (
	"errors"
	"fmt"
)

// ErrInvalidLabel is returned for labels that are not HH:MM within 00:00..24:00.
var ErrInvalidLabel = errors.New("invalid time label")

const (
	// Step is the interval length in minutes.
	Step = 30
	// DayMinutes is the label value of "24:00".
	DayMinutes = 24 * 60
	// PerDay is the number of intervals in the 00:30..24:00 template.
	PerDay = DayMinutes / Step
)

// Parse splits a label into hour and minute. "24:00" is the only label with
// hour 24.
func Parse(label string) (hour, minute int, err error) {
	if len(label) != 5 || label[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if label[i] < '0' || label[i] > '9' {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
	}
	hour = int(label[0]-'0')*10 + int(label[1]-'0')
	minute = int(label[3]-'0')*10 + int(label[4]-'0')
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return hour, minute, nil
}

// Hour returns the hour component of a label.
func Hour(label string) (int, error) {
	h, _, err := Parse(label)
	return h, err
}

// Minutes returns the label as minutes since midnight.
func Minutes(label string) (int, error) {
	h, m, err := Parse(label)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// Format renders minutes since midnight as a label. Values past the end of the
// day collapse to "24:00".
func Format(minutes int) string {
	if minutes >= DayMinutes {
		return "24:00"
	}
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Shift moves a label forward by one interval. Anything that would roll into the
// next day becomes "24:00".
func Shift(label string) (string, error) {
	m, err := Minutes(label)
	if err != nil {
		return "", err
	}
	return Format(m + Step), nil
}

// DayTemplate returns the labels of a blank report day: 00:30 through 24:00.
func DayTemplate() []string {
	labels := make([]string, 0, PerDay)
	for m := Step; m <= DayMinutes; m += Step {
		labels = append(labels, Format(m))
	}
	return labels
}
