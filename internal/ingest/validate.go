package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/slots"
)

const (
	FlagTimeMalformed     = "time_malformed"
	FlagTimeDuplicate     = "time_duplicate"
	FlagScheduledNegative = "scheduled_negative"
	FlagActualNegative    = "actual_negative"
)

// RowIssue lists the flags raised for one imported row.
type RowIssue struct {
	Index int      `json:"index"`
	Time  string   `json:"time"`
	Flags []string `json:"flags"`
}

// Blocking reports whether the row cannot be stored as-is.
func (i RowIssue) Blocking() bool {
	for _, f := range i.Flags {
		if f == FlagTimeMalformed || f == FlagTimeDuplicate {
			return true
		}
	}
	return false
}

func ValidateInterval(iv *models.Interval) []string {
	var flags []string

	if _, _, err := slots.Parse(iv.Time); err != nil {
		flags = append(flags, FlagTimeMalformed)
	}
	if iv.Scheduled.Valid && iv.Scheduled.Float64 < 0 {
		flags = append(flags, FlagScheduledNegative)
	}
	if iv.Actual.Valid && iv.Actual.Float64 < 0 {
		flags = append(flags, FlagActualNegative)
	}

	return flags
}

// ValidateIntervals flags every row of an import, including labels that occur
// more than once.
func ValidateIntervals(rows []models.Interval) []RowIssue {
	var issues []RowIssue
	seen := make(map[string]bool, len(rows))
	for i := range rows {
		flags := ValidateInterval(&rows[i])
		if seen[rows[i].Time] {
			flags = append(flags, FlagTimeDuplicate)
		}
		seen[rows[i].Time] = true
		if len(flags) > 0 {
			issues = append(issues, RowIssue{Index: i, Time: rows[i].Time, Flags: flags})
		}
	}
	return issues
}

// BlockingError summarises blocking issues, or returns nil when rows can be saved.
func BlockingError(issues []RowIssue) error {
	var msgs []string
	for _, is := range issues {
		if is.Blocking() {
			msgs = append(msgs, fmt.Sprintf("row %d (%q): %s", is.Index+1, is.Time, strings.Join(is.Flags, ",")))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedFile, strings.Join(msgs, "; "))
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
