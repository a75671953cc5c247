package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidResponsible = errors.New("invalid responsible party")
	ErrInvalidSetpoint    = errors.New("invalid set-point")
)

// Responsible is the party that ordered a set-point change.
type Responsible string

const (
	ResponsibleONS  Responsible = "ONS"
	ResponsibleAxia Responsible = "Axia Energia"
)

// ParseResponsible accepts exactly one of the two known parties.
func ParseResponsible(s string) (Responsible, error) {
	switch Responsible(strings.TrimSpace(s)) {
	case ResponsibleONS:
		return ResponsibleONS, nil
	case ResponsibleAxia:
		return ResponsibleAxia, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResponsible, s)
}

// CoerceResponsible is used for bulk file imports, where unknown values fall back to ONS.
func CoerceResponsible(s string) Responsible {
	r, err := ParseResponsible(s)
	if err != nil {
		return ResponsibleONS
	}
	return r
}

// CSSClass returns the CSS class for styling
func (r Responsible) CSSClass() string {
	if r == ResponsibleONS {
		return "responsible-ons"
	}
	return "responsible-axia"
}

// ParseSetpoint parses operator input and rounds it to whole MW.
func ParseSetpoint(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSetpoint, s)
	}
	return d.Round(0).IntPart(), nil
}

// RoundSetpoint rounds a numeric set-point to whole MW, half away from zero.
func RoundSetpoint(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}
