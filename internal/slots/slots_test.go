package slots

import (
	"errors"
	"sort"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		label    string
		wantHour int
		wantMin  int
		wantErr  bool
	}{
		{"00:00", 0, 0, false},
		{"00:30", 0, 30, false},
		{"12:00", 12, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 24, 0, false},
		{"24:30", 0, 0, true},
		{"25:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"1:00", 0, 0, true},
		{"12-00", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
		{"12:00:00", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := Parse(tt.label)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalidLabel", tt.label, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.label, err)
			continue
		}
		if h != tt.wantHour || m != tt.wantMin {
			t.Errorf("Parse(%q) = %d, %d, want %d, %d", tt.label, h, m, tt.wantHour, tt.wantMin)
		}
	}
}

func TestShift(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"00:00", "00:30"},
		{"00:30", "01:00"},
		{"11:30", "12:00"},
		{"23:00", "23:30"},
		{"23:30", "24:00"},
		{"23:45", "24:00"},
		{"24:00", "24:00"},
	}

	for _, tt := range tests {
		got, err := Shift(tt.in)
		if err != nil {
			t.Fatalf("Shift(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Shift(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := Shift("bad"); err == nil {
		t.Error("Shift(bad) should fail")
	}
}

func TestDayTemplate(t *testing.T) {
	labels := DayTemplate()
	if len(labels) != 48 {
		t.Fatalf("len = %d, want 48", len(labels))
	}
	if labels[0] != "00:30" {
		t.Errorf("first = %q, want 00:30", labels[0])
	}
	if labels[1] != "01:00" {
		t.Errorf("second = %q, want 01:00", labels[1])
	}
	if labels[47] != "24:00" {
		t.Errorf("last = %q, want 24:00", labels[47])
	}
	if !sort.StringsAreSorted(labels) {
		t.Error("template labels should sort lexically")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(0); got != "00:00" {
		t.Errorf("Format(0) = %q", got)
	}
	if got := Format(754); got != "12:34" {
		t.Errorf("Format(754) = %q", got)
	}
	if got := Format(DayMinutes + 30); got != "24:00" {
		t.Errorf("Format(overflow) = %q", got)
	}
}
