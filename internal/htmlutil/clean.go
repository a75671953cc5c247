// Package htmlutil turns operator-entered text that may contain pasted HTML
// into plain text.
package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// MaxNoteLength caps a cleaned note, in runes.
const MaxNoteLength = 2000

// ToText converts HTML to plain text. Entities are decoded and tags stripped.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// CleanNote converts a note to plain text, collapses runs of spaces and tabs,
// drops blank lines and truncates it to MaxNoteLength runes.
func CleanNote(s string) string {
	lines := strings.Split(ToText(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			kept = append(kept, l)
		}
	}
	out := strings.Join(kept, "\n")
	if r := []rune(out); len(r) > MaxNoteLength {
		out = string(r[:MaxNoteLength])
	}
	return out
}
