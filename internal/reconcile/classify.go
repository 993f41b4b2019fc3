package reconcile

import (
	"fmt"
	"strings"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// KeywordSet is a named shift category. A shift belongs to the category when
// any keyword occurs, case-insensitively, in its display name or notes.
type KeywordSet struct {
	Name     string
	Keywords []string
}

// Standard covers the regular day, night and mid shifts.
var Standard = KeywordSet{
	Name:     "standard",
	Keywords: []string{"day", "night", "mid-", "mid-night"},
}

// Bonus covers shifts that qualify for the bonus category.
var Bonus = KeywordSet{
	Name:     "bonus",
	Keywords: []string{"intermediate", "esprit", "vacation"},
}

// KeywordSetByName resolves "standard" or "bonus".
func KeywordSetByName(name string) (KeywordSet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Standard.Name:
		return Standard, nil
	case Bonus.Name:
		return Bonus, nil
	default:
		return KeywordSet{}, fmt.Errorf("unknown keyword set %q (want %q or %q)", name, Standard.Name, Bonus.Name)
	}
}

// WithKeywords returns a copy of ks using the given keywords. An empty list
// keeps the built-in keywords.
func (ks KeywordSet) WithKeywords(keywords []string) KeywordSet {
	if len(keywords) == 0 {
		return ks
	}
	return KeywordSet{Name: ks.Name, Keywords: append([]string(nil), keywords...)}
}

// Classify reports whether shift belongs to ks.
func Classify(shift model.ShiftRecord, ks KeywordSet) bool {
	name := strings.ToLower(shift.DisplayName)
	notes := strings.ToLower(shift.Notes)
	for _, kw := range ks.Keywords {
		if kw == "" {
			continue
		}
		kw = strings.ToLower(kw)
		if strings.Contains(name, kw) || strings.Contains(notes, kw) {
			return true
		}
	}
	return false
}
