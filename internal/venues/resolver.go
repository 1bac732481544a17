package venues

import (
	"strings"

	"github.com/agext/levenshtein"
)

// FuzzyThreshold is the minimum similarity for an unassisted fuzzy match.
// Below it the caller escalates to oracle disambiguation, then to an
// enumerated ask.
const FuzzyThreshold = 0.78

// MatchOutcome is the result of resolving free text against a canonical
// name list.
type MatchOutcome int

const (
	// MatchNone means nothing plausible was found.
	MatchNone MatchOutcome = iota
	// MatchExact means a case-insensitive exact or containment match.
	MatchExact
	// MatchFuzzy means a similarity match at or above FuzzyThreshold.
	MatchFuzzy
	// MatchWeak means the best candidate fell below the threshold and
	// needs confirmation before use.
	MatchWeak
)

// NameMatch is the best candidate for an input string.
type NameMatch struct {
	Index      int
	Name       string
	Similarity float64
	Outcome    MatchOutcome
}

// ResolveName matches free text against canonical names: exact match first,
// then fuzzy similarity. The input and names are compared case-insensitively
// with surrounding whitespace ignored.
func ResolveName(input string, names []string) NameMatch {
	needle := normalizeName(input)
	if needle == "" || len(names) == 0 {
		return NameMatch{Index: -1, Outcome: MatchNone}
	}

	for i, name := range names {
		canonical := normalizeName(name)
		if canonical == needle {
			return NameMatch{Index: i, Name: name, Similarity: 1, Outcome: MatchExact}
		}
	}

	// Containment counts as exact: "book me at topgolf please" → Topgolf.
	for i, name := range names {
		canonical := normalizeName(name)
		if canonical != "" && strings.Contains(needle, canonical) {
			return NameMatch{Index: i, Name: name, Similarity: 1, Outcome: MatchExact}
		}
	}

	best := NameMatch{Index: -1, Outcome: MatchNone}
	for i, name := range names {
		score := levenshtein.Match(needle, normalizeName(name), nil)
		if score > best.Similarity {
			best = NameMatch{Index: i, Name: name, Similarity: score}
		}
	}

	switch {
	case best.Index < 0:
		best.Outcome = MatchNone
	case best.Similarity >= FuzzyThreshold:
		best.Outcome = MatchFuzzy
	case best.Similarity >= 0.4:
		best.Outcome = MatchWeak
	default:
		best = NameMatch{Index: -1, Outcome: MatchNone}
	}
	return best
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Names extracts the name list from a venue slice, preserving order.
func Names(vs []Venue) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

// LocationNames extracts the name list from a location slice.
func LocationNames(ls []Location) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Name
	}
	return out
}
