package conversation

import (
	"context"
	"strings"

	"caddie_backend/platform/cache"
)

// correctionKeywords trigger the detector. Anything without one of these is
// treated as not a correction without consulting the oracle.
var correctionKeywords = []string{
	"wait",
	"actually",
	"never mind",
	"nevermind",
	"scratch that",
	"forget it",
	"forget that",
	"start over",
	"start again",
	"hold on",
	"stop",
}

// actionVerbs mark a message as a concrete new request rather than an
// abandonment ("actually, book me Topgolf tomorrow at 2pm instead").
var actionVerbs = []string{
	"book", "reserve", "schedule", "cancel", "change", "move", "reschedule", "check",
}

// longActionLength is the rune count past which a keyword-bearing message
// containing an action verb is treated as a new request.
const longActionLength = 40

// CorrectionDetector decides whether a mid-flow message abandons the flow.
// Oracle verdicts are cached by normalized text so repeated phrasing does
// not trigger repeat calls.
type CorrectionDetector struct {
	oracle *Oracle
	cache  *cache.TTL[bool]
}

// NewCorrectionDetector builds a detector with a bounded verdict cache.
func NewCorrectionDetector(oracle *Oracle, verdicts *cache.TTL[bool]) *CorrectionDetector {
	return &CorrectionDetector{oracle: oracle, cache: verdicts}
}

// IsCorrection runs the cheap filters first and only then the oracle.
func (d *CorrectionDetector) IsCorrection(ctx context.Context, text string, activeFlow Flow) bool {
	normalized := normalizeUtterance(text)
	if !containsKeyword(normalized) {
		return false
	}
	if containsActionVerb(normalized) && len([]rune(normalized)) > longActionLength {
		return false
	}
	if verdict, ok := d.cache.Get(normalized); ok {
		return verdict
	}
	verdict := d.oracle.DetectCourseCorrection(ctx, text, activeFlow)
	d.cache.Set(normalized, verdict)
	return verdict
}

func normalizeUtterance(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsKeyword(normalized string) bool {
	for _, kw := range correctionKeywords {
		if containsWord(normalized, kw) {
			return true
		}
	}
	return false
}

func containsActionVerb(normalized string) bool {
	for _, verb := range actionVerbs {
		if containsWord(normalized, verb) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "wait" does not fire inside
// "waitlist".
func containsWord(haystack, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
