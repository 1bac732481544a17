package conversation

import (
	"strconv"
	"strings"
	"time"
)

// affirmatives and negatives cover the bare confirmation vocabulary. A bare
// confirmation with a complete field set skips oracle extraction entirely,
// so relative dates already resolved are never re-interpreted.
var affirmatives = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "confirm": true, "confirmed": true,
	"correct": true, "right": true, "sounds good": true, "go ahead": true,
	"that's right": true, "thats right": true, "please": true, "yes please": true,
}

var negatives = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "not yet": true,
	"no thanks": true, "don't": true, "dont": true, "negative": true,
}

// IsAffirmative reports whether the message is a bare yes.
func IsAffirmative(text string) bool {
	return affirmatives[strings.TrimRight(normalizeUtterance(text), ".!")]
}

// IsNegative reports whether the message is a bare no.
func IsNegative(text string) bool {
	return negatives[strings.TrimRight(normalizeUtterance(text), ".!")]
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// ParseDate resolves a date expression to midnight in the member's
// timezone. Relative words are anchored to now; a bare weekday means the
// next occurrence of that weekday, never today.
func ParseDate(raw string, now time.Time, loc *time.Location) (time.Time, bool) {
	s := normalizeUtterance(raw)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch s {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "day after tomorrow":
		return today.AddDate(0, 0, 2), true
	}
	if wd, ok := weekdays[strings.TrimPrefix(strings.TrimPrefix(s, "next "), "this ")]; ok {
		days := int(wd-today.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days), true
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006", "02/01", "2/1", "January 2", "Jan 2", "2 January", "2 Jan"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			if t.Year() == 0 {
				t = t.AddDate(today.Year(), 0, 0)
				if t.Before(today) {
					t = t.AddDate(1, 0, 0)
				}
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// namedWindows map vague times of day onto a concrete start.
var namedWindows = map[string][2]int{
	"morning":   {9, 0},
	"afternoon": {14, 0},
	"evening":   {18, 0},
	"tonight":   {19, 0},
	"noon":      {12, 0},
	"midday":    {12, 0},
	"lunchtime": {12, 0},
}

// ParseTimeOfDay resolves a time expression to hour and minute.
func ParseTimeOfDay(raw string) (hour, minute int, ok bool) {
	s := normalizeUtterance(raw)
	s = strings.TrimPrefix(s, "at ")
	s = strings.TrimPrefix(s, "around ")
	s = strings.TrimSuffix(s, " o'clock")

	if w, found := namedWindows[strings.TrimPrefix(strings.TrimPrefix(s, "in the "), "the ")]; found {
		return w[0], w[1], true
	}

	meridiem := ""
	for _, suffix := range []string{"am", "a.m.", "pm", "p.m."} {
		if strings.HasSuffix(s, suffix) {
			meridiem = string(suffix[0])
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	hs, ms := s, "0"
	for _, sep := range []string{":", "."} {
		if strings.Contains(s, sep) {
			parts := strings.SplitN(s, sep, 2)
			hs, ms = parts[0], parts[1]
			break
		}
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	switch meridiem {
	case "p":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h != 12 {
			h += 12
		}
	case "a":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h == 12 {
			h = 0
		}
	default:
		if h < 0 || h > 23 {
			return 0, 0, false
		}
	}
	return h, m, true
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "a": 1, "solo": 1, "just me": 1, "myself": 1,
}

// ParsePlayers resolves a player-count expression. Range checks are the
// caller's concern.
func ParsePlayers(raw string) (int, bool) {
	s := normalizeUtterance(raw)
	s = strings.TrimSuffix(s, " players")
	s = strings.TrimSuffix(s, " player")
	s = strings.TrimSuffix(s, " people")
	s = strings.TrimSuffix(s, " of us")
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CombineDateTime builds the booking start instant in the member's timezone.
func CombineDateTime(date time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
}

// memberLocation resolves a member timezone name, falling back to UTC.
func memberLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
