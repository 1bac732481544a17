package conversation

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	// A Saturday.
	now := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"today", "today", "2026-03-14", true},
		{"tomorrow", "Tomorrow", "2026-03-15", true},
		{"day after tomorrow", "day after tomorrow", "2026-03-16", true},
		{"next weekday", "friday", "2026-03-20", true},
		{"same weekday rolls a week", "saturday", "2026-03-21", true},
		{"next prefix", "next monday", "2026-03-16", true},
		{"iso", "2026-04-01", "2026-04-01", true},
		{"day month", "20/03/2026", "2026-03-20", true},
		{"month name", "April 2", "2026-04-02", true},
		{"month name past rolls a year", "January 2", "2027-01-02", true},
		{"garbage", "banana", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input, now, time.UTC)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input  string
		hour   int
		minute int
		ok     bool
	}{
		{"2pm", 14, 0, true},
		{"2:30pm", 14, 30, true},
		{"2.30pm", 14, 30, true},
		{"12pm", 12, 0, true},
		{"12am", 0, 0, true},
		{"14:00", 14, 0, true},
		{"at 9am", 9, 0, true},
		{"afternoon", 14, 0, true},
		{"in the morning", 9, 0, true},
		{"noon", 12, 0, true},
		{"25:00", 0, 0, false},
		{"13pm", 0, 0, false},
		{"soonish", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, ok := ParseTimeOfDay(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimeOfDay(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && (h != tt.hour || m != tt.minute) {
				t.Errorf("ParseTimeOfDay(%q) = %d:%02d, want %d:%02d", tt.input, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"3", 3, true},
		{"three", 3, true},
		{"4 players", 4, true},
		{"just me", 1, true},
		{"2 of us", 2, true},
		{"a few", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePlayers(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParsePlayers(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePlayers(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestBareConfirmations(t *testing.T) {
	for _, s := range []string{"yes", "Yes!", "  yep  ", "sounds good", "OK"} {
		if !IsAffirmative(s) {
			t.Errorf("IsAffirmative(%q) = false", s)
		}
	}
	for _, s := range []string{"no", "Nope", "not yet"} {
		if !IsNegative(s) {
			t.Errorf("IsNegative(%q) = false", s)
		}
	}
	for _, s := range []string{"yes book it for friday", "no wait make it 3pm", "maybe"} {
		if IsAffirmative(s) || IsNegative(s) {
			t.Errorf("%q should be neither a bare yes nor a bare no", s)
		}
	}
}
