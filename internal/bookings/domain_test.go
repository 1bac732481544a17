package bookings

import (
	"testing"
	"time"

	"caddie_backend/platform/apperr"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		next Status
		want bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to not available", StatusPending, StatusNotAvailable, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to follow up", StatusPending, StatusFollowUpRequired, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to follow up", StatusConfirmed, StatusFollowUpRequired, true},
		{"confirmed to pending", StatusConfirmed, StatusPending, false},
		{"follow up to confirmed", StatusFollowUpRequired, StatusConfirmed, true},
		{"follow up to cancelled", StatusFollowUpRequired, StatusCancelled, true},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"not available is terminal", StatusNotAvailable, StatusConfirmed, false},
		{"no self transition", StatusConfirmed, StatusConfirmed, false},
		{"unknown status", Status("Bogus"), StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.next); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.next, got, tt.want)
			}
		})
	}
}

func TestValidateStartTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	leadTime := time.Hour

	tests := []struct {
		name     string
		start    time.Time
		wantCode apperr.Code
	}{
		{"in the past", now.Add(-time.Minute), apperr.CodeBookingInPast},
		{"exactly now", now, apperr.CodeBookingTooSoon},
		{"inside lead time", now.Add(30 * time.Minute), apperr.CodeBookingTooSoon},
		{"just inside lead time", now.Add(time.Hour - time.Second), apperr.CodeBookingTooSoon},
		{"exactly at lead time", now.Add(time.Hour), ""},
		{"well beyond lead time", now.Add(24 * time.Hour), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStartTime(now, tt.start, leadTime)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperr.HasCode(err, tt.wantCode) {
				t.Fatalf("got %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestCancellationDeadline(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	window := 2 * time.Hour

	deadline := CancellationDeadline(start, window)
	want := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}

	// Reaching the deadline exactly is already too late to cancel.
	beforeDeadline := deadline.Add(-time.Second)
	if !beforeDeadline.Before(deadline) {
		t.Fatal("one second before the deadline should still allow cancellation")
	}
}

func TestBookingDuration(t *testing.T) {
	b := Booking{
		StartTime: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC),
	}
	if got := b.Duration(); got != 90*time.Minute {
		t.Fatalf("Duration() = %v, want 90m", got)
	}
}
