package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"caddie_backend/platform/ai"
	"caddie_backend/platform/logger"
	"caddie_backend/platform/validator"
)

// scriptClient replies with a fixed payload or error and counts calls.
type scriptClient struct {
	payload []byte
	err     error
	calls   int
}

func (c *scriptClient) GenerateJSON(_ context.Context, _ ai.Request) ([]byte, error) {
	c.calls++
	return c.payload, c.err
}

func testOracle(client ai.Client) *Oracle {
	return NewOracle(client, validator.New(), time.Second, logger.New("test"))
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		err     error
		want    Intent
	}{
		{"valid intent", `{"intent":"new-booking"}`, nil, IntentNewBooking},
		{"oracle failure falls back to clarify", "", errors.New("timeout"), IntentClarify},
		{"unknown enum value falls back", `{"intent":"order-pizza"}`, nil, IntentClarify},
		{"unexpected field rejected", `{"intent":"support","confidence":0.9}`, nil, IntentClarify},
		{"malformed json falls back", `{"intent":`, nil, IntentClarify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOracle(&scriptClient{payload: []byte(tt.payload), err: tt.err})
			if got := o.ClassifyIntent(context.Background(), "hi", nil); got != tt.want {
				t.Errorf("ClassifyIntent = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractBookingFields(t *testing.T) {
	o := testOracle(&scriptClient{payload: []byte(
		`{"venue":"Topgolf","date":"2026-03-15","time":"14:00","players":2}`,
	)})
	got := o.ExtractBookingFields(context.Background(), "book topgolf tomorrow 2pm for 2", "2026-03-14", "UTC")
	if got.Venue == nil || *got.Venue != "Topgolf" {
		t.Fatalf("venue = %v", got.Venue)
	}
	if got.Date == nil || *got.Date != "2026-03-15" {
		t.Fatalf("date = %v", got.Date)
	}
	if got.Players == nil || *got.Players != 2 {
		t.Fatalf("players = %v", got.Players)
	}
	if got.Guests != nil || got.Notes != nil {
		t.Fatal("unmentioned fields should stay nil")
	}
}

func TestExtractBookingFieldsFallsBackEmpty(t *testing.T) {
	o := testOracle(&scriptClient{err: errors.New("deadline exceeded")})
	got := o.ExtractBookingFields(context.Background(), "anything", "2026-03-14", "UTC")
	if got != (BookingFields{}) {
		t.Fatalf("expected empty field set, got %+v", got)
	}
}

func TestDisambiguateVenue(t *testing.T) {
	options := []string{"Topgolf Riverside", "Golf Central"}

	o := testOracle(&scriptClient{payload: []byte(`{"choice":"Topgolf Riverside"}`)})
	if got := o.DisambiguateVenue(context.Background(), "topglof", options); got != "Topgolf Riverside" {
		t.Fatalf("got %q", got)
	}

	o = testOracle(&scriptClient{payload: []byte(`{"choice":"none"}`)})
	if got := o.DisambiguateVenue(context.Background(), "the moon", options); got != "" {
		t.Fatalf("none should resolve to empty, got %q", got)
	}

	o = testOracle(&scriptClient{err: errors.New("timeout")})
	if got := o.DisambiguateVenue(context.Background(), "topglof", options); got != "" {
		t.Fatalf("fallback should be empty, got %q", got)
	}
}

func TestDetectCourseCorrectionFallsBackSafe(t *testing.T) {
	o := testOracle(&scriptClient{err: errors.New("timeout")})
	if o.DetectCourseCorrection(context.Background(), "wait", FlowNewBooking) {
		t.Fatal("oracle failure must never abandon a flow")
	}
}
