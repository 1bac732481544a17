package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/members"
)

// statusDescriptions render booking statuses in member-facing language.
var statusDescriptions = map[bookings.Status]string{
	bookings.StatusPending:          "waiting for confirmation from our team",
	bookings.StatusConfirmed:        "confirmed",
	bookings.StatusNotAvailable:     "unfortunately not available",
	bookings.StatusCancelled:        "cancelled",
	bookings.StatusFollowUpRequired: "being looked at by our team",
}

// StatusState carries nothing between turns; the flow is a single lookup.
type StatusState struct{}

// StatusFlow answers booking-status questions.
type StatusFlow struct {
	oracle *Oracle
	now    func() time.Time
}

// NewStatusFlow wires the booking-status flow engine.
func NewStatusFlow(oracle *Oracle) *StatusFlow {
	return &StatusFlow{oracle: oracle, now: time.Now}
}

// SetClock overrides the time source for tests.
func (f *StatusFlow) SetClock(now func() time.Time) {
	f.now = now
}

// Advance extracts whichever identification the message carries and asks
// the caller to resolve it. An empty criteria set resolves to the member's
// upcoming bookings.
func (f *StatusFlow) Advance(ctx context.Context, member members.Member, text string, _ *StatusState) (Decision, error) {
	loc := memberLocation(member.Timezone)
	now := f.now().In(loc)
	criteria := f.oracle.ExtractLookupCriteria(ctx, text, now.Format("2006-01-02"), member.Timezone)

	lookup := bookings.LookupCriteria{}
	if criteria.Reference != nil {
		lookup.Reference = *criteria.Reference
	}
	if criteria.Venue != nil {
		lookup.VenueName = *criteria.Venue
	}
	if criteria.Date != nil {
		if d, err := time.ParseInLocation("2006-01-02", *criteria.Date, loc); err == nil {
			lookup.Date = &d
		}
	}
	return Lookup{Criteria: lookup, Prompt: "Let me look that up."}, nil
}

// ResolveLookup reports the status of whatever the caller found.
func (f *StatusFlow) ResolveLookup(candidates []bookings.Booking) Decision {
	if len(candidates) == 0 {
		return Submitted{Message: "You don't have any upcoming bookings. Want to book a bay?"}
	}
	if len(candidates) == 1 {
		b := candidates[0]
		return Submitted{
			Reference: b.Reference,
			Message: fmt.Sprintf("Booking %s on %s is %s.",
				b.Reference, b.StartTime.Format("Monday 2 January, 3:04pm"), describeStatus(b.Status)),
		}
	}
	lines := make([]string, len(candidates))
	for i, b := range candidates {
		lines[i] = fmt.Sprintf("%s, %s: %s", b.Reference, b.StartTime.Format("Mon 2 Jan 3:04pm"), describeStatus(b.Status))
	}
	return Submitted{Message: "Here are your bookings:\n" + strings.Join(lines, "\n")}
}

func describeStatus(s bookings.Status) string {
	if desc, ok := statusDescriptions[s]; ok {
		return desc
	}
	return string(s)
}
