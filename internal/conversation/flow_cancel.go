package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/members"
	"caddie_backend/platform/apperr"
	"caddie_backend/platform/config"
)

// bookingFinder is the slice of the bookings read repository the lookup
// flows consume.
type bookingFinder interface {
	GetByReference(ctx context.Context, memberID uuid.UUID, reference string) (bookings.Booking, error)
	Find(ctx context.Context, memberID uuid.UUID, criteria bookings.LookupCriteria) ([]bookings.Booking, error)
	ListUpcoming(ctx context.Context, memberID uuid.UUID, now time.Time) ([]bookings.Booking, error)
}

// statusTransitioner is the slice of the status engine the flows consume.
type statusTransitioner interface {
	Transition(ctx context.Context, params bookings.TransitionParams) (bookings.Booking, error)
}

// CancelState is the cancellation flow's slot record. The reference slot
// is filled either directly from the message or by the caller resolving a
// Lookup decision.
type CancelState struct {
	Reference  *string `json:"reference,omitempty"`
	Confirming bool    `json:"confirming,omitempty"`
}

// CancelFlow drives booking cancellation.
type CancelFlow struct {
	oracle *Oracle
	engine statusTransitioner
	cfg    config.BookingConfig
	now    func() time.Time
}

// NewCancelFlow wires the cancellation flow engine.
func NewCancelFlow(oracle *Oracle, engine statusTransitioner, cfg config.BookingConfig) *CancelFlow {
	return &CancelFlow{oracle: oracle, engine: engine, cfg: cfg, now: time.Now}
}

// SetClock overrides the time source for tests.
func (f *CancelFlow) SetClock(now func() time.Time) {
	f.now = now
}

// Advance runs one turn. Without a known reference it emits a Lookup
// decision for the caller to resolve.
func (f *CancelFlow) Advance(ctx context.Context, member members.Member, text string, st *CancelState) (Decision, error) {
	if st.Confirming && st.Reference != nil {
		switch {
		case IsAffirmative(text):
			return f.cancel(ctx, st)
		case IsNegative(text):
			return Submitted{Reference: *st.Reference, Message: "No problem, your booking stays as it is."}, nil
		default:
			return Clarify{Prompt: fmt.Sprintf("Should I cancel booking %s? Reply yes or no.", *st.Reference)}, nil
		}
	}

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
	return Lookup{
		Criteria: lookup,
		Prompt:   "Which booking would you like to cancel?",
	}, nil
}

// ResolveLookup re-enters the flow with the candidates the caller found.
func (f *CancelFlow) ResolveLookup(st *CancelState, candidates []bookings.Booking) Decision {
	switch len(candidates) {
	case 0:
		return Clarify{Prompt: "I couldn't find a booking matching that. Do you have the booking reference? It looks like " + f.cfg.GetBookingReferencePrefix() + "XXXXXX."}
	case 1:
		b := candidates[0]
		st.Reference = &b.Reference
		st.Confirming = true
		return Review{Summary: fmt.Sprintf("I found booking %s on %s. Cancel it? Reply yes to cancel.",
			b.Reference, b.StartTime.Format("Monday 2 January, 3:04pm"))}
	default:
		return Ask{Field: "reference", Prompt: "You have a few bookings: " + summarizeReferences(candidates) + ". Which reference should I cancel?"}
	}
}

func (f *CancelFlow) cancel(ctx context.Context, st *CancelState) (Decision, error) {
	booking, err := f.engine.Transition(ctx, bookings.TransitionParams{
		Reference: *st.Reference,
		Next:      bookings.StatusCancelled,
	})
	if err != nil {
		switch {
		case apperr.HasCode(err, apperr.CodeCancellationWindowExceeded):
			return Submitted{
				Reference: *st.Reference,
				Message: fmt.Sprintf("Bookings can only be cancelled up to %d hours before the start time, so this one is too close to change. Please call the venue if you can't make it.",
					int(f.cfg.GetCancellationWindow().Hours())),
			}, nil
		case apperr.HasCode(err, apperr.CodeInvalidStatusTransition):
			return Submitted{Reference: *st.Reference, Message: "That booking has already been cancelled or closed."}, nil
		case apperr.GetKind(err) == apperr.KindNotFound:
			return Clarify{Prompt: "I couldn't find that booking any more. Could you check the reference?"}, nil
		}
		return nil, err
	}
	return Submitted{
		Reference: booking.Reference,
		Message:   fmt.Sprintf("Done, booking %s is cancelled. Hope to see you again soon!", booking.Reference),
	}, nil
}

func summarizeReferences(candidates []bookings.Booking) string {
	out := ""
	for i, b := range candidates {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s (%s)", b.Reference, b.StartTime.Format("Mon 2 Jan 3:04pm"))
	}
	return out
}
