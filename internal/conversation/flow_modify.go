package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/members"
	"caddie_backend/platform/apperr"
)

// ModifyState is the modification flow's slot record. Requested changes
// are collected as typed slots; applying them is a staff action, so the
// flow ends by flagging the booking for follow-up rather than rebooking.
type ModifyState struct {
	Reference  *string `json:"reference,omitempty"`
	NewDate    *string `json:"new_date,omitempty"`
	NewTime    *string `json:"new_time,omitempty"`
	NewPlayers *int    `json:"new_players,omitempty"`
	Confirming bool    `json:"confirming,omitempty"`
}

func (st *ModifyState) hasChanges() bool {
	return st.NewDate != nil || st.NewTime != nil || st.NewPlayers != nil
}

// ModifyFlow drives booking modification requests.
type ModifyFlow struct {
	oracle *Oracle
	engine statusTransitioner
	now    func() time.Time
}

// NewModifyFlow wires the modification flow engine.
func NewModifyFlow(oracle *Oracle, engine statusTransitioner) *ModifyFlow {
	return &ModifyFlow{oracle: oracle, engine: engine, now: time.Now}
}

// SetClock overrides the time source for tests.
func (f *ModifyFlow) SetClock(now func() time.Time) {
	f.now = now
}

// Advance runs one turn. Without a known reference it emits a Lookup
// decision for the caller to resolve.
func (f *ModifyFlow) Advance(ctx context.Context, member members.Member, text string, st *ModifyState) (Decision, error) {
	loc := memberLocation(member.Timezone)
	now := f.now().In(loc)
	today := now.Format("2006-01-02")

	if st.Confirming && st.Reference != nil {
		switch {
		case IsAffirmative(text):
			return f.requestChange(ctx, st)
		case IsNegative(text):
			return Submitted{Reference: *st.Reference, Message: "No problem, your booking stays as it is."}, nil
		default:
			st.Confirming = false
		}
	}

	if st.Reference == nil {
		criteria := f.oracle.ExtractLookupCriteria(ctx, text, today, member.Timezone)
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
		return Lookup{Criteria: lookup, Prompt: "Which booking would you like to change?"}, nil
	}

	// Collect the requested changes from this turn.
	extracted := f.oracle.ExtractBookingFields(ctx, text, today, member.Timezone)
	if extracted.Date != nil {
		st.NewDate = extracted.Date
	}
	if extracted.Time != nil {
		st.NewTime = extracted.Time
	}
	if extracted.Players != nil {
		st.NewPlayers = extracted.Players
	}

	if !st.hasChanges() {
		return Ask{
			Field:  "changes",
			Prompt: fmt.Sprintf("What would you like to change about booking %s? I can pass on a new date, time, or player count.", *st.Reference),
		}, nil
	}

	st.Confirming = true
	return Review{Summary: fmt.Sprintf("For booking %s you'd like %s. Shall I send that to our team? They'll confirm the change with you.",
		*st.Reference, st.describeChanges())}, nil
}

// ResolveLookup re-enters the flow with the candidates the caller found.
func (f *ModifyFlow) ResolveLookup(st *ModifyState, candidates []bookings.Booking) Decision {
	switch len(candidates) {
	case 0:
		return Clarify{Prompt: "I couldn't find a booking matching that. Do you have the booking reference?"}
	case 1:
		st.Reference = &candidates[0].Reference
		if st.hasChanges() {
			st.Confirming = true
			return Review{Summary: fmt.Sprintf("For booking %s you'd like %s. Shall I send that to our team?",
				*st.Reference, st.describeChanges())}
		}
		return Ask{
			Field:  "changes",
			Prompt: fmt.Sprintf("Found booking %s on %s. What would you like to change?", candidates[0].Reference, candidates[0].StartTime.Format("Monday 2 January, 3:04pm")),
		}
	default:
		return Ask{Field: "reference", Prompt: "You have a few bookings: " + summarizeReferences(candidates) + ". Which one do you want to change?"}
	}
}

func (st *ModifyState) describeChanges() string {
	var parts []string
	if st.NewDate != nil {
		parts = append(parts, "the date moved to "+*st.NewDate)
	}
	if st.NewTime != nil {
		parts = append(parts, "the time moved to "+*st.NewTime)
	}
	if st.NewPlayers != nil {
		parts = append(parts, fmt.Sprintf("the player count changed to %d", *st.NewPlayers))
	}
	return strings.Join(parts, " and ")
}

// requestChange flags the booking for staff follow-up carrying the
// requested changes as the transition reason.
func (f *ModifyFlow) requestChange(ctx context.Context, st *ModifyState) (Decision, error) {
	reason := "member requested change: " + st.describeChanges()
	booking, err := f.engine.Transition(ctx, bookings.TransitionParams{
		Reference: *st.Reference,
		Next:      bookings.StatusFollowUpRequired,
		Reason:    &reason,
	})
	if err != nil {
		switch {
		case apperr.HasCode(err, apperr.CodeInvalidStatusTransition):
			return Submitted{Reference: *st.Reference, Message: "That booking has already been cancelled or closed, so there's nothing to change."}, nil
		case apperr.GetKind(err) == apperr.KindNotFound:
			return Clarify{Prompt: "I couldn't find that booking any more. Could you check the reference?"}, nil
		}
		return nil, err
	}
	return Submitted{
		Reference: booking.Reference,
		Message:   fmt.Sprintf("Got it. I've sent your change request for %s to our team; they'll confirm it with you shortly.", booking.Reference),
	}, nil
}
