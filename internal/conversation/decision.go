package conversation

import "caddie_backend/internal/bookings"

// Flow identifies one of the six conversation purposes.
type Flow string

const (
	FlowNewBooking    Flow = "new-booking"
	FlowBookingStatus Flow = "booking-status"
	FlowCancelBooking Flow = "cancel-booking"
	FlowModifyBooking Flow = "modify-booking"
	FlowOnboarding    Flow = "onboarding"
	FlowSupport       Flow = "support"
)

// Decision is the outcome of one flow turn. Concrete variants carry the
// data the renderer needs; callers handle every variant in a type switch.
type Decision interface {
	decision()
}

// Ask means a required field is missing and the flow wants it next.
type Ask struct {
	Field  string
	Prompt string
}

// ConfirmDefault offers a known default for a field and waits for yes/no
// before applying it.
type ConfirmDefault struct {
	Field   string
	Default string
	Prompt  string
}

// Review presents the completed field set for confirmation.
type Review struct {
	Summary string
}

// AskAlternatives reports the requested slot is unavailable and offers
// alternates.
type AskAlternatives struct {
	Prompt       string
	Alternatives []string
}

// Submitted is terminal: the side effect ran and the outcome is reported.
type Submitted struct {
	Reference string
	Message   string
}

// Clarify is the escape hatch when the input is unusable.
type Clarify struct {
	Prompt string
}

// Lookup asks the caller to resolve best-effort criteria against stored
// bookings before re-entering the flow with a concrete reference.
type Lookup struct {
	Criteria bookings.LookupCriteria
	Prompt   string
}

// Complete is the terminal onboarding decision.
type Complete struct {
	Message string
}

// ConfirmHandoff asks for a yes/no before escalating to staff.
type ConfirmHandoff struct {
	Topic  string
	Prompt string
}

// Handoff is terminal: the conversation is escalated to staff.
type Handoff struct {
	Topic   string
	Message string
}

func (Ask) decision()             {}
func (ConfirmDefault) decision()  {}
func (Review) decision()          {}
func (AskAlternatives) decision() {}
func (Submitted) decision()       {}
func (Clarify) decision()         {}
func (Lookup) decision()          {}
func (Complete) decision()        {}
func (ConfirmHandoff) decision()  {}
func (Handoff) decision()         {}

// terminal reports whether a decision ends the flow, clearing its state.
func terminal(d Decision) bool {
	switch d.(type) {
	case Submitted, Complete, Handoff:
		return true
	}
	return false
}

// decisionName tags outbound log entries.
func decisionName(d Decision) string {
	switch d.(type) {
	case Ask:
		return "ask"
	case ConfirmDefault:
		return "confirm_default"
	case Review:
		return "review"
	case AskAlternatives:
		return "ask_alternatives"
	case Submitted:
		return "submitted"
	case Clarify:
		return "clarify"
	case Lookup:
		return "lookup"
	case Complete:
		return "complete"
	case ConfirmHandoff:
		return "confirm_handoff"
	case Handoff:
		return "handoff"
	}
	return "unknown"
}
