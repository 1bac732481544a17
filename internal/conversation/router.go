package conversation

import (
	"context"

	"caddie_backend/internal/members"
)

// clarifyPrompt is the static capability fallback used whenever intent
// cannot be determined.
const clarifyPrompt = "I can help you book a bay, check a booking, change or cancel one, " +
	"or put you in touch with our team. What would you like to do?"

// Router assigns an inbound message to a flow. Members who have not
// finished onboarding are always routed there; the oracle never sees their
// messages.
type Router struct {
	oracle *Oracle
}

// NewRouter creates an intent router.
func NewRouter(oracle *Oracle) *Router {
	return &Router{oracle: oracle}
}

// Route classifies one message. It performs no side effects.
func (r *Router) Route(ctx context.Context, member members.Member, text string, recentTurns []string) Intent {
	if !member.OnboardingCompleted {
		return IntentOnboarding
	}
	return r.oracle.ClassifyIntent(ctx, text, recentTurns)
}

// flowForIntent maps classified intents onto flow engines. FAQ and clarify
// have no flow; the caller answers them directly.
func flowForIntent(intent Intent) (Flow, bool) {
	switch intent {
	case IntentNewBooking:
		return FlowNewBooking, true
	case IntentBookingStatus:
		return FlowBookingStatus, true
	case IntentCancelBooking:
		return FlowCancelBooking, true
	case IntentModifyBooking:
		return FlowModifyBooking, true
	case IntentOnboarding:
		return FlowOnboarding, true
	case IntentSupport:
		return FlowSupport, true
	}
	return "", false
}
