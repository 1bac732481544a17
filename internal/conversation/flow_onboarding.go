package conversation

import (
	"context"
	"fmt"
	"strings"

	"caddie_backend/internal/members"
	"caddie_backend/platform/phone"
)

// onboarder completes member onboarding.
type onboarder interface {
	CompleteOnboarding(ctx context.Context, m members.Member, displayName, timezone string) error
}

// OnboardingState is the onboarding flow's slot record.
type OnboardingState struct {
	Name       *string `json:"name,omitempty"`
	Asked      bool    `json:"asked,omitempty"`
	Confirming bool    `json:"confirming,omitempty"`
}

// OnboardingFlow greets new members and collects their name.
type OnboardingFlow struct {
	oracle  *Oracle
	members onboarder
}

// NewOnboardingFlow wires the onboarding flow engine.
func NewOnboardingFlow(oracle *Oracle, members onboarder) *OnboardingFlow {
	return &OnboardingFlow{oracle: oracle, members: members}
}

// Advance runs one onboarding turn.
func (f *OnboardingFlow) Advance(ctx context.Context, member members.Member, text string, st *OnboardingState) (Decision, error) {
	if st.Confirming && st.Name != nil {
		switch {
		case IsAffirmative(text):
			if err := f.members.CompleteOnboarding(ctx, member, *st.Name, member.Timezone); err != nil {
				return nil, err
			}
			return Complete{Message: fmt.Sprintf(
				"Welcome, %s! You're all set. You can message me any time to book a bay, check a booking, or change one. Fancy booking your first session?",
				*st.Name)}, nil
		case IsNegative(text):
			st.Name = nil
			st.Confirming = false
			st.Asked = true
			return Ask{Field: "name", Prompt: "Sorry about that! What should we call you?"}, nil
		default:
			st.Confirming = false
			st.Name = nil
		}
	}

	if st.Name == nil {
		if !st.Asked {
			st.Asked = true
			// The transport often supplies a profile name on first contact;
			// offer it rather than asking cold. A phone-shaped display name
			// is no name at all and never offered.
			if profile := strings.TrimSpace(member.DisplayName); profile != "" && phone.NormalizeE164(profile) == "" {
				name := profile
				st.Name = &name
				st.Confirming = true
				return ConfirmDefault{
					Field:   "name",
					Default: profile,
					Prompt:  fmt.Sprintf("Welcome! I'm the booking assistant. Should we call you %s?", profile),
				}, nil
			}
			return Ask{Field: "name", Prompt: "Welcome! I'm the booking assistant. Before we start, what should we call you?"}, nil
		}

		name := ""
		if extracted := f.oracle.ExtractOnboarding(ctx, text); extracted.Name != nil {
			name = strings.TrimSpace(*extracted.Name)
		}
		if name == "" {
			// The message is their answer to the name question.
			name = strings.TrimSpace(text)
		}
		if name == "" || len([]rune(name)) > 60 {
			return Ask{Field: "name", Prompt: "I didn't catch that. What should we call you?"}, nil
		}
		st.Name = &name
	}

	st.Confirming = true
	return ConfirmDefault{
		Field:   "name",
		Default: *st.Name,
		Prompt:  fmt.Sprintf("Nice to meet you, %s! Did I get that right?", *st.Name),
	}, nil
}
