package conversation

import (
	"context"
	"fmt"
	"strings"

	"caddie_backend/internal/members"
)

// genericHelpPhrases are openers that carry no topic of their own.
var genericHelpPhrases = []string{
	"help", "i need help", "support", "talk to someone", "talk to a person",
	"speak to someone", "human", "agent", "staff", "hello", "hi",
}

// SupportState is the support-handoff flow's slot record.
type SupportState struct {
	Topic      *string `json:"topic,omitempty"`
	Confirming bool    `json:"confirming,omitempty"`
}

// SupportFlow collects what the member needs and confirms before handing
// the conversation to staff.
type SupportFlow struct{}

// NewSupportFlow wires the support flow engine.
func NewSupportFlow() *SupportFlow {
	return &SupportFlow{}
}

// Advance runs one support turn.
func (f *SupportFlow) Advance(_ context.Context, _ members.Member, text string, st *SupportState) (Decision, error) {
	if st.Confirming && st.Topic != nil {
		switch {
		case IsAffirmative(text):
			return Handoff{
				Topic:   *st.Topic,
				Message: "Thanks, I've passed this to our team. Someone will message you here shortly.",
			}, nil
		case IsNegative(text):
			st.Topic = nil
			st.Confirming = false
			return Clarify{Prompt: "No problem. Is there anything else I can help with?"}, nil
		default:
			// They elaborated; treat it as the topic.
			st.Confirming = false
			st.Topic = nil
		}
	}

	if st.Topic == nil {
		topic := strings.TrimSpace(text)
		if topic == "" || isGenericHelp(topic) {
			return Ask{Field: "topic", Prompt: "Of course. What do you need help with?"}, nil
		}
		st.Topic = &topic
	}

	st.Confirming = true
	return ConfirmHandoff{
		Topic:  *st.Topic,
		Prompt: fmt.Sprintf("Got it: %q. Want me to pass this to our team so someone can get back to you?", *st.Topic),
	}, nil
}

func isGenericHelp(text string) bool {
	normalized := strings.TrimRight(normalizeUtterance(text), ".!?")
	for _, phrase := range genericHelpPhrases {
		if normalized == phrase || normalized == "i need "+phrase {
			return true
		}
	}
	return len([]rune(normalized)) < 4
}
