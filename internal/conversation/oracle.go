package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"caddie_backend/platform/ai"
	"caddie_backend/platform/logger"
	"caddie_backend/platform/validator"
)

// Intent is the classification vocabulary. Onboarding is never produced by
// the oracle; the router assigns it deterministically for new members.
type Intent string

const (
	IntentNewBooking    Intent = "new-booking"
	IntentBookingStatus Intent = "booking-status"
	IntentCancelBooking Intent = "cancel-booking"
	IntentModifyBooking Intent = "modify-booking"
	IntentFAQ           Intent = "faq"
	IntentSupport       Intent = "support"
	IntentClarify       Intent = "clarify"
	IntentOnboarding    Intent = "onboarding"
)

// Oracle wraps the language model behind typed, schema-validated calls.
// Every method has a deterministic fallback: a timeout, malformed output,
// unknown fields, or a validation failure all degrade the same way, and no
// method ever returns an error to its caller.
type Oracle struct {
	client   ai.Client
	validate *validator.Validator
	timeout  time.Duration
	log      *logger.Logger
}

// NewOracle builds an oracle on the configured provider client.
func NewOracle(client ai.Client, validate *validator.Validator, timeout time.Duration, log *logger.Logger) *Oracle {
	return &Oracle{client: client, validate: validate, timeout: timeout, log: log}
}

// generate runs one bounded oracle call and strictly decodes the reply.
func (o *Oracle) generate(ctx context.Context, req ai.Request, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.client.GenerateJSON(ctx, req)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode oracle reply: %w", err)
	}
	return o.validate.Struct(out)
}

type intentReply struct {
	Intent string `json:"intent" validate:"required,oneof=new-booking booking-status cancel-booking modify-booking faq support clarify"`
}

// ClassifyIntent maps free text onto the fixed flow vocabulary. Falls back
// to clarify.
func (o *Oracle) ClassifyIntent(ctx context.Context, text string, recentTurns []string) Intent {
	prompt := "Message: " + text
	if len(recentTurns) > 0 {
		prompt = "Recent conversation:\n" + strings.Join(recentTurns, "\n") + "\n\n" + prompt
	}
	var reply intentReply
	err := o.generate(ctx, ai.Request{
		System: "You classify messages sent to a golf bay booking assistant. " +
			"Pick the single intent that best matches what the member wants. " +
			"Use clarify when the message fits nothing else.",
		Prompt: prompt,
		Schema: ai.Object(map[string]*ai.Schema{
			"intent": ai.StringEnum("the member's intent",
				"new-booking", "booking-status", "cancel-booking", "modify-booking", "faq", "support", "clarify"),
		}, "intent"),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("classify_intent", err)
		return IntentClarify
	}
	return Intent(reply.Intent)
}

// BookingFields is the partial record an extraction turn may produce. Nil
// means the message said nothing about that field.
type BookingFields struct {
	Venue    *string `json:"venue"`
	Location *string `json:"location"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Players  *int    `json:"players"`
	Guests   *string `json:"guests"`
	Notes    *string `json:"notes"`
}

// ExtractBookingFields pulls booking slots out of one message. today and
// timezone anchor relative dates like "tomorrow". Falls back to an empty
// field set.
func (o *Oracle) ExtractBookingFields(ctx context.Context, text, today, timezone string) BookingFields {
	var reply BookingFields
	err := o.generate(ctx, ai.Request{
		System: "You extract golf bay booking details from a member's message. " +
			"Today is " + today + " in timezone " + timezone + ". " +
			"Resolve relative dates to YYYY-MM-DD and times to 24-hour HH:MM. " +
			"Omit every field the message does not mention. Never guess.",
		Prompt: text,
		Schema: ai.Object(map[string]*ai.Schema{
			"venue":    ai.String("venue name as written"),
			"location": ai.String("sub-location or area name as written"),
			"date":     ai.String("requested date, YYYY-MM-DD"),
			"time":     ai.String("requested start time, HH:MM 24-hour"),
			"players":  ai.Integer("number of players"),
			"guests":   ai.String("guest names, comma separated"),
			"notes":    ai.String("free-text notes, or the word none"),
		}),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("extract_booking_fields", err)
		return BookingFields{}
	}
	return reply
}

// LookupFields is the best-effort booking identification extracted from a
// cancel or modify request.
type LookupFields struct {
	Reference *string `json:"reference"`
	Date      *string `json:"date"`
	Venue     *string `json:"venue"`
}

// ExtractLookupCriteria pulls booking identification out of one message.
// Falls back to an empty criteria set.
func (o *Oracle) ExtractLookupCriteria(ctx context.Context, text, today, timezone string) LookupFields {
	var reply LookupFields
	err := o.generate(ctx, ai.Request{
		System: "You extract which existing golf bay booking a member is talking about. " +
			"Today is " + today + " in timezone " + timezone + ". " +
			"A reference looks like a short code such as CB-7KQ2MX. " +
			"Resolve relative dates to YYYY-MM-DD. Omit anything not mentioned.",
		Prompt: text,
		Schema: ai.Object(map[string]*ai.Schema{
			"reference": ai.String("booking reference code"),
			"date":      ai.String("booking date, YYYY-MM-DD"),
			"venue":     ai.String("venue name as written"),
		}),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("extract_lookup_criteria", err)
		return LookupFields{}
	}
	return reply
}

// OnboardingFields is the slot set for the onboarding flow.
type OnboardingFields struct {
	Name *string `json:"name"`
}

// ExtractOnboarding pulls a display name out of one message. Falls back to
// treating the whole message as unusable.
func (o *Oracle) ExtractOnboarding(ctx context.Context, text string) OnboardingFields {
	var reply OnboardingFields
	err := o.generate(ctx, ai.Request{
		System: "You extract the name a new member wants to be called from their message. " +
			"Omit the field if the message does not contain a name.",
		Prompt: text,
		Schema: ai.Object(map[string]*ai.Schema{
			"name": ai.String("the member's preferred name"),
		}),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("extract_onboarding", err)
		return OnboardingFields{}
	}
	return reply
}

type correctionReply struct {
	Correction bool `json:"correction"`
}

// DetectCourseCorrection reports whether the message abandons or redirects
// the active flow. Falls back to "not a correction" so the common path is
// never blocked on the oracle.
func (o *Oracle) DetectCourseCorrection(ctx context.Context, text string, activeFlow Flow) bool {
	var reply correctionReply
	err := o.generate(ctx, ai.Request{
		System: "A member is mid-way through a " + string(activeFlow) + " conversation with a " +
			"golf bay booking assistant. Decide whether their message abandons or redirects " +
			"that conversation, as opposed to answering the assistant's last question.",
		Prompt: text,
		Schema: ai.Object(map[string]*ai.Schema{
			"correction": ai.Boolean("true when the member is abandoning or redirecting"),
		}, "correction"),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("detect_course_correction", err)
		return false
	}
	return reply.Correction
}

type disambiguateReply struct {
	Choice string `json:"choice"`
}

// DisambiguateVenue asks the oracle to pick which canonical option the
// member meant. Returns the empty string when none fits or on fallback.
func (o *Oracle) DisambiguateVenue(ctx context.Context, input string, options []string) string {
	enum := append(append([]string{}, options...), "none")
	var reply disambiguateReply
	err := o.generate(ctx, ai.Request{
		System: "A member wrote a venue name that does not exactly match our list. " +
			"Pick the option they most likely meant, or none if nothing fits.",
		Prompt: "Member wrote: " + input + "\nOptions: " + strings.Join(options, ", "),
		Schema: ai.Object(map[string]*ai.Schema{
			"choice": ai.StringEnum("the matching option, or none", enum...),
		}, "choice"),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("disambiguate_venue", err)
		return ""
	}
	if reply.Choice == "none" {
		return ""
	}
	for _, opt := range options {
		if strings.EqualFold(opt, reply.Choice) {
			return opt
		}
	}
	return ""
}

// FieldIssue names one extracted field the oracle judged implausible.
type FieldIssue struct {
	Field  string `json:"field" validate:"required"`
	Reason string `json:"reason"`
}

type validateReply struct {
	Issues []FieldIssue `json:"issues" validate:"dive"`
}

// ValidateFields runs a plausibility pass over the assembled field set,
// catching contradictions the deterministic parsers cannot (a date that
// disagrees with a weekday the member named, gibberish guest names). Falls
// back to no issues.
func (o *Oracle) ValidateFields(ctx context.Context, summary string) []FieldIssue {
	var reply validateReply
	err := o.generate(ctx, ai.Request{
		System: "You review an assembled golf bay booking for internal contradictions or " +
			"nonsensical values. Report an issue only when a field is clearly wrong; " +
			"an empty list is the normal outcome.",
		Prompt: summary,
		Schema: ai.Object(map[string]*ai.Schema{
			"issues": {Type: "array", Items: ai.Object(map[string]*ai.Schema{
				"field":  ai.StringEnum("the suspect field", "venue", "location", "date", "time", "players", "guests", "notes"),
				"reason": ai.String("one short sentence"),
			}, "field")},
		}),
	}, &reply)
	if err != nil {
		o.log.OracleFallback("validate_fields", err)
		return nil
	}
	return reply.Issues
}
