package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/events"
	"caddie_backend/internal/members"
	"caddie_backend/platform/logger"
)

// faqReply answers general questions without a flow.
const faqReply = "Happy to help! You can book a practice bay by telling me the venue, day and time, " +
	"check or change an existing booking by its reference, or cancel one. " +
	"For anything about pricing, opening hours or memberships, say support and I'll connect you with our team."

// Reply is the rendered outcome of one conversation turn.
type Reply struct {
	Text     string
	Flow     Flow
	Decision string
}

// envelopeStore persists flow envelopes between turns.
type envelopeStore interface {
	Get(ctx context.Context, memberID uuid.UUID) (*Envelope, error)
	Save(ctx context.Context, memberID uuid.UUID, flow Flow, state interface{}, sharedUpdates SharedContext) error
	Clear(ctx context.Context, memberID uuid.UUID) error
}

// escalationPublisher forwards terminal decisions that staff must act on.
type escalationPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service orchestrates one conversation turn: course-correction check,
// routing, flow dispatch, lookup resolution, and envelope persistence.
type Service struct {
	store       envelopeStore
	router      *Router
	corrections *CorrectionDetector
	finder      bookingFinder
	bus         escalationPublisher

	booking    *BookingFlow
	status     *StatusFlow
	cancel     *CancelFlow
	modify     *ModifyFlow
	onboarding *OnboardingFlow
	support    *SupportFlow

	log *logger.Logger
	now func() time.Time
}

// NewService wires the conversation orchestrator.
func NewService(
	store envelopeStore,
	router *Router,
	corrections *CorrectionDetector,
	finder bookingFinder,
	bus escalationPublisher,
	booking *BookingFlow,
	status *StatusFlow,
	cancel *CancelFlow,
	modify *ModifyFlow,
	onboarding *OnboardingFlow,
	support *SupportFlow,
	log *logger.Logger,
) *Service {
	return &Service{
		store:       store,
		router:      router,
		corrections: corrections,
		finder:      finder,
		bus:         bus,
		booking:     booking,
		status:      status,
		cancel:      cancel,
		modify:      modify,
		onboarding:  onboarding,
		support:     support,
		log:         log,
		now:         time.Now,
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// restartPrompts are sent after a course correction clears a flow.
var restartPrompts = map[Flow]string{
	FlowNewBooking:    "No problem, I've dropped that booking. What would you like to do instead?",
	FlowBookingStatus: "Okay. What would you like to do?",
	FlowCancelBooking: "Okay, I've left your booking alone. What would you like to do?",
	FlowModifyBooking: "Okay, no changes made. What would you like to do?",
	FlowOnboarding:    "No rush! Message me whenever you're ready to get set up.",
	FlowSupport:       "Okay, nothing sent to our team. What would you like to do?",
}

// HandleMessage runs one full conversation turn and returns the outbound
// reply text.
func (s *Service) HandleMessage(ctx context.Context, member members.Member, text string) (Reply, error) {
	env, err := s.store.Get(ctx, member.ID)
	if err != nil {
		return Reply{}, err
	}

	if env != nil && s.corrections.IsCorrection(ctx, text, env.Flow) {
		if err := s.store.Clear(ctx, member.ID); err != nil {
			return Reply{}, err
		}
		prompt, ok := restartPrompts[env.Flow]
		if !ok {
			prompt = clarifyPrompt
		}
		return s.reply(member, env.Flow, Clarify{Prompt: prompt}), nil
	}

	flow, active := s.selectFlow(ctx, member, env, text)
	if !active {
		// FAQ and unclassifiable messages are answered without a flow.
		switch flow {
		case "faq":
			return Reply{Text: faqReply, Decision: "faq"}, nil
		default:
			return Reply{Text: clarifyPrompt, Decision: "clarify"}, nil
		}
	}

	decision, state, err := s.dispatch(ctx, member, flow, env, text)
	if err != nil {
		return Reply{}, err
	}

	if terminal(decision) {
		if err := s.store.Clear(ctx, member.ID); err != nil {
			return Reply{}, err
		}
		// A confirmed handoff promises staff contact; the promise has to
		// outlive this turn.
		if h, ok := decision.(Handoff); ok {
			s.bus.Publish(ctx, events.SupportHandoffRequested{
				BaseEvent:  events.NewBaseEvent(),
				MemberID:   member.ID,
				MemberName: member.DisplayName,
				Phone:      member.Phone,
				Topic:      h.Topic,
			})
		}
	} else {
		shared := SharedContext{}
		if bst, ok := state.(*BookingState); ok {
			shared = bst.sharedUpdates()
		}
		if err := s.store.Save(ctx, member.ID, flow, state, shared); err != nil {
			return Reply{}, err
		}
	}
	return s.reply(member, flow, decision), nil
}

func (s *Service) reply(member members.Member, flow Flow, decision Decision) Reply {
	name := decisionName(decision)
	s.log.OutboundMessage(member.ID.String(), string(flow), name)
	return Reply{Text: Render(decision), Flow: flow, Decision: name}
}

// selectFlow picks the flow for this turn. An active envelope always wins;
// members who have not onboarded are always routed to onboarding; only a
// fresh conversation consults the router. The second return is false when
// the turn needs no flow at all.
func (s *Service) selectFlow(ctx context.Context, member members.Member, env *Envelope, text string) (Flow, bool) {
	if !member.OnboardingCompleted {
		return FlowOnboarding, true
	}
	if env != nil {
		return env.Flow, true
	}
	intent := s.router.Route(ctx, member, text, nil)
	if flow, ok := flowForIntent(intent); ok {
		return flow, true
	}
	if intent == IntentFAQ {
		return "faq", false
	}
	return "", false
}

// dispatch decodes the flow's state, advances it one turn, and resolves
// any Lookup decision against stored bookings before returning.
func (s *Service) dispatch(ctx context.Context, member members.Member, flow Flow, env *Envelope, text string) (Decision, interface{}, error) {
	decode := func(out interface{}) error {
		if env == nil || env.Flow != flow {
			return nil
		}
		return env.DecodeState(out)
	}

	switch flow {
	case FlowNewBooking:
		st := &BookingState{}
		if err := decode(st); err != nil {
			return nil, nil, err
		}
		if env != nil {
			st.adoptShared(env.Shared)
		}
		d, err := s.booking.Advance(ctx, member, text, st)
		return d, st, err

	case FlowBookingStatus:
		st := &StatusState{}
		d, err := s.status.Advance(ctx, member, text, st)
		if err != nil {
			return nil, nil, err
		}
		if lookup, ok := d.(Lookup); ok {
			candidates, err := s.resolveCandidates(ctx, member, lookup.Criteria)
			if err != nil {
				return nil, nil, err
			}
			d = s.status.ResolveLookup(candidates)
		}
		return d, st, nil

	case FlowCancelBooking:
		st := &CancelState{}
		if err := decode(st); err != nil {
			return nil, nil, err
		}
		d, err := s.cancel.Advance(ctx, member, text, st)
		if err != nil {
			return nil, nil, err
		}
		if lookup, ok := d.(Lookup); ok {
			candidates, err := s.resolveCandidates(ctx, member, lookup.Criteria)
			if err != nil {
				return nil, nil, err
			}
			d = s.cancel.ResolveLookup(st, candidates)
		}
		return d, st, nil

	case FlowModifyBooking:
		st := &ModifyState{}
		if err := decode(st); err != nil {
			return nil, nil, err
		}
		d, err := s.modify.Advance(ctx, member, text, st)
		if err != nil {
			return nil, nil, err
		}
		if lookup, ok := d.(Lookup); ok {
			candidates, err := s.resolveCandidates(ctx, member, lookup.Criteria)
			if err != nil {
				return nil, nil, err
			}
			d = s.modify.ResolveLookup(st, candidates)
		}
		return d, st, nil

	case FlowOnboarding:
		st := &OnboardingState{}
		if err := decode(st); err != nil {
			return nil, nil, err
		}
		d, err := s.onboarding.Advance(ctx, member, text, st)
		return d, st, err

	case FlowSupport:
		st := &SupportState{}
		if err := decode(st); err != nil {
			return nil, nil, err
		}
		d, err := s.support.Advance(ctx, member, text, st)
		return d, st, err
	}
	return nil, nil, fmt.Errorf("unknown flow %q", flow)
}

// resolveCandidates turns lookup criteria into stored bookings. Empty
// criteria mean "my bookings" and resolve to the member's upcoming ones.
func (s *Service) resolveCandidates(ctx context.Context, member members.Member, criteria bookings.LookupCriteria) ([]bookings.Booking, error) {
	if criteria.Reference == "" && criteria.Date == nil && criteria.VenueName == "" {
		return s.finder.ListUpcoming(ctx, member.ID, s.now())
	}
	return s.finder.Find(ctx, member.ID, criteria)
}
