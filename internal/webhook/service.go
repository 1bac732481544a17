package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/conversation"
	"caddie_backend/internal/members"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
	"caddie_backend/platform/sanitize"
)

// apology is sent whenever processing fails after the boundary checks.
// The transport always receives a well-formed reply, never an error.
const apology = "Sorry, something went wrong on our side. Please try again in a moment."

// memberResolver resolves or creates members by contact handle.
type memberResolver interface {
	ResolveOrCreate(ctx context.Context, rawHandle, profileName string) (members.Resolution, error)
}

// conversationHandler runs one conversation turn.
type conversationHandler interface {
	HandleMessage(ctx context.Context, member members.Member, text string) (conversation.Reply, error)
}

// inboundLog is the slice of the repository the pipeline writes through:
// dedup claims, debounce reads, and the message transcript.
type inboundLog interface {
	ClaimDedup(ctx context.Context, memberID uuid.UUID, contentHash string, now time.Time, window time.Duration) (bool, error)
	LastInboundAt(ctx context.Context, memberID uuid.UUID) (*time.Time, error)
	LogMessage(ctx context.Context, entry MessageLog, at time.Time) error
	RecordDeliveryStatus(ctx context.Context, providerMessageID, status string) error
}

// Inbound is one parsed webhook delivery.
type Inbound struct {
	From              string
	Body              string
	ProviderMessageID string
	ProfileName       string
}

// Service runs the ingestion pipeline: member resolution, dedup, debounce,
// redacted logging, per-member serialization, and conversation dispatch.
type Service struct {
	repo    inboundLog
	members memberResolver
	conv    conversationHandler
	cfg     config.WebhookConfig
	log     *logger.Logger
	locks   *memberLocks
	now     func() time.Time
}

// NewService wires the ingestion pipeline.
func NewService(repo inboundLog, resolver memberResolver, conv conversationHandler, cfg config.WebhookConfig, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		members: resolver,
		conv:    conv,
		cfg:     cfg,
		log:     log,
		locks:   newMemberLocks(),
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Process handles one delivery and returns the reply text. An empty reply
// means the delivery was suppressed (duplicate or debounced) and the
// transport gets an empty acknowledgement. Any panic or error downstream
// of the boundary degrades to the apology text, never to a failed ack.
func (s *Service) Process(ctx context.Context, msg Inbound) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic processing inbound message", "panic", r)
			reply = apology
		}
	}()

	text, err := s.process(ctx, msg)
	if err != nil {
		s.log.Error("inbound message processing failed", "error", err.Error())
		return apology
	}
	return text
}

func (s *Service) process(ctx context.Context, msg Inbound) (string, error) {
	resolution, err := s.members.ResolveOrCreate(ctx, msg.From, msg.ProfileName)
	if err != nil {
		return "", err
	}
	member := resolution.Member
	now := s.now()

	hash := contentHash(msg.Body)
	if window := s.cfg.GetDedupWindow(); window > 0 {
		fresh, err := s.repo.ClaimDedup(ctx, member.ID, hash, now, window)
		if err != nil {
			return "", err
		}
		if !fresh {
			s.log.InboundMessage(member.ID.String(), msg.ProviderMessageID, true)
			return "", nil
		}
	}

	if window := s.cfg.GetDebounceWindow(); window > 0 {
		last, err := s.repo.LastInboundAt(ctx, member.ID)
		if err != nil {
			return "", err
		}
		if last != nil && now.Sub(*last) < window {
			// Logged for audit, but the flow never sees it.
			if err := s.logInbound(ctx, member.ID, msg, now); err != nil {
				return "", err
			}
			s.log.InboundMessage(member.ID.String(), msg.ProviderMessageID, true)
			return "", nil
		}
	}

	// The inbound message is on record before any flow work, so state is
	// recoverable if downstream processing fails.
	if err := s.logInbound(ctx, member.ID, msg, now); err != nil {
		return "", err
	}
	s.log.InboundMessage(member.ID.String(), msg.ProviderMessageID, false)

	// Two concurrent deliveries for one member must not race the flow
	// state read-modify-write.
	unlock := s.locks.lock(member.ID)
	defer unlock()

	turn, err := s.conv.HandleMessage(ctx, member, msg.Body)
	if err != nil {
		return "", err
	}

	if err := s.repo.LogMessage(ctx, MessageLog{
		MemberID:  member.ID,
		Direction: DirectionOutbound,
		Body:      sanitize.RedactText(turn.Text),
		Flow:      string(turn.Flow),
		Decision:  turn.Decision,
	}, s.now()); err != nil {
		s.log.DatabaseError("log_outbound_message", err)
	}
	return turn.Text, nil
}

func (s *Service) logInbound(ctx context.Context, memberID uuid.UUID, msg Inbound, at time.Time) error {
	return s.repo.LogMessage(ctx, MessageLog{
		MemberID:          memberID,
		Direction:         DirectionInbound,
		Body:              sanitize.RedactText(msg.Body),
		ProviderMessageID: msg.ProviderMessageID,
	}, at)
}

// DeliveryStatus records a provider-side status callback. Failures are
// logged, never surfaced; the callback must not block the provider.
func (s *Service) DeliveryStatus(ctx context.Context, providerMessageID, status string) {
	if providerMessageID == "" || status == "" {
		return
	}
	if err := s.repo.RecordDeliveryStatus(ctx, providerMessageID, status); err != nil {
		s.log.DatabaseError("record_delivery_status", err)
	}
	s.log.Info("delivery_status", "provider_message_id", providerMessageID, "status", status)
}

func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
