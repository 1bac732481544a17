package members

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"caddie_backend/platform/apperr"
	"caddie_backend/platform/logger"
	"caddie_backend/platform/phone"
)

// memberStore is the slice of the repository the service drives.
type memberStore interface {
	GetByPhone(ctx context.Context, phone string) (Member, error)
	Create(ctx context.Context, phone, displayName string) (Member, error)
	CompleteOnboarding(ctx context.Context, id uuid.UUID, displayName, timezone string) error
	GetPreferences(ctx context.Context, id uuid.UUID) (Preferences, error)
}

// Service resolves inbound contact handles to members.
type Service struct {
	repo memberStore
	log  *logger.Logger
}

// NewService creates the members service.
func NewService(repo memberStore, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Resolution reports whether the member was created by this call, so the
// router can apply the new-member onboarding override.
type Resolution struct {
	Member  Member
	Created bool
}

// ResolveOrCreate finds the member for the given contact handle, creating
// one on first inbound contact.
func (s *Service) ResolveOrCreate(ctx context.Context, rawHandle, profileName string) (Resolution, error) {
	normalized := phone.NormalizeE164(rawHandle)
	if normalized == "" {
		return Resolution{}, apperr.BadRequest("missing sender handle")
	}

	member, err := s.repo.GetByPhone(ctx, normalized)
	if err == nil {
		return Resolution{Member: member}, nil
	}
	if apperr.GetKind(err) != apperr.KindNotFound {
		return Resolution{}, err
	}

	// No transport profile name means no name: the member introduces
	// themselves during onboarding. Their number is not a name.
	name := strings.TrimSpace(profileName)

	created, err := s.repo.Create(ctx, normalized, name)
	if err != nil {
		return Resolution{}, err
	}
	s.log.Info("member created on first contact", "member_id", created.ID)
	return Resolution{Member: created, Created: true}, nil
}

// CompleteOnboarding finalizes the onboarding flow for a member.
func (s *Service) CompleteOnboarding(ctx context.Context, m Member, displayName, timezone string) error {
	if strings.TrimSpace(displayName) == "" {
		displayName = m.DisplayName
	}
	if strings.TrimSpace(timezone) == "" {
		timezone = m.Timezone
	}
	return s.repo.CompleteOnboarding(ctx, m.ID, displayName, timezone)
}

// Preferences returns the member's historical booking defaults.
func (s *Service) Preferences(ctx context.Context, m Member) (Preferences, error) {
	return s.repo.GetPreferences(ctx, m.ID)
}
