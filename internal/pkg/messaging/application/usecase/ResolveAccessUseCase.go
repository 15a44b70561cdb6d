package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// ResolveAccessInput names the conversation and the identity asking for it.
type ResolveAccessInput struct {
	ConversationID string
	Identity       messaging.Identity
}

// AccessResult is the resolved capability pair together with the conversation
// it applies to and the caller's participant row, if any.
type AccessResult struct {
	Conversation messaging.Conversation
	Participant  *messaging.Participant
	Access       messaging.Access
}

// ResolveAccessUseCase answers {can_read, can_write} for an identity on a
// conversation. A missing participant row is resolved through
// messaging.OnMissingParticipant; only a driver's own dispatch thread is
// provisioned, everything else yields no capabilities.
type ResolveAccessUseCase struct {
	Repo repository.MessagingRepository
}

func NewResolveAccessUseCase(repo repository.MessagingRepository) *ResolveAccessUseCase {
	return &ResolveAccessUseCase{Repo: repo}
}

func (uc *ResolveAccessUseCase) Execute(ctx context.Context, in ResolveAccessInput) (*AccessResult, error) {
	if in.ConversationID == "" || !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: conversation_id and identity are required", ErrInvalidInput)
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, messaging.ErrConversationNotFound) {
			return nil, messaging.ErrConversationNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p, err := uc.Repo.GetParticipant(ctx, conv.ID, in.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if p != nil {
		return &AccessResult{Conversation: *conv, Participant: p, Access: p.Access()}, nil
	}

	switch messaging.OnMissingParticipant(*conv, in.Identity) {
	case messaging.Provision:
		row, err := uc.Repo.EnsureParticipant(ctx, messaging.ProvisionedParticipant(*conv, in.Identity))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		access := row.Access()
		access.Provisioned = true
		return &AccessResult{Conversation: *conv, Participant: &row, Access: access}, nil
	default:
		return &AccessResult{Conversation: *conv}, nil
	}
}
