package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type MuteConversationInput struct {
	ConversationID string
	Identity       messaging.Identity
	Muted          bool
}

// MuteConversationUseCase toggles is_muted on the caller's participant row.
// Muted participants are skipped when notifications fan out.
type MuteConversationUseCase struct {
	Repo repository.ParticipantRepository
}

func NewMuteConversationUseCase(repo repository.ParticipantRepository) *MuteConversationUseCase {
	return &MuteConversationUseCase{Repo: repo}
}

func (uc *MuteConversationUseCase) Execute(ctx context.Context, in MuteConversationInput) error {
	if in.ConversationID == "" || !in.Identity.Valid() {
		return fmt.Errorf("%w: conversation_id and identity are required", ErrInvalidInput)
	}
	err := uc.Repo.SetMuted(ctx, in.ConversationID, in.Identity, in.Muted)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, messaging.ErrAccessDenied):
		return messaging.ErrAccessDenied
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
