package usecase

import (
	"context"
	"fmt"
	"time"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type MarkAsReadInput struct {
	ConversationID string
	Identity       messaging.Identity
}

// MarkAsReadUseCase zeroes the caller's unread counter. Drivers update their
// participant row; users go through the mark_conversation_read procedure.
// Calling it with no participant row, or twice, is not an error.
type MarkAsReadUseCase struct {
	Repo repository.ParticipantRepository
}

func NewMarkAsReadUseCase(repo repository.ParticipantRepository) *MarkAsReadUseCase {
	return &MarkAsReadUseCase{Repo: repo}
}

func (uc *MarkAsReadUseCase) Execute(ctx context.Context, in MarkAsReadInput) error {
	if in.ConversationID == "" || !in.Identity.Valid() {
		return fmt.Errorf("%w: conversation_id and identity are required", ErrInvalidInput)
	}

	var err error
	if in.Identity.IsDriver() {
		err = uc.Repo.MarkRead(ctx, in.ConversationID, in.Identity, time.Now().UTC())
	} else {
		err = uc.Repo.MarkConversationRead(ctx, in.ConversationID, in.Identity.ID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
