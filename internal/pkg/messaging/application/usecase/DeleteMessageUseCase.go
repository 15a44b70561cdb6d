package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type DeleteMessageInput struct {
	MessageID string
	Identity  messaging.Identity
}

// DeleteMessageUseCase soft-deletes a message. The row stays for audit and is
// excluded from every read afterwards.
type DeleteMessageUseCase struct {
	Repo repository.MessageRepository
}

func NewDeleteMessageUseCase(repo repository.MessageRepository) *DeleteMessageUseCase {
	return &DeleteMessageUseCase{Repo: repo}
}

func (uc *DeleteMessageUseCase) Execute(ctx context.Context, in DeleteMessageInput) error {
	if in.MessageID == "" || !in.Identity.Valid() {
		return fmt.Errorf("%w: message_id and identity are required", ErrInvalidInput)
	}
	rec, err := ownMessage(ctx, uc.Repo, in.MessageID, in.Identity)
	if err != nil {
		return err
	}
	if err := uc.Repo.SoftDeleteMessage(ctx, rec.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, messaging.ErrMessageNotFound) {
			return messaging.ErrMessageNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
