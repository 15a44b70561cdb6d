package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type EditMessageInput struct {
	MessageID string
	Identity  messaging.Identity
	Body      string
}

// EditMessageUseCase replaces the body of a message. Only its sender may edit,
// and the edit is stamped with is_edited/edited_at.
type EditMessageUseCase struct {
	Repo repository.MessagingRepository
	Get  *GetMessageUseCase
}

func NewEditMessageUseCase(repo repository.MessagingRepository) *EditMessageUseCase {
	return &EditMessageUseCase{Repo: repo, Get: NewGetMessageUseCase(repo)}
}

func (uc *EditMessageUseCase) Execute(ctx context.Context, in EditMessageInput) (*messaging.MessageView, error) {
	if in.MessageID == "" || !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: message_id and identity are required", ErrInvalidInput)
	}
	body := strings.TrimSpace(in.Body)

	rec, err := ownMessage(ctx, uc.Repo, in.MessageID, in.Identity)
	if err != nil {
		return nil, err
	}
	if body == "" && len(rec.Attachments) == 0 {
		return nil, messaging.ErrEmptyMessage
	}

	if err := uc.Repo.EditMessage(ctx, rec.ID, body, time.Now().UTC()); err != nil {
		if errors.Is(err, messaging.ErrMessageNotFound) {
			return nil, messaging.ErrMessageNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return uc.Get.Execute(ctx, GetMessageInput{MessageID: rec.ID, Identity: in.Identity})
}

// ownMessage loads a live message and checks that id authored it.
func ownMessage(ctx context.Context, repo repository.MessageRepository, messageID string, id messaging.Identity) (*messaging.MessageRecord, error) {
	rec, err := repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, messaging.ErrMessageNotFound) {
			return nil, messaging.ErrMessageNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if rec.IsDeleted {
		return nil, messaging.ErrMessageNotFound
	}
	if !rec.Sender.Is(id) {
		return nil, messaging.ErrNotSender
	}
	return rec, nil
}
