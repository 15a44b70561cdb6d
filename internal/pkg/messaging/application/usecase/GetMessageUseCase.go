package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// GetMessageInput identifies a message to retrieve on behalf of an identity.
type GetMessageInput struct {
	MessageID string
	Identity  messaging.Identity
}

// GetMessageUseCase loads one message with its sender resolved. The live
// stream uses it to turn a change event into a displayable message.
type GetMessageUseCase struct {
	Repo   repository.MessagingRepository
	Access *ResolveAccessUseCase
}

func NewGetMessageUseCase(repo repository.MessagingRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo, Access: NewResolveAccessUseCase(repo)}
}

func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) (*messaging.MessageView, error) {
	if in.MessageID == "" || !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: message_id and identity are required", ErrInvalidInput)
	}

	rec, err := uc.Repo.GetMessage(ctx, in.MessageID)
	if err != nil {
		if errors.Is(err, messaging.ErrMessageNotFound) {
			return nil, messaging.ErrMessageNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if rec.IsDeleted {
		return nil, messaging.ErrMessageNotFound
	}

	res, err := uc.Access.Execute(ctx, ResolveAccessInput{ConversationID: rec.ConversationID, Identity: in.Identity})
	if err != nil {
		return nil, err
	}
	if !res.Access.CanRead {
		return nil, messaging.ErrAccessDenied
	}

	views, err := resolveSenders(ctx, uc.Repo, []messaging.MessageRecord{*rec})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
