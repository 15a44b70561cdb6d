package usecase

import (
	"context"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type ListConversationsInput struct {
	Identity messaging.Identity
	Filter   messaging.ConversationFilter
}

// ListConversationsUseCase lists the conversations an identity may read, with
// display title/subtitle and the caller's unread count, most recent first.
type ListConversationsUseCase struct {
	Repo repository.ConversationRepository
}

func NewListConversationsUseCase(repo repository.ConversationRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]messaging.ConversationListItem, error) {
	if !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	if in.Filter.Type != nil && !in.Filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrInvalidInput, *in.Filter.Type)
	}

	recs, err := uc.Repo.ListVisible(ctx, in.Identity, in.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	viewer := messaging.ViewerFor(in.Identity)
	items := make([]messaging.ConversationListItem, 0, len(recs))
	for _, rec := range recs {
		if !in.Filter.Matches(rec.Conversation) {
			continue
		}
		item := messaging.ConversationListItem{
			Conversation: rec.Conversation,
			Title:        messaging.DisplayTitle(rec, viewer),
			Subtitle:     messaging.DisplaySubtitle(rec, viewer),
		}
		if rec.Participant != nil {
			item.UnreadCount = rec.Participant.UnreadCount
			item.CanWrite = rec.Participant.Access().CanWrite
		} else if messaging.OnMissingParticipant(rec.Conversation, in.Identity) == messaging.Provision {
			item.CanWrite = true
		}
		items = append(items, item)
	}
	messaging.SortConversations(items)
	return items, nil
}
