package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// FetchMessagesInput selects one page of a conversation. Before and BeforeID
// form an exclusive cursor for older pages; a page with HasMore carries the
// cursor of its oldest message.
type FetchMessagesInput struct {
	ConversationID string
	Identity       messaging.Identity
	Limit          int
	Before         *time.Time
	BeforeID       string
}

// FetchMessagesUseCase reads one page of messages, oldest first, and marks the
// conversation read for the caller.
type FetchMessagesUseCase struct {
	Repo   repository.MessagingRepository
	Access *ResolveAccessUseCase
	Read   *MarkAsReadUseCase
	Log    zerolog.Logger
}

func NewFetchMessagesUseCase(repo repository.MessagingRepository, log zerolog.Logger) *FetchMessagesUseCase {
	return &FetchMessagesUseCase{
		Repo:   repo,
		Access: NewResolveAccessUseCase(repo),
		Read:   NewMarkAsReadUseCase(repo),
		Log:    log,
	}
}

func (uc *FetchMessagesUseCase) Execute(ctx context.Context, in FetchMessagesInput) (*messaging.MessagePage, error) {
	res, err := uc.Access.Execute(ctx, ResolveAccessInput{ConversationID: in.ConversationID, Identity: in.Identity})
	if err != nil {
		return nil, err
	}
	if !res.Access.CanRead {
		return nil, messaging.ErrAccessDenied
	}

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	recs, err := uc.Repo.ListMessages(ctx, repository.ListMessagesQuery{
		ConversationID: in.ConversationID,
		Before:         in.Before,
		BeforeID:       in.BeforeID,
		Limit:          limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}

	views, err := resolveSenders(ctx, uc.Repo, recs)
	if err != nil {
		return nil, err
	}
	messaging.SortMessages(views)

	if err := uc.Read.Execute(ctx, MarkAsReadInput{ConversationID: in.ConversationID, Identity: in.Identity}); err != nil {
		uc.Log.Warn().Err(err).
			Str("conversation_id", in.ConversationID).
			Str("identity", in.Identity.Key()).
			Msg("messaging: mark read after fetch")
	}

	page := &messaging.MessagePage{Messages: views, HasMore: hasMore}
	if hasMore && len(views) > 0 {
		oldest := views[0]
		page.NextBefore = &oldest.CreatedAt
		page.NextBeforeID = oldest.ID
	}
	return page, nil
}
