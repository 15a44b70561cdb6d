package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// ConversationResult is a conversation with the caller's participant row.
type ConversationResult struct {
	Conversation messaging.Conversation `json:"conversation"`
	Participant  messaging.Participant  `json:"participant"`
	Created      bool                   `json:"created"`
}

type GetOrCreateLoadConversationInput struct {
	Identity messaging.Identity
	LoadID   string
	Type     messaging.ConversationType
}

// GetOrCreateLoadConversationUseCase returns the shared or internal chat of a
// load, creating it on first access, and makes sure the caller holds a
// participant row. The shared chat belongs to the load's company and names
// the partner company; the internal chat belongs to the caller's company.
type GetOrCreateLoadConversationUseCase struct {
	Repo repository.MessagingRepository
}

func NewGetOrCreateLoadConversationUseCase(repo repository.MessagingRepository) *GetOrCreateLoadConversationUseCase {
	return &GetOrCreateLoadConversationUseCase{Repo: repo}
}

func (uc *GetOrCreateLoadConversationUseCase) Execute(ctx context.Context, in GetOrCreateLoadConversationInput) (*ConversationResult, error) {
	if in.LoadID == "" || !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: load_id and identity are required", ErrInvalidInput)
	}
	if !in.Type.IsLoadScoped() {
		return nil, fmt.Errorf("%w: %q is not a load conversation type", ErrInvalidInput, in.Type)
	}

	load, err := uc.Repo.LoadByID(ctx, in.LoadID)
	if err != nil {
		if errors.Is(err, messaging.ErrLoadNotFound) {
			return nil, messaging.ErrLoadNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	partner := load.PartnerCompanyID != nil && *load.PartnerCompanyID == in.Identity.CompanyID
	if in.Identity.CompanyID != load.CompanyID && !partner {
		return nil, messaging.ErrAccessDenied
	}

	want := messaging.Conversation{Type: in.Type, LoadID: &load.ID}
	switch in.Type {
	case messaging.ConversationLoadShared:
		want.CompanyID = load.CompanyID
		want.PartnerCompanyID = load.PartnerCompanyID
	default:
		want.CompanyID = in.Identity.CompanyID
	}
	if want.CompanyID == "" {
		return nil, messaging.ErrAccessDenied
	}

	return getOrCreate(ctx, uc.Repo, want, in.Identity)
}

// getOrCreate finds the conversation matching want's owner, type and primary
// reference, creates it when missing, and ensures the caller's participant
// row and any extra rows. Any write failing fails the whole call; a retry
// finds the conversation and fills in the missing rows.
func getOrCreate(ctx context.Context, repo repository.MessagingRepository, want messaging.Conversation, id messaging.Identity, extra ...messaging.Participant) (*ConversationResult, error) {
	conv, err := repo.FindConversation(ctx, repository.ConversationLookup{
		CompanyID: want.CompanyID,
		Type:      want.Type,
		LoadID:    want.LoadID,
		TripID:    want.TripID,
		DriverID:  want.DriverID,
	})
	created := false
	switch {
	case err == nil:
	case errors.Is(err, messaging.ErrConversationNotFound):
		c, err := repo.CreateConversation(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("%w: create conversation: %v", ErrPersistence, err)
		}
		conv = &c
		created = true
	default:
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p, err := repo.EnsureParticipant(ctx, messaging.DefaultParticipant(*conv, id))
	if err != nil {
		return nil, fmt.Errorf("%w: add participant: %v", ErrPersistence, err)
	}
	for _, e := range extra {
		e.ConversationID = conv.ID
		if _, err := repo.EnsureParticipant(ctx, e); err != nil {
			return nil, fmt.Errorf("%w: add participant: %v", ErrPersistence, err)
		}
	}
	return &ConversationResult{Conversation: *conv, Participant: p, Created: created}, nil
}
