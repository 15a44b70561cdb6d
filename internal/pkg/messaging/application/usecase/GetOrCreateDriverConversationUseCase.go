package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type GetOrCreateDriverConversationInput struct {
	Identity messaging.Identity
	DriverID string
}

// GetOrCreateDriverConversationUseCase returns the 1:1 dispatch conversation
// between a driver and their company. Only the driver and users of the
// driver's company may open it. On creation the driver gets a participant row
// as well, so their unread counter starts with the first message.
type GetOrCreateDriverConversationUseCase struct {
	Repo repository.MessagingRepository
}

func NewGetOrCreateDriverConversationUseCase(repo repository.MessagingRepository) *GetOrCreateDriverConversationUseCase {
	return &GetOrCreateDriverConversationUseCase{Repo: repo}
}

func (uc *GetOrCreateDriverConversationUseCase) Execute(ctx context.Context, in GetOrCreateDriverConversationInput) (*ConversationResult, error) {
	if !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	driverID := in.DriverID
	if driverID == "" && in.Identity.IsDriver() {
		driverID = in.Identity.ID
	}
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver_id is required", ErrInvalidInput)
	}

	driver, err := uc.Repo.DriverByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, messaging.ErrDriverNotFound) {
			return nil, messaging.ErrDriverNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	switch {
	case in.Identity.IsDriver() && in.Identity.ID != driver.ID:
		return nil, messaging.ErrAccessDenied
	case in.Identity.IsUser() && in.Identity.CompanyID != driver.CompanyID:
		return nil, messaging.ErrAccessDenied
	}

	want := messaging.Conversation{
		Type:      messaging.ConversationDriverDispatch,
		CompanyID: driver.CompanyID,
		DriverID:  &driver.ID,
	}
	var extra []messaging.Participant
	if in.Identity.IsUser() {
		extra = append(extra, messaging.ProvisionedParticipant(want, *driver))
	}
	return getOrCreate(ctx, uc.Repo, want, in.Identity, extra...)
}
