package usecase

import (
	"context"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type TotalUnreadInput struct {
	Identity messaging.Identity
}

// TotalUnreadUseCase sums unread_count over every readable participant row of
// the identity. It always recomputes from storage.
type TotalUnreadUseCase struct {
	Repo repository.ParticipantRepository
}

func NewTotalUnreadUseCase(repo repository.ParticipantRepository) *TotalUnreadUseCase {
	return &TotalUnreadUseCase{Repo: repo}
}

func (uc *TotalUnreadUseCase) Execute(ctx context.Context, in TotalUnreadInput) (int, error) {
	if !in.Identity.Valid() {
		return 0, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	n, err := uc.Repo.SumUnread(ctx, in.Identity)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}
