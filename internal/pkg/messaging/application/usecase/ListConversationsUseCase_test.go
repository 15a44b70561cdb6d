package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

func TestListConversations_TypeFilterAndOrdering(t *testing.T) {
	w := newWorld(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	trip := func(id, number string, last *time.Time, created time.Time) messaging.Conversation {
		w.repo.AddTrip(messaging.TripRef{ID: id, TripNumber: number, Driver: &messaging.DriverRef{FirstName: "Dee", LastName: "River"}})
		tid := id
		c := w.repo.PutConversation(messaging.Conversation{Type: messaging.ConversationTripInternal, CompanyID: carrierCo, TripID: &tid, LastMessageAt: last, CreatedAt: created})
		w.join(c, w.dispatcher, true)
		return c
	}
	at := func(d time.Duration) *time.Time { v := base.Add(d); return &v }

	quiet := trip("t-quiet", "T-1", nil, base.Add(48*time.Hour))
	older := trip("t-older", "T-2", at(time.Hour), base)
	newer := trip("t-newer", "T-3", at(2*time.Hour), base)

	tt := messaging.ConversationTripInternal
	items, err := NewListConversationsUseCase(w.repo).Execute(context.Background(), ListConversationsInput{
		Identity: w.dispatcher,
		Filter:   messaging.ConversationFilter{Type: &tt},
	})
	require.NoError(t, err)

	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, messaging.ConversationTripInternal, it.Type)
	}
	assert.Equal(t, []string{newer.ID, older.ID, quiet.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "Trip T-3", items[0].Title)
	assert.Equal(t, "Dee River", items[0].Subtitle)
}

func TestListConversations_VisibilityAndDisplay(t *testing.T) {
	w := newWorld(t)
	w.send(t, w.shared, w.dispatcher, "hi partner")

	items, err := NewListConversationsUseCase(w.repo).Execute(context.Background(), ListConversationsInput{Identity: w.partner})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, w.shared.ID, items[0].ID)
	assert.Equal(t, "Shared - LD-100", items[0].Title)
	assert.Equal(t, "Broker Co", items[0].Subtitle)
	assert.Equal(t, 1, items[0].UnreadCount)
	assert.True(t, items[0].CanWrite)

	items, err = NewListConversationsUseCase(w.repo).Execute(context.Background(), ListConversationsInput{Identity: w.driver})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.ID == w.shared.ID {
			assert.False(t, it.CanWrite)
		} else {
			assert.Equal(t, "Team Chat", it.Subtitle)
			assert.True(t, it.CanWrite)
		}
	}
}

func TestListConversations_DriverSeesOwnDispatchWithoutRow(t *testing.T) {
	w := newWorld(t)
	did := w.driver.ID
	dispatch := w.repo.PutConversation(messaging.Conversation{Type: messaging.ConversationDriverDispatch, CompanyID: carrierCo, DriverID: &did})

	dt := messaging.ConversationDriverDispatch
	items, err := NewListConversationsUseCase(w.repo).Execute(context.Background(), ListConversationsInput{
		Identity: w.driver,
		Filter:   messaging.ConversationFilter{Type: &dt},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, dispatch.ID, items[0].ID)
	assert.Equal(t, "Dispatch", items[0].Title)
	assert.True(t, items[0].CanWrite)
}

func TestListConversations_ArchivedHiddenByDefault(t *testing.T) {
	w := newWorld(t)
	archived := w.repo.PutConversation(messaging.Conversation{Type: messaging.ConversationGeneral, CompanyID: carrierCo, IsArchived: true})
	w.join(archived, w.dispatcher, true)
	uc := NewListConversationsUseCase(w.repo)

	items, err := uc.Execute(context.Background(), ListConversationsInput{Identity: w.dispatcher})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = uc.Execute(context.Background(), ListConversationsInput{Identity: w.dispatcher, Filter: messaging.ConversationFilter{IncludeArchived: true}})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestListConversations_Errors(t *testing.T) {
	w := newWorld(t)
	uc := NewListConversationsUseCase(w.repo)

	bad := messaging.ConversationType("bogus")
	_, err := uc.Execute(context.Background(), ListConversationsInput{Identity: w.dispatcher, Filter: messaging.ConversationFilter{Type: &bad}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	w.repo.FailOn(memory.OpListVisible, errBoom)
	_, err = uc.Execute(context.Background(), ListConversationsInput{Identity: w.dispatcher})
	assert.ErrorIs(t, err, ErrPersistence)
}
