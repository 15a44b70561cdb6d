package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

func insertAt(t *testing.T, w *world, conv messaging.Conversation, id messaging.Identity, body string, at time.Time) messaging.Message {
	t.Helper()
	m, err := w.repo.InsertMessage(context.Background(), messaging.Message{
		ConversationID: conv.ID,
		Sender:         id.Sender(),
		Type:           messaging.MessageText,
		Body:           body,
		CreatedAt:      at,
	}, id)
	require.NoError(t, err)
	return m
}

func TestFetchMessages_AscendingRegardlessOfInsertOrder(t *testing.T) {
	w := newWorld(t)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	insertAt(t, w, w.internal, w.driver, "third", base.Add(3*time.Minute))
	insertAt(t, w, w.internal, w.dispatcher, "first", base.Add(1*time.Minute))
	insertAt(t, w, w.internal, w.driver, "second", base.Add(2*time.Minute))

	page, err := NewFetchMessagesUseCase(w.repo, zerolog.Nop()).Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.dispatcher})
	require.NoError(t, err)

	require.Len(t, page.Messages, 3)
	assert.False(t, page.HasMore)
	for i := 1; i < len(page.Messages); i++ {
		assert.False(t, page.Messages[i].CreatedAt.Before(page.Messages[i-1].CreatedAt))
	}
	assert.Equal(t, "first", page.Messages[0].Body)
	assert.Equal(t, "Dana Dispatch", page.Messages[0].SenderProfile.Name)
	assert.Equal(t, "Dee River", page.Messages[1].SenderProfile.Name)
	assert.Equal(t, messaging.SenderDriver, page.Messages[1].SenderProfile.Kind)
}

func TestFetchMessages_PagingAndHasMore(t *testing.T) {
	w := newWorld(t)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertAt(t, w, w.internal, w.dispatcher, fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	uc := NewFetchMessagesUseCase(w.repo, zerolog.Nop())

	page, err := uc.Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "m3", page.Messages[0].Body)
	assert.Equal(t, "m4", page.Messages[1].Body)
	require.NotNil(t, page.NextBefore)
	assert.True(t, page.NextBefore.Equal(page.Messages[0].CreatedAt))

	before := page.Messages[0].CreatedAt
	older, err := uc.Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver, Limit: 10, Before: &before})
	require.NoError(t, err)
	assert.False(t, older.HasMore)
	require.Len(t, older.Messages, 3)
	assert.Equal(t, "m0", older.Messages[0].Body)
}

func TestFetchMessages_PagingAcrossSharedTimestamp(t *testing.T) {
	w := newWorld(t)
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		m := insertAt(t, w, w.internal, w.dispatcher, fmt.Sprintf("m%d", i), at)
		want[m.ID] = true
	}
	uc := NewFetchMessagesUseCase(w.repo, zerolog.Nop())

	seen := map[string]bool{}
	in := FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver, Limit: 2}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5)
		page, err := uc.Execute(context.Background(), in)
		require.NoError(t, err)
		for _, m := range page.Messages {
			assert.False(t, seen[m.ID], "message %s returned twice", m.ID)
			seen[m.ID] = true
		}
		if !page.HasMore {
			assert.Nil(t, page.NextBefore)
			break
		}
		require.NotNil(t, page.NextBefore)
		assert.Equal(t, page.Messages[0].ID, page.NextBeforeID)
		in.Before, in.BeforeID = page.NextBefore, page.NextBeforeID
	}
	assert.Equal(t, want, seen)
}

func TestFetchMessages_ResolvesUsersInOneBatch(t *testing.T) {
	w := newWorld(t)
	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		insertAt(t, w, w.internal, w.dispatcher, "x", base.Add(time.Duration(i)*time.Second))
	}
	before := w.repo.ProfileLookups

	_, err := NewFetchMessagesUseCase(w.repo, zerolog.Nop()).Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver})
	require.NoError(t, err)
	assert.Equal(t, before+1, w.repo.ProfileLookups)
}

func TestFetchMessages_ResetsUnread(t *testing.T) {
	w := newWorld(t)
	w.send(t, w.internal, w.dispatcher, "one")
	w.send(t, w.internal, w.driver, "two")
	require.Equal(t, 1, w.participant(t, w.internal.ID, w.driver).UnreadCount)
	require.Equal(t, 1, w.participant(t, w.internal.ID, w.dispatcher).UnreadCount)

	for _, id := range []messaging.Identity{w.driver, w.dispatcher} {
		called := time.Now().UTC()
		_, err := NewFetchMessagesUseCase(w.repo, zerolog.Nop()).Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: id})
		require.NoError(t, err)

		p := w.participant(t, w.internal.ID, id)
		assert.Equal(t, 0, p.UnreadCount, id.Key())
		require.NotNil(t, p.LastReadAt)
		assert.False(t, p.LastReadAt.Before(called), id.Key())
	}
}

func TestFetchMessages_MarkReadFailureIsSwallowed(t *testing.T) {
	w := newWorld(t)
	w.send(t, w.internal, w.dispatcher, "one")
	w.repo.FailOn(memory.OpMarkRead, errBoom)

	page, err := NewFetchMessagesUseCase(w.repo, zerolog.Nop()).Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
	assert.Equal(t, 1, w.participant(t, w.internal.ID, w.driver).UnreadCount)
}

func TestFetchMessages_DeniedAndStorageErrors(t *testing.T) {
	w := newWorld(t)
	uc := NewFetchMessagesUseCase(w.repo, zerolog.Nop())

	_, err := uc.Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.partner})
	assert.ErrorIs(t, err, messaging.ErrAccessDenied)

	w.repo.FailOn(memory.OpListMessages, errBoom)
	_, err = uc.Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestFetchMessages_SkipsDeletedAndFallsBackToUnknown(t *testing.T) {
	w := newWorld(t)
	ghost := messaging.UserIdentity("u-ghost", carrierCo)
	// company members may write into internal chats without a row
	insertAt(t, w, w.internal, ghost, "boo", time.Now().UTC())
	gone := w.send(t, w.internal, w.dispatcher, "gone")
	require.NoError(t, NewDeleteMessageUseCase(w.repo).Execute(context.Background(), DeleteMessageInput{MessageID: gone.ID, Identity: w.dispatcher}))

	page, err := NewFetchMessagesUseCase(w.repo, zerolog.Nop()).Execute(context.Background(), FetchMessagesInput{ConversationID: w.internal.ID, Identity: w.driver})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "Unknown", page.Messages[0].SenderProfile.Name)
}
