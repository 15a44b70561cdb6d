package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

func TestGetMessage(t *testing.T) {
	w := newWorld(t)
	m := w.send(t, w.internal, w.driver, "on my way")
	uc := NewGetMessageUseCase(w.repo)

	v, err := uc.Execute(context.Background(), GetMessageInput{MessageID: m.ID, Identity: w.dispatcher})
	require.NoError(t, err)
	assert.Equal(t, "on my way", v.Body)
	assert.Equal(t, "Dee River", v.SenderProfile.Name)

	_, err = uc.Execute(context.Background(), GetMessageInput{MessageID: m.ID, Identity: w.partner})
	assert.ErrorIs(t, err, messaging.ErrAccessDenied)

	_, err = uc.Execute(context.Background(), GetMessageInput{MessageID: "nope", Identity: w.dispatcher})
	assert.ErrorIs(t, err, messaging.ErrMessageNotFound)
}

func TestEditMessage(t *testing.T) {
	w := newWorld(t)
	m := w.send(t, w.internal, w.dispatcher, "typo")
	uc := NewEditMessageUseCase(w.repo)

	v, err := uc.Execute(context.Background(), EditMessageInput{MessageID: m.ID, Identity: w.dispatcher, Body: " fixed "})
	require.NoError(t, err)
	assert.Equal(t, "fixed", v.Body)
	assert.True(t, v.IsEdited)
	assert.NotNil(t, v.EditedAt)

	_, err = uc.Execute(context.Background(), EditMessageInput{MessageID: m.ID, Identity: w.driver, Body: "hijack"})
	assert.ErrorIs(t, err, messaging.ErrNotSender)

	_, err = uc.Execute(context.Background(), EditMessageInput{MessageID: m.ID, Identity: w.dispatcher, Body: "   "})
	assert.ErrorIs(t, err, messaging.ErrEmptyMessage)
}

func TestDeleteMessage(t *testing.T) {
	w := newWorld(t)
	m := w.send(t, w.internal, w.dispatcher, "oops")
	uc := NewDeleteMessageUseCase(w.repo)

	assert.ErrorIs(t, uc.Execute(context.Background(), DeleteMessageInput{MessageID: m.ID, Identity: w.driver}), messaging.ErrNotSender)
	require.NoError(t, uc.Execute(context.Background(), DeleteMessageInput{MessageID: m.ID, Identity: w.dispatcher}))

	stored := w.repo.Messages()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsDeleted)

	assert.ErrorIs(t, uc.Execute(context.Background(), DeleteMessageInput{MessageID: m.ID, Identity: w.dispatcher}), messaging.ErrMessageNotFound)
	_, err := NewGetMessageUseCase(w.repo).Execute(context.Background(), GetMessageInput{MessageID: m.ID, Identity: w.dispatcher})
	assert.ErrorIs(t, err, messaging.ErrMessageNotFound)
}

func TestMuteConversation(t *testing.T) {
	w := newWorld(t)
	uc := NewMuteConversationUseCase(w.repo)

	require.NoError(t, uc.Execute(context.Background(), MuteConversationInput{ConversationID: w.internal.ID, Identity: w.driver, Muted: true}))
	assert.True(t, w.participant(t, w.internal.ID, w.driver).IsMuted)

	require.NoError(t, uc.Execute(context.Background(), MuteConversationInput{ConversationID: w.internal.ID, Identity: w.driver, Muted: false}))
	assert.False(t, w.participant(t, w.internal.ID, w.driver).IsMuted)

	err := uc.Execute(context.Background(), MuteConversationInput{ConversationID: w.internal.ID, Identity: w.partner, Muted: true})
	assert.ErrorIs(t, err, messaging.ErrAccessDenied)
}

func TestTotalUnread(t *testing.T) {
	w := newWorld(t)
	w.send(t, w.internal, w.dispatcher, "a")
	w.send(t, w.internal, w.dispatcher, "b")
	w.send(t, w.shared, w.partner, "c")
	uc := NewTotalUnreadUseCase(w.repo)

	n, err := uc.Execute(context.Background(), TotalUnreadInput{Identity: w.driver})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, NewMarkAsReadUseCase(w.repo).Execute(context.Background(), MarkAsReadInput{ConversationID: w.internal.ID, Identity: w.driver}))
	n, err = uc.Execute(context.Background(), TotalUnreadInput{Identity: w.driver})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w.repo.FailOn(memory.OpSumUnread, errBoom)
	_, err = uc.Execute(context.Background(), TotalUnreadInput{Identity: w.driver})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestMarkAsRead_WithoutRowIsNoop(t *testing.T) {
	w := newWorld(t)
	err := NewMarkAsReadUseCase(w.repo).Execute(context.Background(), MarkAsReadInput{ConversationID: w.internal.ID, Identity: w.partner})
	assert.NoError(t, err)

	err = NewMarkAsReadUseCase(w.repo).Execute(context.Background(), MarkAsReadInput{Identity: w.partner})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
