package usecase

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

func TestSendMessage_WriterIsStoredInPlace(t *testing.T) {
	w := newWorld(t)
	n := &recordingNotifier{}
	uc := NewSendMessageUseCase(w.repo, n, zerolog.Nop())

	res, err := uc.Execute(context.Background(), SendMessageInput{ConversationID: w.shared.ID, Identity: w.dispatcher, Body: "pickup at 9"})
	require.NoError(t, err)

	assert.Equal(t, SendSent, res.Status)
	assert.False(t, res.WasRouted)
	assert.Equal(t, w.shared.ID, res.ConversationID)
	assert.Equal(t, "pickup at 9", res.Message.Body)
	require.Len(t, n.stored, 1)
	assert.Equal(t, res.Message.ID, n.stored[0].ID)

	conv, err := w.repo.GetConversation(context.Background(), w.shared.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.MessageCount)
	require.NotNil(t, conv.LastMessagePreview)
	assert.Equal(t, "pickup at 9", *conv.LastMessagePreview)
}

func TestSendMessage_ClientCannotForgeRouting(t *testing.T) {
	w := newWorld(t)
	uc := NewSendMessageUseCase(w.repo, nil, zerolog.Nop())

	res, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID: w.internal.ID,
		Identity:       w.dispatcher,
		Body:           "moved here",
		Metadata: messaging.Metadata{
			messaging.MetaRoutedFromConversation: w.shared.ID,
			messaging.MetaRouteReason:            "fake",
			"client":                             "web",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, SendSent, res.Status)
	assert.False(t, res.WasRouted)

	stored := w.repo.Messages()
	require.Len(t, stored, 1)
	_, routed := stored[0].Metadata.RoutedFrom()
	assert.False(t, routed)
	assert.NotContains(t, stored[0].Metadata, messaging.MetaRouteReason)
	assert.Equal(t, "web", stored[0].Metadata["client"])
}

func TestSendMessage_RoutedReasonCannotBeOverridden(t *testing.T) {
	w := newWorld(t)
	uc := NewSendMessageUseCase(w.repo, nil, zerolog.Nop())

	res, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID: w.shared.ID,
		Identity:       w.driver,
		Body:           "hello",
		Metadata:       messaging.Metadata{messaging.MetaRouteReason: "fake", messaging.MetaRoutedFromConversation: "elsewhere"},
	})
	require.NoError(t, err)
	assert.Equal(t, SendRouted, res.Status)

	stored := w.repo.Messages()
	require.Len(t, stored, 1)
	from, _ := stored[0].Metadata.RoutedFrom()
	assert.Equal(t, w.shared.ID, from)
	assert.Equal(t, messaging.RouteReasonReadOnlyShared, stored[0].Metadata.RouteReason())
}

func TestSendMessage_ReadOnlyDriverIsRoutedToInternal(t *testing.T) {
	w := newWorld(t)
	uc := NewSendMessageUseCase(w.repo, nil, zerolog.Nop())

	res, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID: w.shared.ID,
		Identity:       w.driver,
		Body:           "hello",
		Metadata:       messaging.Metadata{"client": "mobile"},
	})
	require.NoError(t, err)

	assert.Equal(t, SendRouted, res.Status)
	assert.True(t, res.WasRouted)
	assert.Equal(t, messaging.RouteReasonReadOnlyShared, res.RouteReason)
	assert.Equal(t, w.internal.ID, res.ConversationID)

	stored := w.repo.Messages()
	require.Len(t, stored, 1)
	assert.Equal(t, w.internal.ID, stored[0].ConversationID)
	assert.Equal(t, "hello", stored[0].Body)
	from, ok := stored[0].Metadata.RoutedFrom()
	assert.True(t, ok)
	assert.Equal(t, w.shared.ID, from)
	assert.Equal(t, "mobile", stored[0].Metadata["client"])
}

func TestSendMessage_NoInternalSiblingIsRejected(t *testing.T) {
	repo := memory.New(nil)
	lid := "load-2"
	shared := repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadShared, CompanyID: carrierCo, LoadID: &lid})
	driver := messaging.DriverIdentity("d-1", carrierCo)
	repo.PutParticipant(messaging.Participant{ConversationID: shared.ID, Identity: driver, CanRead: true})

	res, err := NewSendMessageUseCase(repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: shared.ID, Identity: driver, Body: "hello",
	})

	assert.ErrorIs(t, err, messaging.ErrRoutingUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, SendRejected, res.Status)
	assert.Empty(t, repo.Messages())
}

func TestSendMessage_InternalOfAnotherCompanyIsNotATarget(t *testing.T) {
	w := newWorld(t)
	// An internal chat of the partner company on the same load must not receive routed writes.
	lid := loadID
	other := w.repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadInternal, CompanyID: brokerCo, LoadID: &lid})

	res, err := NewSendMessageUseCase(w.repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: w.shared.ID, Identity: w.driver, Body: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, w.internal.ID, res.ConversationID)
	assert.NotEqual(t, other.ID, res.ConversationID)
}

func TestSendMessage_ReadOnlyOnNonLoadConversationIsRejected(t *testing.T) {
	w := newWorld(t)
	partner := brokerCo
	c2c := w.repo.PutConversation(messaging.Conversation{Type: messaging.ConversationCompanyToCompany, CompanyID: carrierCo, PartnerCompanyID: &partner})
	w.join(c2c, w.driver, false)

	res, err := NewSendMessageUseCase(w.repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: c2c.ID, Identity: w.driver, Body: "hi",
	})
	assert.ErrorIs(t, err, messaging.ErrRoutingUnavailable)
	assert.Equal(t, SendRejected, res.Status)
	assert.Empty(t, w.repo.Messages())
}

func TestSendMessage_NoAccess(t *testing.T) {
	w := newWorld(t)
	stranger := messaging.UserIdentity("u-stranger", "co-other")

	res, err := NewSendMessageUseCase(w.repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: w.shared.ID, Identity: stranger, Body: "hi",
	})
	assert.ErrorIs(t, err, messaging.ErrAccessDenied)
	assert.Nil(t, res)
	assert.Empty(t, w.repo.Messages())
}

func TestSendMessage_StorageRejectionFails(t *testing.T) {
	w := newWorld(t)
	w.repo.FailOn(memory.OpInsertMessage, messaging.ErrForbidden)

	res, err := NewSendMessageUseCase(w.repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: w.internal.ID, Identity: w.driver, Body: "hi",
	})
	assert.ErrorIs(t, err, ErrSendFailure)
	assert.ErrorIs(t, err, messaging.ErrForbidden)
	require.NotNil(t, res)
	assert.Equal(t, SendFailed, res.Status)
	assert.Empty(t, w.repo.Messages())
}

func TestSendMessage_NotifierErrorDoesNotFailSend(t *testing.T) {
	w := newWorld(t)
	n := &recordingNotifier{err: errBoom}

	res, err := NewSendMessageUseCase(w.repo, n, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: w.internal.ID, Identity: w.dispatcher, Body: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, SendSent, res.Status)
	assert.Len(t, n.stored, 1)
}

func TestSendMessage_InvalidInput(t *testing.T) {
	w := newWorld(t)
	uc := NewSendMessageUseCase(w.repo, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := uc.Execute(ctx, SendMessageInput{Identity: w.dispatcher, Body: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: w.internal.ID, Identity: w.dispatcher, Body: "  "})
	assert.ErrorIs(t, err, messaging.ErrEmptyMessage)

	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: w.internal.ID, Identity: w.dispatcher, Body: "x", MsgType: messaging.MessageSystem})
	assert.ErrorIs(t, err, messaging.ErrInvalidSender)

	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: "missing", Identity: w.dispatcher, Body: "x"})
	assert.ErrorIs(t, err, messaging.ErrConversationNotFound)
}

func TestSendMessage_BumpsUnreadForOthersOnly(t *testing.T) {
	w := newWorld(t)
	w.send(t, w.internal, w.dispatcher, "one")
	w.send(t, w.internal, w.dispatcher, "two")

	assert.Equal(t, 0, w.participant(t, w.internal.ID, w.dispatcher).UnreadCount)
	assert.Equal(t, 2, w.participant(t, w.internal.ID, w.driver).UnreadCount)
}
