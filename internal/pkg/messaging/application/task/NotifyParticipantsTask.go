package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	qport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/queue/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// NotifyParticipantsTaskType is the queue task name for fanning out a stored message.
const NotifyParticipantsTaskType = "messaging:notify_participants"

// QueueName is the asynq queue messaging tasks are enqueued on.
const QueueName = "messaging"

// NotifyParticipantsPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type NotifyParticipantsPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// Scheduler enqueues a notification task for every stored message.
type Scheduler struct {
	Client qport.Client
}

func NewScheduler(client qport.Client) *Scheduler {
	return &Scheduler{Client: client}
}

var _ usecase.MessageNotifier = (*Scheduler)(nil)

func (s *Scheduler) MessageStored(ctx context.Context, m messaging.Message) error {
	payload, err := json.Marshal(NotifyParticipantsPayload{MessageID: m.ID, ConversationID: m.ConversationID})
	if err != nil {
		return err
	}
	_, err = s.Client.Enqueue(ctx, qport.Task{Type: NotifyParticipantsTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:     QueueName,
		MaxRetry:  5,
		UniqueTTL: time.Hour,
		Timeout:   30 * time.Second,
	})
	return err
}

// RegisterNotifyParticipantsTask binds the fan-out handler to the provided server.
func RegisterNotifyParticipantsTask(srv qport.Server, repo repository.MessagingRepository, notifier Notifier, log zerolog.Logger) {
	h := &notifyHandler{repo: repo, notifier: notifier, log: log}
	srv.Register(NotifyParticipantsTaskType, func(ctx context.Context, t qport.Task) error {
		var p NotifyParticipantsPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			log.Error().Err(err).Str("task", t.Type).Msg("messaging: malformed notify payload")
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return h.handle(ctx, p)
	})
}

type notifyHandler struct {
	repo     repository.MessagingRepository
	notifier Notifier
	log      zerolog.Logger
}

// handle notifies every participant that can read the conversation, except
// the sender and those who muted it. Delivery errors are logged per
// recipient; only storage errors make the task retry.
func (h *notifyHandler) handle(ctx context.Context, p NotifyParticipantsPayload) error {
	rec, err := h.repo.GetMessage(ctx, p.MessageID)
	if errors.Is(err, messaging.ErrMessageNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}
	if rec.IsDeleted {
		return nil
	}

	participants, err := h.repo.ListParticipants(ctx, rec.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}

	n := Notification{
		ConversationID: rec.ConversationID,
		MessageID:      rec.ID,
		SenderName:     h.senderName(ctx, rec),
		Preview:        rec.Preview(),
		CreatedAt:      rec.CreatedAt,
	}
	if from, ok := rec.Metadata.RoutedFrom(); ok {
		n.RoutedFrom = from
	}

	for _, part := range participants {
		part = part.Normalize()
		if !part.CanRead || part.IsMuted || rec.Sender.Is(part.Identity) {
			continue
		}
		if err := h.notifier.Notify(ctx, part.Identity, n); err != nil {
			h.log.Warn().Err(err).
				Str("message_id", rec.ID).
				Str("recipient", part.Identity.Key()).
				Msg("messaging: notify participant")
		}
	}
	return nil
}

func (h *notifyHandler) senderName(ctx context.Context, rec *messaging.MessageRecord) string {
	switch rec.Sender.Kind() {
	case messaging.SenderDriver:
		return rec.SenderDriver.FullName()
	case messaging.SenderUser:
		profiles, err := h.repo.UserProfiles(ctx, []string{rec.Sender.ID()})
		if err != nil {
			h.log.Debug().Err(err).Msg("messaging: sender profile for notification")
			return ""
		}
		return profiles[rec.Sender.ID()].Name
	default:
		return ""
	}
}
