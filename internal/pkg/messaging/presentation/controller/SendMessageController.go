package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageController handles POST /conversations/:conversationId/messages.
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(repo repository.MessagingRepository, notifier usecase.MessageNotifier, log zerolog.Logger) *SendMessageController {
	return &SendMessageController{UC: usecase.NewSendMessageUseCase(repo, notifier, log)}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Body             string                 `json:"body"`
	MessageType      string                 `json:"message_type"`
	Attachments      []messaging.Attachment `json:"attachments"`
	Metadata         messaging.Metadata     `json:"metadata"`
	ReplyToMessageID *string                `json:"reply_to_message_id"`
}

func (r sendMessageRequest) input(conversationID string, id messaging.Identity) usecase.SendMessageInput {
	return usecase.SendMessageInput{
		ConversationID:   conversationID,
		Identity:         id,
		Body:             r.Body,
		MsgType:          messaging.MessageType(r.MessageType),
		Attachments:      r.Attachments,
		Metadata:         r.Metadata,
		ReplyToMessageID: r.ReplyToMessageID,
	}
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		res, err := h.UC.Execute(ctx, req.input(c.Param("conversationId"), id))
		if err != nil {
			// res carries the terminal status of rejected and failed sends
			respondError(c, err, res)
			return
		}
		respond(c, http.StatusCreated, res)
	}
}
