package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// MuteConversationController handles PUT /conversations/:conversationId/mute.
type MuteConversationController struct {
	UC *usecase.MuteConversationUseCase
}

func NewMuteConversationController(repo repository.MessagingRepository) *MuteConversationController {
	return &MuteConversationController{UC: usecase.NewMuteConversationUseCase(repo)}
}

type muteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

func (h *MuteConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req muteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conversationID := c.Param("conversationId")
		err := h.UC.Execute(ctx, usecase.MuteConversationInput{ConversationID: conversationID, Identity: id, Muted: *req.Muted})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, gin.H{"conversation_id": conversationID, "is_muted": *req.Muted})
	}
}
