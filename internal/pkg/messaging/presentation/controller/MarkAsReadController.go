package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// MarkAsReadController handles POST /conversations/:conversationId/read.
type MarkAsReadController struct {
	UC *usecase.MarkAsReadUseCase
}

func NewMarkAsReadController(repo repository.MessagingRepository) *MarkAsReadController {
	return &MarkAsReadController{UC: usecase.NewMarkAsReadUseCase(repo)}
}

func (h *MarkAsReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conversationID := c.Param("conversationId")
		if err := h.UC.Execute(ctx, usecase.MarkAsReadInput{ConversationID: conversationID, Identity: id}); err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, gin.H{"conversation_id": conversationID, "unread_count": 0})
	}
}
