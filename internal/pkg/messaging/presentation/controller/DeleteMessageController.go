package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// DeleteMessageController handles DELETE /messages/:messageId (soft delete).
type DeleteMessageController struct {
	UC *usecase.DeleteMessageUseCase
}

func NewDeleteMessageController(repo repository.MessagingRepository) *DeleteMessageController {
	return &DeleteMessageController{UC: usecase.NewDeleteMessageUseCase(repo)}
}

func (h *DeleteMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		messageID := c.Param("messageId")
		if err := h.UC.Execute(ctx, usecase.DeleteMessageInput{MessageID: messageID, Identity: id}); err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, gin.H{"id": messageID, "is_deleted": true})
	}
}
