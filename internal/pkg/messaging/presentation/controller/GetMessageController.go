package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// GetMessageController handles GET /messages/:messageId.
type GetMessageController struct {
	UC *usecase.GetMessageUseCase
}

func NewGetMessageController(repo repository.MessagingRepository) *GetMessageController {
	return &GetMessageController{UC: usecase.NewGetMessageUseCase(repo)}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		view, err := h.UC.Execute(ctx, usecase.GetMessageInput{MessageID: c.Param("messageId"), Identity: id})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, view)
	}
}
