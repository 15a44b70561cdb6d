package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// EditMessageController handles PATCH /messages/:messageId.
type EditMessageController struct {
	UC *usecase.EditMessageUseCase
}

func NewEditMessageController(repo repository.MessagingRepository) *EditMessageController {
	return &EditMessageController{UC: usecase.NewEditMessageUseCase(repo)}
}

type editMessageRequest struct {
	Body string `json:"body"`
}

func (h *EditMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req editMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		view, err := h.UC.Execute(ctx, usecase.EditMessageInput{MessageID: c.Param("messageId"), Identity: id, Body: req.Body})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, view)
	}
}
