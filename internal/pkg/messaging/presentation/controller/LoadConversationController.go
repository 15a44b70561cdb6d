package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// LoadConversationController handles POST /loads/:loadId/conversations.
type LoadConversationController struct {
	UC *usecase.GetOrCreateLoadConversationUseCase
}

func NewLoadConversationController(repo repository.MessagingRepository) *LoadConversationController {
	return &LoadConversationController{UC: usecase.NewGetOrCreateLoadConversationUseCase(repo)}
}

type loadConversationRequest struct {
	Type string `json:"type" binding:"required"`
}

func (h *LoadConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req loadConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.GetOrCreateLoadConversationInput{
			Identity: id,
			LoadID:   c.Param("loadId"),
			Type:     messaging.ConversationType(req.Type),
		})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		respond(c, status, res)
	}
}
