package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// AccessController handles GET /conversations/:conversationId/access.
type AccessController struct {
	UC *usecase.ResolveAccessUseCase
}

func NewAccessController(repo repository.MessagingRepository) *AccessController {
	return &AccessController{UC: usecase.NewResolveAccessUseCase(repo)}
}

func (h *AccessController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.ResolveAccessInput{ConversationID: c.Param("conversationId"), Identity: id})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, res.Access)
	}
}
