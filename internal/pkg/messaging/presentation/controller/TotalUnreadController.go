package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// TotalUnreadController handles GET /unread.
type TotalUnreadController struct {
	UC *usecase.TotalUnreadUseCase
}

func NewTotalUnreadController(repo repository.MessagingRepository) *TotalUnreadController {
	return &TotalUnreadController{UC: usecase.NewTotalUnreadUseCase(repo)}
}

func (h *TotalUnreadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		n, err := h.UC.Execute(ctx, usecase.TotalUnreadInput{Identity: id})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, gin.H{"total": n})
	}
}
