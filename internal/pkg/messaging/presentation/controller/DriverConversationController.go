package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// DriverConversationController handles POST /drivers/:driverId/conversation.
// Drivers may use "me" as driverId.
type DriverConversationController struct {
	UC *usecase.GetOrCreateDriverConversationUseCase
}

func NewDriverConversationController(repo repository.MessagingRepository) *DriverConversationController {
	return &DriverConversationController{UC: usecase.NewGetOrCreateDriverConversationUseCase(repo)}
}

func (h *DriverConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		driverID := c.Param("driverId")
		if driverID == "me" {
			driverID = ""
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.GetOrCreateDriverConversationInput{Identity: id, DriverID: driverID})
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
