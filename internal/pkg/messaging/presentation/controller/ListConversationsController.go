package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// ListConversationsController handles GET /conversations.
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(repo repository.MessagingRepository) *ListConversationsController {
	return &ListConversationsController{UC: usecase.NewListConversationsUseCase(repo)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var f messaging.ConversationFilter
		if v := c.Query("type"); v != "" {
			t := messaging.ConversationType(v)
			f.Type = &t
		}
		f.LoadID = optionalQuery(c, "load_id")
		f.TripID = optionalQuery(c, "trip_id")
		f.DriverID = optionalQuery(c, "driver_id")
		if v := c.Query("include_archived"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				badRequest(c, "include_archived must be a boolean")
				return
			}
			f.IncludeArchived = b
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		items, err := h.UC.Execute(ctx, usecase.ListConversationsInput{Identity: id, Filter: f})
		if err != nil {
			respondError(c, err, nil)
			return
		}
		if items == nil {
			items = []messaging.ConversationListItem{}
		}
		respond(c, http.StatusOK, items)
	}
}

func optionalQuery(c *gin.Context, key string) *string {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}
