package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// FetchMessagesController handles GET /conversations/:conversationId/messages.
// Query: limit (default 50, max 200), before (RFC3339 created_at) and
// before_id (id of the message at before). Clients pass next_before and
// next_before_id from the previous page.
type FetchMessagesController struct {
	UC *usecase.FetchMessagesUseCase
}

func NewFetchMessagesController(repo repository.MessagingRepository, log zerolog.Logger) *FetchMessagesController {
	return &FetchMessagesController{UC: usecase.NewFetchMessagesUseCase(repo, log)}
}

func (h *FetchMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		in := usecase.FetchMessagesInput{ConversationID: c.Param("conversationId"), Identity: id}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(c, "limit must be a positive integer")
				return
			}
			in.Limit = n
		}
		if v := c.Query("before"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				badRequest(c, "before must be an RFC3339 timestamp")
				return
			}
			in.Before = &t
		}
		if v := c.Query("before_id"); v != "" {
			if in.Before == nil {
				badRequest(c, "before_id requires before")
				return
			}
			in.BeforeID = v
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		page, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err, nil)
			return
		}
		respond(c, http.StatusOK, page)
	}
}
