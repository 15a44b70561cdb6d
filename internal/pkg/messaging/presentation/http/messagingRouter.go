package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	feedport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/realtime"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/controller"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/middleware"
)

// Deps are the collaborators shared by the messaging endpoints.
type Deps struct {
	Repo      repository.MessagingRepository
	Feed      feedport.Feed
	Router    *realtime.Router
	Notifier  usecase.MessageNotifier
	JWTSecret string
	Limiter   *middleware.SendRateLimiter
	Log       zerolog.Logger
}

// RegisterRoutes registers messaging HTTP endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	listCtl := controller.NewListConversationsController(d.Repo)
	loadCtl := controller.NewLoadConversationController(d.Repo)
	driverCtl := controller.NewDriverConversationController(d.Repo)
	accessCtl := controller.NewAccessController(d.Repo)
	fetchCtl := controller.NewFetchMessagesController(d.Repo, d.Log)
	sendCtl := controller.NewSendMessageController(d.Repo, d.Notifier, d.Log)
	getCtl := controller.NewGetMessageController(d.Repo)
	editCtl := controller.NewEditMessageController(d.Repo)
	deleteCtl := controller.NewDeleteMessageController(d.Repo)
	readCtl := controller.NewMarkAsReadController(d.Repo)
	muteCtl := controller.NewMuteConversationController(d.Repo)
	unreadCtl := controller.NewTotalUnreadController(d.Repo)
	socketCtl := controller.NewMessagingSocketController(d.Repo, d.Feed, d.Router, d.Notifier, d.Limiter, d.Log)

	authed := g.Group("", middleware.Auth(d.JWTSecret, d.Repo))

	// GET /api/v1/conversations -> conversations visible to the caller
	authed.GET("/conversations", listCtl.Handle())
	// GET /api/v1/conversations/:conversationId/access -> {can_read, can_write}
	authed.GET("/conversations/:conversationId/access", accessCtl.Handle())
	// GET /api/v1/conversations/:conversationId/messages -> one page, marks read
	authed.GET("/conversations/:conversationId/messages", fetchCtl.Handle())

	send := []gin.HandlerFunc{sendCtl.Handle()}
	if d.Limiter != nil {
		send = append([]gin.HandlerFunc{middleware.RateLimit(d.Limiter, d.Log)}, send...)
	}
	// POST /api/v1/conversations/:conversationId/messages -> send (may be routed)
	authed.POST("/conversations/:conversationId/messages", send...)
	authed.POST("/conversations/:conversationId/read", readCtl.Handle())
	authed.PUT("/conversations/:conversationId/mute", muteCtl.Handle())

	// POST /api/v1/loads/:loadId/conversations -> get or create a load chat
	authed.POST("/loads/:loadId/conversations", loadCtl.Handle())
	// POST /api/v1/drivers/:driverId/conversation -> get or create the dispatch chat
	authed.POST("/drivers/:driverId/conversation", driverCtl.Handle())

	authed.GET("/messages/:messageId", getCtl.Handle())
	authed.PATCH("/messages/:messageId", editCtl.Handle())
	authed.DELETE("/messages/:messageId", deleteCtl.Handle())

	authed.GET("/unread", unreadCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for live streams
	authed.GET("/ws", socketCtl.Handle())
}
