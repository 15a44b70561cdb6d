package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	feedport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/realtime"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/live"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/middleware"
)

// MessagingSocketController serves the live session: followed conversations
// stream their new messages, the unread total is pushed whenever it changes,
// and messages can be sent over the socket.
type MessagingSocketController struct {
	router  *realtime.Router
	feed    feedport.Feed
	limiter *middleware.SendRateLimiter
	log     zerolog.Logger

	accessUC        *usecase.ResolveAccessUseCase
	sendMessageUC   *usecase.SendMessageUseCase
	getMessageUC    *usecase.GetMessageUseCase
	totalUnreadUC   *usecase.TotalUnreadUseCase
	inflightTimeout time.Duration
}

func NewMessagingSocketController(
	repo repository.MessagingRepository,
	feed feedport.Feed,
	router *realtime.Router,
	notifier usecase.MessageNotifier,
	limiter *middleware.SendRateLimiter,
	log zerolog.Logger,
) *MessagingSocketController {
	return &MessagingSocketController{
		router:          router,
		feed:            feed,
		limiter:         limiter,
		log:             log,
		accessUC:        usecase.NewResolveAccessUseCase(repo),
		sendMessageUC:   usecase.NewSendMessageUseCase(repo, notifier, log),
		getMessageUC:    usecase.NewGetMessageUseCase(repo),
		totalUnreadUC:   usecase.NewTotalUnreadUseCase(repo),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browser origins are checked by the CORS layer; the token authenticates the socket
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Type             string                 `json:"type"`
	RequestID        string                 `json:"request_id,omitempty"`
	ConversationID   string                 `json:"conversation_id,omitempty"`
	Body             string                 `json:"body,omitempty"`
	MessageType      string                 `json:"message_type,omitempty"`
	Attachments      []messaging.Attachment `json:"attachments,omitempty"`
	ReplyToMessageID *string                `json:"reply_to_message_id,omitempty"`
}

type errorFrame struct {
	Type           string              `json:"type"`
	RequestID      string              `json:"request_id,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Code           string              `json:"code"`
	Error          string              `json:"error"`
	Result         *usecase.SendResult `json:"result,omitempty"`
}

type ackFrame struct {
	Type           string              `json:"type"`
	Op             string              `json:"op"`
	RequestID      string              `json:"request_id,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Access         *messaging.Access   `json:"access,omitempty"`
	Result         *usecase.SendResult `json:"result,omitempty"`
}

type messageFrame struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversation_id"`
	Message        messaging.MessageView `json:"message"`
}

type unreadFrame struct {
	Type  string `json:"type"`
	Total int    `json:"total"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *MessagingSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		// the session outlives the upgrade request's context
		session, cancel := context.WithCancel(context.Background())
		conn := realtime.NewConnection(id.Key(), ws)
		ctl.router.Attach(conn)
		defer func() {
			cancel()
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		log := ctl.log.With().Str("session", conn.ID).Str("identity", id.Key()).Logger()

		watcher, err := live.StartUnreadWatcher(session, ctl.feed, ctl.totalUnreadUC, id, func(total int) {
			ctl.send(conn, unreadFrame{Type: "unread", Total: total})
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("unread watcher not started")
		} else {
			defer watcher.Close()
		}

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.send(conn, ackFrame{Type: "ack", Op: "connected"})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					log.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, inboundFrame{}, CodeBadRequest, "invalid payload")
				continue
			}

			switch frame.Type {
			case "subscribe":
				ctl.handleSubscribe(session, conn, id, frame, log)
			case "unsubscribe":
				ctl.handleUnsubscribe(conn, frame)
			case "send":
				ctl.handleSend(session, conn, id, frame)
			default:
				ctl.replyError(conn, frame, CodeBadRequest, "unknown frame type")
			}
		}
	}
}

func (ctl *MessagingSocketController) handleSubscribe(session context.Context, conn *realtime.Connection, id messaging.Identity, frame inboundFrame, log zerolog.Logger) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame, CodeBadRequest, "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(session, ctl.inflightTimeout)
	res, err := ctl.accessUC.Execute(ctx, usecase.ResolveAccessInput{ConversationID: frame.ConversationID, Identity: id})
	cancel()
	if err != nil {
		ctl.replyUseCaseError(conn, frame, err, nil)
		return
	}
	if !res.Access.CanRead {
		ctl.replyUseCaseError(conn, frame, messaging.ErrAccessDenied, nil)
		return
	}

	conversationID := frame.ConversationID
	stream, err := live.OpenMessageStream(session, ctl.feed, ctl.getMessageUC, id, conversationID, func(m messaging.MessageView) {
		ctl.send(conn, messageFrame{Type: "message", ConversationID: conversationID, Message: m})
	}, log)
	if err != nil {
		ctl.replyError(conn, frame, CodeInternal, "could not open live stream")
		return
	}
	if !ctl.router.Follow(conversationID, conn, func() { _ = stream.Close() }) {
		return
	}

	access := res.Access
	ctl.send(conn, ackFrame{Type: "ack", Op: "subscribe", RequestID: frame.RequestID, ConversationID: conversationID, Access: &access})
}

func (ctl *MessagingSocketController) handleUnsubscribe(conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame, CodeBadRequest, "conversation_id is required")
		return
	}
	ctl.router.Unfollow(frame.ConversationID, conn)
	ctl.send(conn, ackFrame{Type: "ack", Op: "unsubscribe", RequestID: frame.RequestID, ConversationID: frame.ConversationID})
}

func (ctl *MessagingSocketController) handleSend(session context.Context, conn *realtime.Connection, id messaging.Identity, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame, CodeBadRequest, "conversation_id is required")
		return
	}
	if ctl.limiter != nil && !ctl.limiter.Allow(id.Key()) {
		ctl.replyError(conn, frame, "rate_limited", "too many messages, slow down")
		return
	}

	ctx, cancel := context.WithTimeout(session, ctl.inflightTimeout)
	defer cancel()
	res, err := ctl.sendMessageUC.Execute(ctx, usecase.SendMessageInput{
		ConversationID:   frame.ConversationID,
		Identity:         id,
		Body:             frame.Body,
		MsgType:          messaging.MessageType(frame.MessageType),
		Attachments:      frame.Attachments,
		ReplyToMessageID: frame.ReplyToMessageID,
	})
	if err != nil {
		ctl.replyUseCaseError(conn, frame, err, res)
		return
	}
	ctl.send(conn, ackFrame{Type: "ack", Op: "send", RequestID: frame.RequestID, ConversationID: frame.ConversationID, Result: res})
}

func (ctl *MessagingSocketController) replyUseCaseError(conn *realtime.Connection, frame inboundFrame, err error, res *usecase.SendResult) {
	_, code, message := classify(err)
	ctl.send(conn, errorFrame{
		Type:           "error",
		RequestID:      frame.RequestID,
		ConversationID: frame.ConversationID,
		Code:           code,
		Error:          message,
		Result:         res,
	})
}

func (ctl *MessagingSocketController) replyError(conn *realtime.Connection, frame inboundFrame, code string, message string) {
	ctl.send(conn, errorFrame{
		Type:           "error",
		RequestID:      frame.RequestID,
		ConversationID: frame.ConversationID,
		Code:           code,
		Error:          message,
	})
}

func (ctl *MessagingSocketController) send(conn *realtime.Connection, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		ctl.log.Error().Err(err).Msg("encode websocket frame")
		return
	}
	_ = conn.Send(payload)
}
