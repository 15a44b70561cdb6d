package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/middleware"
)

// Error codes carried in the error envelope.
const (
	CodeIdentityNotFound   = "identity_not_found"
	CodeAccessDenied       = "access_denied"
	CodeRoutingUnavailable = "routing_unavailable"
	CodeNotFound           = "not_found"
	CodeBadRequest         = "bad_request"
	CodeSendFailed         = "send_failed"
	CodeInternal           = "internal_error"
	CodeUnauthorized       = "unauthorized"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Data: data})
}

// respondError maps use case errors onto the error envelope. data, when not
// nil, is sent alongside the error (a rejected send reports its status).
func respondError(c *gin.Context, err error, data any) {
	status, code, message := classify(err)
	c.JSON(status, envelope{Data: data, Error: &errorBody{Code: code, Message: message}})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Error: &errorBody{Code: CodeBadRequest, Message: message}})
}

// classify returns the HTTP status, error code and client-safe message for err.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, messaging.ErrIdentityNotFound):
		return http.StatusNotFound, CodeIdentityNotFound, messaging.ErrIdentityNotFound.Error()
	case errors.Is(err, messaging.ErrAccessDenied),
		errors.Is(err, messaging.ErrForbidden),
		errors.Is(err, messaging.ErrNotSender):
		return http.StatusForbidden, CodeAccessDenied, rootMessage(err)
	case errors.Is(err, messaging.ErrRoutingUnavailable):
		return http.StatusConflict, CodeRoutingUnavailable, messaging.ErrRoutingUnavailable.Error()
	case errors.Is(err, messaging.ErrConversationNotFound),
		errors.Is(err, messaging.ErrMessageNotFound),
		errors.Is(err, messaging.ErrLoadNotFound),
		errors.Is(err, messaging.ErrDriverNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, messaging.ErrInvalidMessageType),
		errors.Is(err, messaging.ErrInvalidSender),
		errors.Is(err, messaging.ErrInvalidConversation):
		return http.StatusBadRequest, CodeBadRequest, err.Error()
	case errors.Is(err, usecase.ErrSendFailure):
		return http.StatusBadGateway, CodeSendFailed, "message could not be stored, please retry"
	default:
		return http.StatusInternalServerError, CodeInternal, "unexpected error"
	}
}

func rootMessage(err error) string {
	switch {
	case errors.Is(err, messaging.ErrNotSender):
		return messaging.ErrNotSender.Error()
	case errors.Is(err, messaging.ErrForbidden):
		return messaging.ErrForbidden.Error()
	default:
		return messaging.ErrAccessDenied.Error()
	}
}

// identity returns the authenticated identity or writes 401.
func identity(c *gin.Context) (messaging.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Error: &errorBody{Code: CodeUnauthorized, Message: "authorization required"}})
		return messaging.Identity{}, false
	}
	return id, true
}
