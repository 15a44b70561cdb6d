package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feedAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/adapter"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/realtime"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/middleware"
)

const secret = "test-secret"

type app struct {
	engine   *gin.Engine
	repo     *memory.Repository
	shared   messaging.Conversation
	internal messaging.Conversation
}

func newApp(t *testing.T, limiter *middleware.SendRateLimiter) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := feedAdapter.NewBroker(zerolog.Nop(), 0)
	t.Cleanup(broker.Close)
	router := realtime.NewRouter()
	t.Cleanup(router.Close)

	repo := memory.New(broker)
	repo.AddCompany(messaging.CompanyRef{ID: "co-partner", Name: "Partner Co"})
	repo.AddUser(memory.User{ID: "u-disp", AuthUserID: "auth-disp", CompanyID: "co", FullName: "Dana Dispatch"})
	repo.AddDriver(memory.Driver{ID: "d-1", AuthUserID: "auth-driver", CompanyID: "co", FirstName: "Dee", LastName: "River"})
	partner := "co-partner"
	repo.AddLoad(messaging.LoadRef{ID: "load-1", CompanyID: "co", PartnerCompanyID: &partner, LoadNumber: "LD-1"})

	lid := "load-1"
	a := &app{repo: repo}
	a.shared = repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadShared, CompanyID: "co", LoadID: &lid, PartnerCompanyID: &partner})
	a.internal = repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadInternal, CompanyID: "co", LoadID: &lid})
	disp := messaging.UserIdentity("u-disp", "co")
	driver := messaging.DriverIdentity("d-1", "co")
	repo.PutParticipant(messaging.Participant{ConversationID: a.shared.ID, Identity: disp, CanRead: true, CanWrite: true})
	repo.PutParticipant(messaging.Participant{ConversationID: a.shared.ID, Identity: driver, CanRead: true})
	repo.PutParticipant(messaging.Participant{ConversationID: a.internal.ID, Identity: disp, CanRead: true, CanWrite: true})
	repo.PutParticipant(messaging.Participant{ConversationID: a.internal.ID, Identity: driver, CanRead: true, CanWrite: true})

	a.engine = gin.New()
	RegisterRoutes(a.engine.Group("/api/v1"), Deps{
		Repo:      repo,
		Feed:      broker,
		Router:    router,
		JWTSecret: secret,
		Limiter:   limiter,
		Log:       zerolog.Nop(),
	})
	return a
}

func token(t *testing.T, subject string, kind messaging.IdentityKind) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, subject, kind, time.Hour)
	require.NoError(t, err)
	return tok
}

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *app) do(t *testing.T, method, path, tok string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var res response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func TestAuthRequired(t *testing.T) {
	a := newApp(t, nil)

	code, res := a.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", res.Error.Code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/conversations", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, res = a.do(t, http.MethodGet, "/api/v1/conversations", token(t, "auth-nobody", messaging.IdentityDriver), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "identity_not_found", res.Error.Code)
}

func TestSendRoutesReadOnlyDriver(t *testing.T) {
	a := newApp(t, nil)
	tok := token(t, "auth-driver", messaging.IdentityDriver)

	code, res := a.do(t, http.MethodPost, "/api/v1/conversations/"+a.shared.ID+"/messages", tok, gin.H{"body": "hello"})
	require.Equal(t, http.StatusCreated, code)

	var out struct {
		Status         string `json:"status"`
		ConversationID string `json:"conversation_id"`
		WasRouted      bool   `json:"was_routed"`
		RouteReason    string `json:"route_reason"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, "routed", out.Status)
	assert.Equal(t, a.internal.ID, out.ConversationID)
	assert.True(t, out.WasRouted)
	assert.Equal(t, messaging.RouteReasonReadOnlyShared, out.RouteReason)
}

func TestSendErrorsCarryCodes(t *testing.T) {
	a := newApp(t, nil)
	tok := token(t, "auth-disp", messaging.IdentityUser)

	code, res := a.do(t, http.MethodPost, "/api/v1/conversations/"+a.internal.ID+"/messages", tok, gin.H{"body": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", res.Error.Code)

	code, res = a.do(t, http.MethodPost, "/api/v1/conversations/missing/messages", tok, gin.H{"body": "x"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", res.Error.Code)
}

func TestFetchListAndUnread(t *testing.T) {
	a := newApp(t, nil)
	disp := token(t, "auth-disp", messaging.IdentityUser)
	driver := token(t, "auth-driver", messaging.IdentityDriver)

	for _, body := range []string{"one", "two"} {
		code, _ := a.do(t, http.MethodPost, "/api/v1/conversations/"+a.internal.ID+"/messages", disp, gin.H{"body": body})
		require.Equal(t, http.StatusCreated, code)
	}

	code, res := a.do(t, http.MethodGet, "/api/v1/unread", driver, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total":2}`, string(res.Data))

	code, res = a.do(t, http.MethodGet, "/api/v1/conversations?type=load_internal", driver, nil)
	require.Equal(t, http.StatusOK, code)
	var items []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		UnreadCount int    `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "LD-1", items[0].Title)
	assert.Equal(t, 2, items[0].UnreadCount)

	code, res = a.do(t, http.MethodGet, "/api/v1/conversations/"+a.internal.ID+"/messages?limit=1", driver, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Messages []struct {
			Body   string `json:"body"`
			Sender struct {
				Name string `json:"name"`
			} `json:"sender"`
		} `json:"messages"`
		HasMore      bool       `json:"has_more"`
		NextBefore   *time.Time `json:"next_before"`
		NextBeforeID string     `json:"next_before_id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "two", page.Messages[0].Body)
	assert.Equal(t, "Dana Dispatch", page.Messages[0].Sender.Name)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextBefore)

	q := url.Values{}
	q.Set("limit", "1")
	q.Set("before", page.NextBefore.Format(time.RFC3339Nano))
	q.Set("before_id", page.NextBeforeID)
	code, res = a.do(t, http.MethodGet, "/api/v1/conversations/"+a.internal.ID+"/messages?"+q.Encode(), driver, nil)
	require.Equal(t, http.StatusOK, code)
	page.NextBefore = nil
	require.NoError(t, json.Unmarshal(res.Data, &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "one", page.Messages[0].Body)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextBefore)

	code, _ = a.do(t, http.MethodGet, "/api/v1/conversations/"+a.internal.ID+"/messages?before_id=x", driver, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	_, res = a.do(t, http.MethodGet, "/api/v1/unread", driver, nil)
	assert.JSONEq(t, `{"total":0}`, string(res.Data))

	code, _ = a.do(t, http.MethodGet, "/api/v1/conversations/"+a.internal.ID+"/messages?limit=abc", driver, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAccessEndpoint(t *testing.T) {
	a := newApp(t, nil)
	code, res := a.do(t, http.MethodGet, "/api/v1/conversations/"+a.shared.ID+"/access", token(t, "auth-driver", messaging.IdentityDriver), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"can_read":true,"can_write":false}`, string(res.Data))
}

func TestGetOrCreateEndpoints(t *testing.T) {
	a := newApp(t, nil)
	disp := token(t, "auth-disp", messaging.IdentityUser)

	code, res := a.do(t, http.MethodPost, "/api/v1/loads/load-1/conversations", disp, gin.H{"type": "load_internal"})
	assert.Equal(t, http.StatusOK, code)
	var got struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
		Created bool `json:"created"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &got))
	assert.Equal(t, a.internal.ID, got.Conversation.ID)
	assert.False(t, got.Created)

	code, _ = a.do(t, http.MethodPost, "/api/v1/loads/load-1/conversations", disp, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/drivers/d-1/conversation", disp, nil)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/drivers/me/conversation", token(t, "auth-driver", messaging.IdentityDriver), nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestEditDeleteAndMute(t *testing.T) {
	a := newApp(t, nil)
	disp := token(t, "auth-disp", messaging.IdentityUser)
	driver := token(t, "auth-driver", messaging.IdentityDriver)

	_, res := a.do(t, http.MethodPost, "/api/v1/conversations/"+a.internal.ID+"/messages", disp, gin.H{"body": "typo"})
	var sent struct {
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &sent))
	path := "/api/v1/messages/" + sent.Message.ID

	code, res := a.do(t, http.MethodPatch, path, driver, gin.H{"body": "hijack"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "access_denied", res.Error.Code)

	code, _ = a.do(t, http.MethodPatch, path, disp, gin.H{"body": "fixed"})
	assert.Equal(t, http.StatusOK, code)
	code, res = a.do(t, http.MethodGet, path, driver, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), `"body":"fixed"`)

	code, _ = a.do(t, http.MethodDelete, path, disp, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, path, driver, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPut, "/api/v1/conversations/"+a.internal.ID+"/mute", driver, gin.H{"muted": true})
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPut, "/api/v1/conversations/"+a.internal.ID+"/mute", driver, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/conversations/"+a.internal.ID+"/read", driver, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestSendIsRateLimited(t *testing.T) {
	a := newApp(t, middleware.NewSendRateLimiter(1, 1))
	tok := token(t, "auth-disp", messaging.IdentityUser)
	path := "/api/v1/conversations/" + a.internal.ID + "/messages"

	code, _ := a.do(t, http.MethodPost, path, tok, gin.H{"body": "one"})
	assert.Equal(t, http.StatusCreated, code)
	code, res := a.do(t, http.MethodPost, path, tok, gin.H{"body": "two"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", res.Error.Code)
}

type frame struct {
	Type           string          `json:"type"`
	Op             string          `json:"op"`
	RequestID      string          `json:"request_id"`
	ConversationID string          `json:"conversation_id"`
	Code           string          `json:"code"`
	Total          int             `json:"total"`
	Message        json.RawMessage `json:"message"`
}

func readUntil(t *testing.T, ws *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, ws.SetReadDeadline(deadline))
	for {
		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func TestWebsocketSession(t *testing.T) {
	a := newApp(t, nil)
	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?access_token=" + token(t, "auth-driver", messaging.IdentityDriver)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	readUntil(t, ws, func(f frame) bool { return f.Type == "ack" && f.Op == "connected" })

	require.NoError(t, ws.WriteJSON(gin.H{"type": "subscribe", "request_id": "r1", "conversation_id": a.internal.ID}))
	readUntil(t, ws, func(f frame) bool { return f.Type == "ack" && f.RequestID == "r1" })

	// a read-only send on the shared chat is routed into the followed internal chat
	require.NoError(t, ws.WriteJSON(gin.H{"type": "send", "request_id": "r2", "conversation_id": a.shared.ID, "body": "from the road"}))
	readUntil(t, ws, func(f frame) bool { return f.Type == "ack" && f.RequestID == "r2" })
	msg := readUntil(t, ws, func(f frame) bool { return f.Type == "message" })
	assert.Equal(t, a.internal.ID, msg.ConversationID)
	assert.Contains(t, string(msg.Message), "from the road")

	status, _ := a.do(t, http.MethodPost, "/api/v1/conversations/"+a.internal.ID+"/messages", token(t, "auth-disp", messaging.IdentityUser), gin.H{"body": "copy"})
	require.Equal(t, http.StatusCreated, status)
	readUntil(t, ws, func(f frame) bool { return f.Type == "unread" && f.Total == 1 })

	require.NoError(t, ws.WriteJSON(gin.H{"type": "subscribe", "request_id": "r3", "conversation_id": "missing"}))
	e := readUntil(t, ws, func(f frame) bool { return f.RequestID == "r3" })
	assert.Equal(t, "error", e.Type)
	assert.Equal(t, "not_found", e.Code)
}
