package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

func authEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memory.New(nil)
	repo.AddUser(memory.User{ID: "u-1", AuthUserID: "auth-user", CompanyID: "co", FullName: "Una"})
	repo.AddDriver(memory.Driver{ID: "d-1", AuthUserID: "auth-driver", CompanyID: "co"})

	r := gin.New()
	r.GET("/me", Auth("s3cret", repo), func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"key": id.Key(), "company": id.CompanyID})
	})
	return r
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := IssueToken("s3cret", "auth-user", messaging.IdentityUser, time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "auth-user", claims.Subject)
	assert.Equal(t, "user", claims.Kind)

	_, err = ValidateToken("other", tok)
	assert.Error(t, err)

	expired, err := IssueToken("s3cret", "auth-user", messaging.IdentityUser, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("s3cret", expired)
	assert.Error(t, err)
}

func TestAuthResolvesIdentityByKind(t *testing.T) {
	r := authEngine(t)
	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "user header", header: "auth-user:user", status: http.StatusOK, body: `{"key":"user:u-1","company":"co"}`},
		{name: "driver query", query: "auth-driver:driver", status: http.StatusOK, body: `{"key":"driver:d-1","company":"co"}`},
		{name: "unknown driver", header: "auth-user:driver", status: http.StatusNotFound},
		{name: "missing", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", "Bearer "+issue(t, tt.header))
			}
			if tt.query != "" {
				req.URL.RawQuery = "access_token=" + issue(t, tt.query)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuthRejectsNonBearerScheme(t *testing.T) {
	r := authEngine(t)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"data":null,"error":{"code":"unauthorized","message":"authorization required"}}`, w.Body.String())
}

// issue signs "subject:kind".
func issue(t *testing.T, subjectKind string) string {
	t.Helper()
	subject, kind, _ := strings.Cut(subjectKind, ":")
	tok, err := IssueToken("s3cret", subject, messaging.IdentityKind(kind), time.Minute)
	require.NoError(t, err)
	return tok
}
