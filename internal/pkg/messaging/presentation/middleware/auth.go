package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

const identityKey = "messaging.identity"

// Claims are the bearer token claims: Subject is the auth user id and Kind
// selects which identity store resolves it.
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for subject. Used by tooling and tests;
// production tokens come from the auth provider.
func IssueToken(secret, subject string, kind messaging.IdentityKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses and verifies an HS256 token.
func ValidateToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth verifies the bearer token and resolves the caller's messaging
// identity. Websocket clients that cannot set headers may pass the token as
// the access_token query parameter.
func Auth(secret string, identities repository.IdentityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "authorization required")
			return
		}
		claims, err := ValidateToken(secret, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		id, err := resolveIdentity(c.Request.Context(), identities, claims)
		switch {
		case errors.Is(err, messaging.ErrIdentityNotFound):
			abort(c, http.StatusNotFound, "identity_not_found", messaging.ErrIdentityNotFound.Error())
			return
		case err != nil:
			abort(c, http.StatusInternalServerError, "internal_error", "could not resolve identity")
			return
		}

		c.Set(identityKey, *id)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (messaging.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return messaging.Identity{}, false
	}
	id, ok := v.(messaging.Identity)
	return id, ok
}

// SetIdentity stores id the way Auth does.
func SetIdentity(c *gin.Context, id messaging.Identity) {
	c.Set(identityKey, id)
}

func resolveIdentity(ctx context.Context, identities repository.IdentityRepository, claims *Claims) (*messaging.Identity, error) {
	switch messaging.IdentityKind(claims.Kind) {
	case messaging.IdentityDriver:
		return identities.DriverByAuthUser(ctx, claims.Subject)
	case messaging.IdentityUser, "":
		return identities.UserByAuthUser(ctx, claims.Subject)
	default:
		return nil, messaging.ErrIdentityNotFound
	}
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("access_token")
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"data":  nil,
		"error": gin.H{"code": code, "message": message},
	})
}
