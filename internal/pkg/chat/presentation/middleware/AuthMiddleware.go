package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/usecase"
)

const (
	currentUserKey = "current_user"
	sessionKey     = "session_token"
)

// Authenticator resolves a bearer token; usecase.SessionUseCase implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*chat.User, error)
}

// RequireUser rejects requests without a valid session with 401 and stores the
// user in the gin context. The token comes from "Authorization: Bearer <token>",
// or from the "token" query parameter for websocket upgrades.
func RequireUser(auth Authenticator, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		user, err := auth.Authenticate(ctx, token)
		switch {
		case errors.Is(err, usecase.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		case err != nil:
			logx.WithContext(ctx).Errorw("session lookup failed", logx.Field("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(currentUserKey, *user)
		c.Set(sessionKey, token)
		c.Next()
	}
}

// BearerToken extracts the session token from the request.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (chat.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return chat.User{}, false
	}
	u, ok := v.(chat.User)
	return u, ok
}

// SessionToken returns the token RequireUser authenticated.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionKey)
}
