package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/usecase"
	"go-messenger/internal/pkg/chat/presentation/middleware"
)

const defaultRequestTimeout = 3 * time.Second

// statusOf maps use case and domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrValidation),
		errors.Is(err, chat.ErrInvalidConversation),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrInvalidImage),
		errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chat.ErrSelfConversation),
		errors.Is(err, chat.ErrGroupTooSmall),
		errors.Is(err, chat.ErrGroupNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrForbidden), errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": "..."}; internal failures are logged and masked.
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logx.WithContext(c.Request.Context()).Errorw("request failed",
			logx.Field("method", c.Request.Method),
			logx.Field("path", c.FullPath()),
			logx.Field("error", err.Error()))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// currentUser aborts with 401 when the auth middleware did not run.
func currentUser(c *gin.Context) (chat.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return u, ok
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
