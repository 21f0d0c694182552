package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
)

// AuthorizeChannelController signs a private-channel subscription for a socket.
type AuthorizeChannelController struct {
	UC      *usecase.AuthorizeChannelUseCase
	timeout time.Duration
}

func NewAuthorizeChannelController(uc *usecase.AuthorizeChannelUseCase, timeout time.Duration) *AuthorizeChannelController {
	return &AuthorizeChannelController{UC: uc, timeout: timeout}
}

// Accepts JSON or form-encoded bodies.
type authorizeChannelRequest struct {
	SocketID    string `json:"socket_id" form:"socket_id" binding:"required"`
	ChannelName string `json:"channel_name" form:"channel_name" binding:"required"`
}

func (h *AuthorizeChannelController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req authorizeChannelRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		grant, err := h.UC.Execute(ctx, usecase.AuthorizeChannelInput{
			User:        user,
			SocketID:    req.SocketID,
			ChannelName: req.ChannelName,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, grant)
	}
}
