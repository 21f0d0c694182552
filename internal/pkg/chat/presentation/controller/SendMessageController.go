package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC      *usecase.SendMessageUseCase
	timeout time.Duration
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, timeout time.Duration) *SendMessageController {
	return &SendMessageController{UC: uc, timeout: timeout}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	ConversationID string  `json:"conversation_id" binding:"required"`
	Message        *string `json:"message"`
	Image          *string `json:"image"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: req.ConversationID,
			Sender:         user,
			Body:           req.Message,
			Image:          req.Image,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}
