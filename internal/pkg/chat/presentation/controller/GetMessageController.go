package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
)

// GetMessageController handles fetching messages by conversation ID (one controller per endpoint)
type GetMessageController struct {
	UC      *usecase.GetMessageUseCase
	timeout time.Duration
}

func NewGetMessageController(uc *usecase.GetMessageUseCase, timeout time.Duration) *GetMessageController {
	return &GetMessageController{UC: uc, timeout: timeout}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		limit := usecase.DefaultMessageLimit
		offset := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		if limit > usecase.MaxMessageLimit {
			limit = usecase.MaxMessageLimit
		}

		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			ConversationID: c.Param("conversationId"),
			Viewer:         user,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"offset":   offset,
			"count":    len(msgs),
		})
	}
}
