package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
)

// CreateConversationController opens a group or a two-party conversation.
type CreateConversationController struct {
	UC      *usecase.CreateConversationUseCase
	timeout time.Duration
}

func NewCreateConversationController(uc *usecase.CreateConversationUseCase, timeout time.Duration) *CreateConversationController {
	return &CreateConversationController{UC: uc, timeout: timeout}
}

type createConversationRequest struct {
	IsGroup bool     `json:"is_group"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	UserID  string   `json:"user_id"`
}

// Handle replies 201 for a new conversation and 200 when an existing two-party
// conversation is returned.
func (h *CreateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.CreateConversationInput{
			Creator:   user,
			IsGroup:   req.IsGroup,
			Name:      req.Name,
			MemberIDs: req.Members,
			UserID:    req.UserID,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		c.JSON(status, res.Conversation)
	}
}
