package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
)

// ListConversationsController returns the caller's conversations, most recent first.
type ListConversationsController struct {
	UC      *usecase.ListConversationsUseCase
	timeout time.Duration
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, timeout time.Duration) *ListConversationsController {
	return &ListConversationsController{UC: uc, timeout: timeout}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		convs, err := h.UC.Execute(ctx, user)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs, "count": len(convs)})
	}
}

// GetConversationController returns one conversation with participants and messages.
type GetConversationController struct {
	UC      *usecase.GetConversationUseCase
	timeout time.Duration
}

func NewGetConversationController(uc *usecase.GetConversationUseCase, timeout time.Duration) *GetConversationController {
	return &GetConversationController{UC: uc, timeout: timeout}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.GetConversationInput{
			ConversationID: c.Param("conversationId"),
			Viewer:         user,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

// DeleteConversationController removes a conversation and replies with the
// snapshot taken before deletion.
type DeleteConversationController struct {
	UC      *usecase.DeleteConversationUseCase
	timeout time.Duration
}

func NewDeleteConversationController(uc *usecase.DeleteConversationUseCase, timeout time.Duration) *DeleteConversationController {
	return &DeleteConversationController{UC: uc, timeout: timeout}
}

func (h *DeleteConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		snapshot, err := h.UC.Execute(ctx, usecase.DeleteConversationInput{
			ConversationID: c.Param("conversationId"),
			Actor:          user,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// MarkSeenController records that the caller has seen the newest message.
type MarkSeenController struct {
	UC      *usecase.MarkSeenUseCase
	timeout time.Duration
}

func NewMarkSeenController(uc *usecase.MarkSeenUseCase, timeout time.Duration) *MarkSeenController {
	return &MarkSeenController{UC: uc, timeout: timeout}
}

// Handle replies with the refreshed message when a receipt was recorded and with
// the conversation otherwise.
func (h *MarkSeenController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.MarkSeenInput{
			ConversationID: c.Param("conversationId"),
			Viewer:         user,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Created && res.Message != nil {
			c.JSON(http.StatusOK, res.Message)
			return
		}
		c.JSON(http.StatusOK, res.Conversation)
	}
}
