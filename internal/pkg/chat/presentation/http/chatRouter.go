package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/infrastructure/realtime"
	"go-messenger/internal/pkg/chat/application/usecase"
	"go-messenger/internal/pkg/chat/presentation/controller"
	"go-messenger/internal/pkg/chat/presentation/middleware"
)

// Dependencies bundles the use cases the HTTP surface is built from.
type Dependencies struct {
	Register           *usecase.RegisterUserUseCase
	Sessions           *usecase.SessionUseCase
	UpdateProfile      *usecase.UpdateProfileUseCase
	UpdateUserRole     *usecase.UpdateUserRoleUseCase
	CreateConversation *usecase.CreateConversationUseCase
	ListConversations  *usecase.ListConversationsUseCase
	GetConversation    *usecase.GetConversationUseCase
	DeleteConversation *usecase.DeleteConversationUseCase
	SendMessage        *usecase.SendMessageUseCase
	GetMessages        *usecase.GetMessageUseCase
	MarkSeen           *usecase.MarkSeenUseCase
	AuthorizeChannel   *usecase.AuthorizeChannelUseCase

	Router   *realtime.Router
	Verifier controller.ChannelVerifier

	RequestTimeout time.Duration
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Dependencies) {
	t := d.RequestTimeout

	// Public account endpoints.
	g.POST("/register", controller.NewRegisterController(d.Register, t).Handle())
	g.POST("/login", controller.NewLoginController(d.Sessions, t).Handle())

	auth := g.Group("", middleware.RequireUser(d.Sessions, t))
	auth.POST("/logout", controller.NewLogoutController(d.Sessions, t).Handle())
	auth.GET("/me", controller.NewCurrentUserController().Handle())
	auth.POST("/settings", controller.NewUpdateProfileController(d.UpdateProfile, t).Handle())
	auth.PATCH("/users/:userId/role", controller.NewUpdateUserRoleController(d.UpdateUserRole, t).Handle())

	auth.GET("/conversations", controller.NewListConversationsController(d.ListConversations, t).Handle())
	auth.POST("/conversations", controller.NewCreateConversationController(d.CreateConversation, t).Handle())
	auth.GET("/conversations/:conversationId", controller.NewGetConversationController(d.GetConversation, t).Handle())
	auth.DELETE("/conversations/:conversationId", controller.NewDeleteConversationController(d.DeleteConversation, t).Handle())
	auth.POST("/conversations/:conversationId/seen", controller.NewMarkSeenController(d.MarkSeen, t).Handle())
	auth.GET("/conversations/:conversationId/messages", controller.NewGetMessageController(d.GetMessages, t).Handle())
	auth.POST("/messages", controller.NewSendMessageController(d.SendMessage, t).Handle())

	// Realtime: channel grants and the websocket itself.
	auth.POST("/realtime/auth", controller.NewAuthorizeChannelController(d.AuthorizeChannel, t).Handle())
	if d.Router != nil && d.Verifier != nil {
		socketCtl := controller.NewChatSocketController(d.Router, d.Verifier, d.SendMessage, d.MarkSeen)
		auth.GET("/realtime/ws", socketCtl.Handle())
	}
}
