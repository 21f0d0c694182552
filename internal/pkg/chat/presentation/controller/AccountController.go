package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-messenger/internal/pkg/chat/application/usecase"
	"go-messenger/internal/pkg/chat/presentation/middleware"
)

// RegisterController creates an account.
type RegisterController struct {
	UC      *usecase.RegisterUserUseCase
	timeout time.Duration
}

func NewRegisterController(uc *usecase.RegisterUserUseCase, timeout time.Duration) *RegisterController {
	return &RegisterController{UC: uc, timeout: timeout}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

func (h *RegisterController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		u, err := h.UC.Execute(ctx, usecase.RegisterUserInput{Email: req.Email, Name: req.Name, Password: req.Password})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// LoginController exchanges credentials for a session token.
type LoginController struct {
	UC      *usecase.SessionUseCase
	timeout time.Duration
}

func NewLoginController(uc *usecase.SessionUseCase, timeout time.Duration) *LoginController {
	return &LoginController{UC: uc, timeout: timeout}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *LoginController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		s, err := h.UC.Login(ctx, usecase.LoginInput{Email: req.Email, Password: req.Password})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// LogoutController revokes the session the request was authenticated with.
type LogoutController struct {
	UC      *usecase.SessionUseCase
	timeout time.Duration
}

func NewLogoutController(uc *usecase.SessionUseCase, timeout time.Duration) *LogoutController {
	return &LogoutController{UC: uc, timeout: timeout}
}

func (h *LogoutController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		if err := h.UC.Logout(ctx, middleware.SessionToken(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// CurrentUserController returns the authenticated user.
type CurrentUserController struct{}

func NewCurrentUserController() *CurrentUserController { return &CurrentUserController{} }

func (h *CurrentUserController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		user.HashedPassword = nil
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfileController changes the caller's name and avatar.
type UpdateProfileController struct {
	UC      *usecase.UpdateProfileUseCase
	timeout time.Duration
}

func NewUpdateProfileController(uc *usecase.UpdateProfileUseCase, timeout time.Duration) *UpdateProfileController {
	return &UpdateProfileController{UC: uc, timeout: timeout}
}

type updateProfileRequest struct {
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

func (h *UpdateProfileController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		u, err := h.UC.Execute(ctx, usecase.UpdateProfileInput{User: user, Name: req.Name, Image: req.Image})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// UpdateUserRoleController lets an admin change another user's role.
type UpdateUserRoleController struct {
	UC      *usecase.UpdateUserRoleUseCase
	timeout time.Duration
}

func NewUpdateUserRoleController(uc *usecase.UpdateUserRoleUseCase, timeout time.Duration) *UpdateUserRoleController {
	return &UpdateUserRoleController{UC: uc, timeout: timeout}
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *UpdateUserRoleController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req updateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()
		u, err := h.UC.Execute(ctx, usecase.UpdateUserRoleInput{Actor: user, UserID: c.Param("userId"), Role: req.Role})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
