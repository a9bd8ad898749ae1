package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
	"github.com/fonsecaaso/linkkeep/go-server/internal/validation"
)

type AuthHandler struct {
	svc    service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(svc service.AuthService) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: zap.L().With(zap.String("component", "AuthHandler")),
	}
}

// DTOs
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the OAuth2 password form; username carries the email.
type LoginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid JSON in Register", zap.Error(err))
		invalidPayload(c, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteMe removes the caller's account together with every URL it owns.
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	if err := h.svc.DeleteAccount(c.Request.Context(), user.ID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

func (h *AuthHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Username already registered",
			Code:  "USERNAME_TAKEN",
		})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Email already registered",
			Code:  "EMAIL_TAKEN",
		})
	case errors.Is(err, service.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request payload",
			Code:    "VALIDATION_ERROR",
			Details: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "Incorrect username or password",
			Code:  "INVALID_CREDENTIALS",
		})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "User not found",
			Code:  "USER_NOT_FOUND",
		})
	case errors.Is(err, repository.ErrDatabaseError):
		h.logger.Error("Database error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Database error",
			Code:  "DB_ERROR",
		})
	default:
		h.logger.Error("Unexpected service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
