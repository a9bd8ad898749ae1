package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/qr"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
)

// URLService is the part of *service.URLService the handlers use.
type URLService interface {
	Create(ctx context.Context, targetURL string, ownerID *uuid.UUID) (*model.URL, error)
	RedirectAndCount(ctx context.Context, key string) (*model.URL, error)
	GetPublic(ctx context.Context, key string) (*model.URL, error)
	GetOwned(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error)
	Deactivate(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error)
	Delete(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error)
}

type CreateURLRequest struct {
	TargetURL string `json:"target_url"`
}

// URLInfo is the owner's view of a URL, secret key included.
type URLInfo struct {
	model.URL
	ShortURL string `json:"short_url"`
}

type PublicURLResponse struct {
	model.PublicURL
	ShortURL string `json:"short_url"`
}

type URLHandler struct {
	service       URLService
	publicBaseURL string
	logger        *zap.Logger
}

func NewURLHandler(service URLService, publicBaseURL string) *URLHandler {
	return &URLHandler{
		service:       service,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        zap.L().With(zap.String("component", "URLHandler")),
	}
}

func (h *URLHandler) shortURL(key string) string {
	return h.publicBaseURL + "/" + key
}

func (h *URLHandler) info(url *model.URL) URLInfo {
	return URLInfo{URL: *url, ShortURL: h.shortURL(url.Key)}
}

func (h *URLHandler) CreateURL(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	url, err := h.service.Create(c.Request.Context(), req.TargetURL, &user.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.info(url))
}

func (h *URLHandler) ListURLs(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	urls, err := h.service.ListOwned(c.Request.Context(), user.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	infos := make([]URLInfo, 0, len(urls))
	for i := range urls {
		infos = append(infos, h.info(&urls[i]))
	}
	c.JSON(http.StatusOK, infos)
}

// Redirect sends the visitor to the target and counts the click.
func (h *URLHandler) Redirect(c *gin.Context) {
	url, err := h.service.RedirectAndCount(c.Request.Context(), c.Param("short_key"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url.TargetURL)
}

func (h *URLHandler) GetURLDetails(c *gin.Context) {
	url, err := h.service.GetPublic(c.Request.Context(), c.Param("short_key"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, PublicURLResponse{
		PublicURL: url.Public(),
		ShortURL:  h.shortURL(url.Key),
	})
}

func (h *URLHandler) QRCode(c *gin.Context) {
	size, err := qr.ParseSize(c.Query("size"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request payload",
			Code:    "VALIDATION_ERROR",
			Details: err.Error(),
		})
		return
	}

	url, err := h.service.GetPublic(c.Request.Context(), c.Param("short_key"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	png, err := qr.PNG(h.shortURL(url.Key), size)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *URLHandler) GetInfo(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	url, err := h.service.GetOwned(c.Request.Context(), c.Param("secret_key"), user.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.info(url))
}

func (h *URLHandler) Deactivate(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	if _, err := h.service.Deactivate(c.Request.Context(), c.Param("secret_key"), user.ID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "URL deactivated successfully"})
}

func (h *URLHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}

	if _, err := h.service.Delete(c.Request.Context(), c.Param("secret_key"), user.ID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "URL deleted successfully"})
}

func (h *URLHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid URL format",
			Code:    "INVALID_URL",
			Details: err.Error(),
		})
	case errors.Is(err, service.ErrURLDeactivated):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "URL is deactivated",
			Code:  "URL_DEACTIVATED",
		})
	case errors.Is(err, service.ErrURLNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Short URL not found",
			Code:  "URL_NOT_FOUND",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "Permission denied",
			Code:  "FORBIDDEN",
		})
	case errors.Is(err, service.ErrKeyspaceExhausted):
		h.logger.Error("Key generation max attempts reached", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Service temporarily unavailable",
			Code:  "ID_GENERATION_FAILED",
		})
	case errors.Is(err, repository.ErrDatabaseError):
		h.logger.Error("Database error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Database error",
			Code:  "DB_ERROR",
		})
	default:
		h.logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
