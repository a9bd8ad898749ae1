package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/middleware"
	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func invalidPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request payload",
		Code:    "VALIDATION_ERROR",
		Details: describeBindError(err),
	})
}

func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Field() + " failed " + fe.Tag()
	}
	return err.Error()
}

// currentUser writes a 401 when the auth middleware did not run.
func currentUser(c *gin.Context, logger *zap.Logger) (*model.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		logger.Warn("Failed to extract user from context", zap.Error(err))
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "Unauthorized access",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return user, true
}
