package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
)

const userKey = "current_user"

var (
	ErrMissingToken = errors.New("not authenticated")
	ErrMissingUser  = errors.New("user not found in context")
)

// AuthMiddleware resolves the bearer token to an active user and stores it
// in the context. Bad tokens get 401, disabled accounts 400.
func AuthMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, ErrMissingToken.Error(), "MISSING_TOKEN")
			return
		}

		user, err := auth.Resolve(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrInvalidToken) {
				unauthorized(c, "Could not validate credentials", "INVALID_TOKEN")
				return
			}
			zap.L().Error("Failed to resolve bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  "INTERNAL_ERROR",
			})
			return
		}

		if err := auth.RequireActive(user); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Inactive user",
				"code":  "INACTIVE_USER",
			})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*model.User, error) {
	value, exists := c.Get(userKey)
	if !exists {
		return nil, ErrMissingUser
	}

	user, ok := value.(*model.User)
	if !ok {
		return nil, ErrMissingUser
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, message, code string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  code,
	})
}
