package route

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/handler"
	"github.com/fonsecaaso/linkkeep/go-server/internal/middleware"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
)

// ReservedKeys are the single-segment GET routes that would shadow a short
// key of the same spelling.
var ReservedKeys = []string{"health", "metrics", "urls"}

type Dependencies struct {
	DB             handler.Pinger
	AuthService    service.AuthService
	URLService     handler.URLService
	MetricsHandler http.Handler
	// AuthLimiter guards /register and /token.
	AuthLimiter   middleware.Limiter
	PublicBaseURL string
}

// NewAuthLimiter shares the budget across replicas through Redis when a
// client is configured and falls back to a per-process window otherwise.
func NewAuthLimiter(client *redis.Client, requests int, window time.Duration) middleware.Limiter {
	if client != nil {
		return middleware.NewRedisLimiter(client, "auth", requests, window)
	}
	zap.L().Info("Redis not configured, using in-memory rate limiter")
	return middleware.NewRateLimiter(requests, window)
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Location"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.MetricsMiddleware())

	authHandler := handler.NewAuthHandler(deps.AuthService)
	urlHandler := handler.NewURLHandler(deps.URLService, deps.PublicBaseURL)
	requireAuth := middleware.AuthMiddleware(deps.AuthService)
	limit := middleware.RateLimit(deps.AuthLimiter)

	r.GET("/health", handler.Health(deps.DB))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	r.POST("/register", limit, authHandler.Register)
	r.POST("/token", limit, authHandler.Login)

	users := r.Group("/users", requireAuth)
	users.GET("/me", authHandler.Me)
	users.DELETE("/me", authHandler.DeleteMe)

	r.POST("/url", requireAuth, urlHandler.CreateURL)
	r.GET("/urls", requireAuth, urlHandler.ListURLs)
	r.GET("/url/:short_key", urlHandler.GetURLDetails)
	r.GET("/qr/:short_key", urlHandler.QRCode)
	r.GET("/info/:secret_key", requireAuth, urlHandler.GetInfo)
	r.DELETE("/admin/:secret_key", requireAuth, urlHandler.Deactivate)
	r.DELETE("/delete/:secret_key", requireAuth, urlHandler.Delete)

	r.GET("/:short_key", urlHandler.Redirect)

	return r
}
