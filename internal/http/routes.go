package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/confessly/internal/config"
	"github.com/sujalbistaa/confessly/internal/ws"
)

const limiterPruneInterval = 10 * time.Minute

// SetupRoutes configures all application routes and middleware. Call
// env.Close on shutdown.
func SetupRoutes(router *gin.Engine, env *Env, cfg *config.Config) {
	env.auth = moderatorAuth{adminToken: cfg.AdminToken, jwtSecret: []byte(cfg.ModeratorSecret)}
	if env.BaseURL == "" {
		env.BaseURL = cfg.PublicBaseURL
	}
	env.stop = make(chan struct{})

	// --- Middleware ---
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	allowAll := len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*"
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !allowAll,
	}))

	// --- Rate limiters ---
	confessionLimiter := NewIPRateLimiter(rate.Limit(confessionRPS), confessionBurst)
	commentLimiter := NewIPRateLimiter(rate.Limit(commentRPS), commentBurst)
	likeLimiter := NewIPRateLimiter(rate.Limit(likeRPS), likeBurst)
	for _, l := range []*IPRateLimiter{confessionLimiter, commentLimiter, likeLimiter} {
		go l.pruneEvery(limiterPruneInterval, env.stop)
	}

	moderator := ModeratorMiddleware(cfg.AdminToken, cfg.ModeratorSecret)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.GET("/confessions", env.ListConfessions)
		api.POST("/confessions", RateLimitMiddleware(confessionLimiter), env.CreateConfession)
		api.GET("/confessions/:id", env.GetConfession)
		api.GET("/confessions/:id/comments", env.ListComments)
		api.POST("/confessions/:id/comments", RateLimitMiddleware(commentLimiter), env.CreateComment)
		api.POST("/confessions/:id/like", RateLimitMiddleware(likeLimiter), env.LikeConfession)

		api.GET("/moderator", env.ModeratorStatus)
		api.PUT("/confessions/:id", moderator, env.UpdateConfession)
		api.DELETE("/confessions/:id", moderator, env.DeleteConfession)
		api.DELETE("/comments/:id", moderator, env.DeleteComment)
	}

	// --- WebSocket Route ---
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, c.Writer, c.Request)
	})

	// --- Share pages ---
	router.SetHTMLTemplate(sharePage)
	router.GET("/c/:slug", env.SharePage)

	router.GET("/healthz", env.Healthz)
}
