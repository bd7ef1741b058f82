package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gdugdh24/yuno-backend/internal/delivery/http/handler"
	"github.com/gdugdh24/yuno-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/yuno-backend/internal/delivery/ws"
)

type Router struct {
	discoverHandler *handler.DiscoverHandler
	profileHandler  *handler.ProfileHandler
	wsHandler       *ws.Handler
	authMiddleware  *middleware.AuthMiddleware
}

func NewRouter(
	discoverHandler *handler.DiscoverHandler,
	profileHandler *handler.ProfileHandler,
	wsHandler *ws.Handler,
	authMiddleware *middleware.AuthMiddleware,
) *Router {
	return &Router{
		discoverHandler: discoverHandler,
		profileHandler:  profileHandler,
		wsHandler:       wsHandler,
		authMiddleware:  authMiddleware,
	}
}

func (r *Router) Setup() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	// Health check (supports both GET and HEAD)
	healthHandler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Real-time proximity socket; anonymous connections are allowed
	router.GET("/ws", r.authMiddleware.OptionalAuth(), r.wsHandler.ServeWS)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Protected routes
		protected := v1.Group("")
		protected.Use(r.authMiddleware.RequireAuth())
		{
			// Discover routes
			discover := protected.Group("/discover")
			{
				discover.GET("", r.discoverHandler.Discover)
				discover.GET("/stats", r.discoverHandler.Stats)
				discover.GET("/popular-interests", r.discoverHandler.PopularInterests)
			}

			// Profile routes
			profile := protected.Group("/profile")
			{
				profile.GET("/me", r.profileHandler.GetMyProfile)
				profile.PUT("/me", r.profileHandler.UpdateMyProfile)
				profile.GET("/:user_id", r.profileHandler.GetProfileByUserID)
			}
		}
	}

	return router
}
