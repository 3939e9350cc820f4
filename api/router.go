package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/api/handlers"
	"github.com/yourusername/vodgrab-go/api/middleware"
	"github.com/yourusername/vodgrab-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(queueMgr *app.QueueManager, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(queueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(queueMgr, log)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.AddJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/retry", jobHandler.RetryJob)
		}
	}

	return router
}
