package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/api/handlers"
	"github.com/yourusername/vidcollect-go/api/middleware"
	"github.com/yourusername/vidcollect-go/internal/app"
)

// SetupRouter sets up the HTTP router. baseCtx bounds batches that keep
// running after their submitting request returns.
func SetupRouter(
	baseCtx context.Context,
	runner *app.BatchRunner,
	pipeline *app.Pipeline,
	resolver handlers.BatchResolver,
	db handlers.Pinger,
	logsDir string,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	healthHandler := handlers.NewHealthHandler(runner, db)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		batchHandler := handlers.NewBatchHandler(runner, baseCtx, log)
		batches := v1.Group("/batches")
		{
			batches.POST("", batchHandler.SubmitBatch)
			batches.GET("/:id", batchHandler.GetBatch)
		}

		jobHandler := handlers.NewJobHandler(runner, pipeline, log)
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/retry", jobHandler.RetryJob)
		}

		credentialHandler := handlers.NewCredentialHandler(pipeline, log)
		v1.POST("/credentials/:platform", credentialHandler.SetCredentials)

		resolveHandler := handlers.NewResolveHandler(resolver)
		v1.POST("/resolve", resolveHandler.Resolve)

		logHandler := handlers.NewLogHandler(logsDir, log)
		v1.GET("/logs/:category", logHandler.GetLogs)
		v1.GET("/logs/:category/stream", logHandler.StreamLogs)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
