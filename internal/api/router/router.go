package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minhvtb/songvault-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "download-api-service",
		})
	})

	downloadHandler := handler.NewDownloadHandler(deps)

	v1 := r.Group("/api/v1")
	{
		downloads := v1.Group("/downloads")
		{
			// POST /api/v1/downloads - Submit a track download (idempotent per id)
			downloads.POST("", downloadHandler.CreateDownload)

			// GET /api/v1/downloads - List downloads by status with pagination
			downloads.GET("", downloadHandler.ListDownloads)

			// GET /api/v1/downloads/:download_id - Current state, signed URL when completed
			downloads.GET("/:download_id", downloadHandler.GetDownload)

			// POST /api/v1/downloads/:download_id/requeue - Retry a failed download
			downloads.POST("/:download_id/requeue", downloadHandler.RequeueDownload)

			// DELETE /api/v1/downloads/:download_id - Remove a download record
			downloads.DELETE("/:download_id", downloadHandler.DeleteDownload)
		}

		// GET /api/v1/queue/stats - Aggregate counts and queue introspection
		v1.GET("/queue/stats", downloadHandler.QueueStats)
	}

	return r
}
