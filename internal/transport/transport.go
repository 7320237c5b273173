// Package transport serves the conversion pipeline over HTTP.
//
// Routes:
//
//	POST /api/convert  multipart upload, field "file" plus optional parameters
//	GET  /health       liveness and tracer availability
//
// Uploads are parsed in memory and never written to disk.
package transport

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/vectorize-mcp/internal/transport/middleware"
)

// InitRoutes builds the engine. timeout bounds each request's context.
func InitRoutes(h *ConvertHandler, timeout time.Duration, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()

	// Multipart parts above this size spill to temp files.
	router.MaxMultipartMemory = h.MaxBodyBytes()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.Use(middleware.Timeout(timeout))
	{
		api.POST("/convert", h.Convert)
	}

	return router
}
