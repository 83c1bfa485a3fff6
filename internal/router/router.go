package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/el-gladiador/medflow-backend/internal/handler"
	"github.com/el-gladiador/medflow-backend/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(extractH *handler.ExtractHandler, healthH *handler.HealthHandler, log zerolog.Logger) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	r.GET("/health", healthH.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/extract", extractH.Extract)

	return r
}
