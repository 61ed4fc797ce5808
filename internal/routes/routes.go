// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serialkit/internal/config"
	"serialkit/internal/handler"
	"serialkit/internal/middleware"
	"serialkit/internal/utils"
	"serialkit/pkg/serialkit"
)

// Router holds all dependencies for routing
type Router struct {
	config *config.Config
	logger *zap.Logger
	conn   *serialkit.Connection
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, conn *serialkit.Connection) *Router {
	return &Router{
		config: config,
		logger: logger,
		conn:   conn,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-bridge")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.conn, r.config)
	serialHandler := handler.NewSerialHandler(r.conn, r.logger)
	monitorHandler := handler.NewMonitorHandler(r.conn, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))
	serialHandler.RegisterRoutes(router.Group("/api/v1"))
	monitorHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Debug("Routes configured", zap.Int("routes", len(router.Routes())))
}
