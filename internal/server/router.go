package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dentsim/dentsim-backend/internal/handlers"
)

type RouterConfig struct {
	ActionHandler  *handlers.ActionHandler
	SessionHandler *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("dentsim-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/actions", cfg.ActionHandler.ProcessAction)
		api.GET("/cases", cfg.SessionHandler.ListCases)
		api.POST("/sessions", cfg.SessionHandler.StartSession)
		api.GET("/sessions/state", cfg.SessionHandler.GetState)
		api.GET("/sessions/chat", cfg.SessionHandler.GetChatLog)
		api.POST("/sessions/complete", cfg.SessionHandler.CompleteCase)
		api.GET("/results", cfg.SessionHandler.ListResults)
	}

	return router
}
