package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/handler"
)

const (
	PathHealth = "/health"
	PathReady  = "/ready"
)

// New builds the development API router over an in-memory store.
func New(store *backend.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	auth := handler.NewAuthHandler(store)
	tickets := handler.NewTicketHandler(store)
	operator := handler.NewOperatorHandler(store)

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(logger))
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready)

	api := r.Group("/api")
	{
		api.POST("/auth/login", auth.Login)
		api.POST("/auth/register", auth.Register)
	}

	authed := api.Group("", auth.RequireUser)
	{
		authed.GET("/auth/me", auth.Me)

		authed.GET("/tickets/", tickets.List)
		authed.POST("/tickets/", tickets.Create)
		authed.GET("/tickets/:id", tickets.Get)
		authed.POST("/tickets/:id/close", tickets.Close)

		authed.GET("/chat/:id/messages", tickets.Messages)
		authed.POST("/chat/:id/messages", tickets.Send)

		authed.GET("/operator/stats", operator.Stats)
		authed.GET("/operator/tickets", operator.List)
		authed.GET("/operator/tickets/:id", operator.Get)
		authed.POST("/operator/tickets/:id/take", operator.Take)
		authed.POST("/operator/tickets/:id/respond", operator.Respond)
	}

	return r
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
