package main

import (
	"messaging-platform/internal/auth"
	"messaging-platform/internal/calls"
	"messaging-platform/internal/gateway"
	"messaging-platform/internal/httpapi"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
	"messaging-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Auth     *auth.Manager
	Calls    *calls.Service
	Presence *presence.Service
	Messages *messaging.Service
	Reports  *reporting.Service
	Router   *gateway.Router
	Sessions *gateway.SessionHandler
	Registry *gateway.Registry
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	h := httpapi.Handlers{
		Auth:     deps.Auth,
		Calls:    deps.Calls,
		Presence: deps.Presence,
		Messages: deps.Messages,
		Reports:  deps.Reports,
		Router:   deps.Router,
		Registry: deps.Registry,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "connections": deps.Registry.Count()})
	})

	// Websocket endpoint. The session handler verifies the token itself
	// (browsers cannot attach Authorization headers to websocket dials).
	r.GET("/ws", deps.Sessions.Handle)

	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid})
		})

		callRoutes := v1.Group("/calls")
		{
			callRoutes.GET("/history", h.GetCallHistory)
			callRoutes.GET("/active", h.GetActiveCall)
		}

		presenceRoutes := v1.Group("/presence")
		{
			presenceRoutes.GET("/:user_id", h.GetPresence)
			presenceRoutes.POST("", h.UpdatePresence)
		}

		v1.GET("/conversations/:conversation_id/messages", h.GetConversationMessages)

		v1.GET("/reports/activity", h.GetActivitySummary)
	}
}
