package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the HTTP surface: the inbound message webhook, health
// and stats probes, and the rate table reload hook.
func RegisterRoutes(router *gin.Engine, messages *MessageHandler, pricing *PricingHandler) {
	router.GET("/health", messages.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/messages", messages.HandleMessage)
		api.GET("/stats", messages.Stats)
		api.POST("/pricing/reload", pricing.Reload)
	}
}
