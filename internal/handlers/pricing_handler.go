package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mira-sales-pipeline/internal/pkg/logger"
)

// RateReloader hot-reloads the city rate table from its source file.
type RateReloader interface {
	Reload() error
}

type PricingHandler struct {
	pricing RateReloader
	logger  *logger.Logger
}

func NewPricingHandler(pricing RateReloader, log *logger.Logger) *PricingHandler {
	return &PricingHandler{pricing: pricing, logger: log}
}

func (handler *PricingHandler) Reload(c *gin.Context) {
	if err := handler.pricing.Reload(); err != nil {
		handler.logger.WithError(err).Error("Rate table reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "rate table reload failed, previous table kept",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
