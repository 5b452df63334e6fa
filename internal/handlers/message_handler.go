package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// Orchestration is what the HTTP layer needs from the turn pipeline.
type Orchestration interface {
	ProcessTurn(ctx context.Context, msg *models.InboundMessage) *models.TurnResult
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
}

// MessageHandler accepts channel-agnostic inbound messages. Channel adapters
// are responsible for translating their payloads into this shape before
// calling us.
type MessageHandler struct {
	orchestrator  Orchestration
	breakerStates func() map[string]string
	logger        *logger.Logger
}

func NewMessageHandler(orchestrator Orchestration, breakerStates func() map[string]string, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		orchestrator:  orchestrator,
		breakerStates: breakerStates,
		logger:        log,
	}
}

func (handler *MessageHandler) HandleMessage(c *gin.Context) {
	var msg models.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		handler.logger.WithError(err).Warn("Rejected malformed inbound message")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "message_id, conversation_id and text are required",
		})
		return
	}

	result := handler.orchestrator.ProcessTurn(c.Request.Context(), &msg)

	status := http.StatusOK
	if result.Duplicate {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (handler *MessageHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := handler.orchestrator.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (handler *MessageHandler) Stats(c *gin.Context) {
	stats := handler.orchestrator.GetStats()
	if handler.breakerStates != nil {
		stats["circuit_breakers"] = handler.breakerStates()
	}
	c.JSON(http.StatusOK, stats)
}
