package services

import (
	"context"

	"mira-sales-pipeline/internal/models"
)

// External collaborators. The core owns only these contracts; wire clients,
// channel adapters and persistence mechanics live outside.

// MessengerClient delivers a reply back to the customer's chat channel. The
// channel keeps its own delivery retry policy.
type MessengerClient interface {
	Send(ctx context.Context, conversationID, text string) error
}

// CRMClient creates deals in the sales CRM.
type CRMClient interface {
	CreateDeal(ctx context.Context, req *models.DealRequest) (string, error)
	CreateLegalDeal(ctx context.Context, req *models.DealRequest, company string) (string, error)
}

// OperatorAlerter notifies human operators out of band. Best effort; the
// caller swallows failures locally.
type OperatorAlerter interface {
	Notify(ctx context.Context, message string) error
}

// ConversationStore is the shared process-wide state the pipeline needs per
// turn: the dedup guard, the dialogue context, the conversation history and
// the audit stream.
type ConversationStore interface {
	ClaimMessage(ctx context.Context, messageID string) (bool, error)
	GetDialogueContext(ctx context.Context, conversationID string) (*models.DialogueContext, error)
	SaveDialogueContext(ctx context.Context, dc *models.DialogueContext) error
	GetHistory(ctx context.Context, conversationID string, limit int) ([]models.HistoryTurn, error)
	AppendHistory(ctx context.Context, conversationID string, turns ...models.HistoryTurn) error
	AppendAudit(ctx context.Context, record *models.AuditRecord) error
	HealthCheck(ctx context.Context) error
}

// Extractor turns one raw chat turn plus context into typed fields. It must
// degrade internally to a conservative fallback and never fail the turn.
type Extractor interface {
	Extract(ctx context.Context, text string, history []models.HistoryTurn, adHint *models.AdHint) *models.ExtractedFields
}

// DealCreator hands a completed lead to the CRM with reliability wrapping.
type DealCreator interface {
	CreateDeal(ctx context.Context, dc *models.DialogueContext) *models.DealResult
}
