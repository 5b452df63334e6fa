package models

import (
	"time"

	"github.com/google/uuid"
)

// AdHint carries the listing context a channel adapter attaches to a message
// when the customer writes from a specific ad.
type AdHint struct {
	AdvertisedCity string `json:"advertised_city,omitempty"`
	ItemRef        string `json:"item_ref,omitempty"`
}

// InboundMessage is the channel-agnostic shape every adapter produces.
// The core never sees channel-specific payloads.
type InboundMessage struct {
	MessageID      string    `json:"message_id" binding:"required"`
	ConversationID string    `json:"conversation_id" binding:"required"`
	SenderID       string    `json:"sender_id"`
	Channel        string    `json:"channel"`
	Text           string    `json:"text" binding:"required"`
	ReceivedAt     time.Time `json:"received_at"`
	AdHint         *AdHint   `json:"ad_hint,omitempty"`
}

// HistoryTurn is one stored exchange half in a conversation.
type HistoryTurn struct {
	Role string    `json:"role"` // "customer" or "bot"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// TurnResult is what one processed inbound turn produced.
type TurnResult struct {
	ConversationID string   `json:"conversation_id"`
	MessageID      string   `json:"message_id"`
	RequestID      string   `json:"request_id"`
	Duplicate      bool     `json:"duplicate"`
	Reply          string   `json:"reply,omitempty"`
	State          string   `json:"state,omitempty"`
	Action         string   `json:"action,omitempty"`
	DealCreated    bool     `json:"deal_created"`
	DealID         string   `json:"deal_id,omitempty"`
	TotalTimeMS    *float64 `json:"total_time_ms,omitempty"`
}

func GenerateRequestID() string {
	return uuid.New().String()
}
