package models

import "time"

// AuditRecord is the storage-agnostic per-turn audit entry. Its format is
// owned by the core; sinks decide where it lands.
type AuditRecord struct {
	ConversationID string           `json:"conversation_id"`
	MessageID      string           `json:"message_id"`
	RequestID      string           `json:"request_id"`
	Text           string           `json:"text"`
	Response       string           `json:"response"`
	Extracted      *ExtractedFields `json:"extracted,omitempty"`
	State          string           `json:"state"`
	Action         string           `json:"action"`
	Success        bool             `json:"success"`
	LatencyMS      float64          `json:"latency_ms"`
	DealCreated    bool             `json:"deal_created"`
	DealID         string           `json:"deal_id,omitempty"`
	Error          string           `json:"error,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
