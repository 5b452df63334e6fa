package models

import "time"

type DialogueState string

const (
	StateGreeting            DialogueState = "greeting"
	StateCityInquiry         DialogueState = "city_inquiry"
	StatePriceInquiry        DialogueState = "price_inquiry"
	StateBookingCollection   DialogueState = "booking_collection"
	StateLegalClarification  DialogueState = "legal_clarification"
	StateBookingConfirmation DialogueState = "booking_confirmation"
	StateIssueResolution     DialogueState = "issue_resolution"
	StateHandoffOperator     DialogueState = "handoff_operator"
	StateCompleted           DialogueState = "completed"
)

// SpecialFlags are sticky context annotations set by the rules engine. Unlike
// extraction intent flags they survive across turns once set.
type SpecialFlags struct {
	IsTakelage              bool `json:"is_takelage"`
	IsOutOfCity             bool `json:"is_out_of_city"`
	RequiresPersonalCalc    bool `json:"requires_personal_calc"`
	NeedsLegalClarification bool `json:"needs_legal_clarification"`
}

// DialogueContext is the per-conversation accumulated state. One instance per
// conversation_id, mutated every turn by merging the fresh extraction over it.
type DialogueContext struct {
	ConversationID string        `json:"conversation_id"`
	State          DialogueState `json:"state"`

	City        string `json:"city,omitempty"`
	Hours       int    `json:"hours,omitempty"`
	People      int    `json:"people,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`

	IsLegalEntity   bool    `json:"is_legal_entity"`
	LegalConfidence float64 `json:"legal_confidence,omitempty"`
	LegalAsked      bool    `json:"legal_asked"`

	Special SpecialFlags `json:"special_flags"`

	RetryCount    int       `json:"retry_count"`
	FallbackCount int       `json:"fallback_count"`
	LastActivity  time.Time `json:"last_activity"`
}

func NewDialogueContext(conversationID string) *DialogueContext {
	return &DialogueContext{
		ConversationID: conversationID,
		State:          StateGreeting,
		LastActivity:   time.Now(),
	}
}

// Merge folds a fresh extraction into the context. Every field keeps its last
// known good value: a non-empty/non-zero extracted value overwrites, an absent
// one never clears. City in particular, once set, is only replaced by a later
// explicit non-empty city (the customer changing their mind).
func (dc *DialogueContext) Merge(ex *ExtractedFields) {
	if ex.City != "" {
		dc.City = ex.City
	}
	if ex.PeopleCount > 0 {
		dc.People = ex.PeopleCount
	}
	if ex.Hours > 0 {
		dc.Hours = ex.Hours
	}
	if ex.Phone != "" {
		dc.Phone = ex.Phone
	}
	if ex.CompanyName != "" {
		dc.CompanyName = ex.CompanyName
	}
	dc.LastActivity = time.Now()
}

// HasCoreFields reports whether the context is complete enough to price.
func (dc *DialogueContext) HasCoreFields() bool {
	return dc.City != "" && dc.People > 0 && dc.Hours > 0
}

// ResetProgressCounters clears the escalation counters after forward progress.
func (dc *DialogueContext) ResetProgressCounters() {
	dc.RetryCount = 0
	dc.FallbackCount = 0
}
