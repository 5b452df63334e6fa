package services

import (
	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// DialogueService advances the conversation state machine. It mutates only
// counters and the LegalAsked marker on the context; field merging happens
// before Next is called.
type DialogueService struct {
	cfg    config.DialogueConfig
	logger *logger.Logger
}

func NewDialogueService(cfg config.DialogueConfig, log *logger.Logger) *DialogueService {
	return &DialogueService{cfg: cfg, logger: log}
}

// Next computes the state for the current turn. The returned reason is a
// short transition label for logging and audit, not customer-facing text.
func (service *DialogueService) Next(dc *models.DialogueContext, ex *models.ExtractedFields) (models.DialogueState, string) {
	next, reason := service.transition(dc, ex)

	if next != dc.State {
		service.logger.Debug("Dialogue transition",
			"conversation_id", dc.ConversationID,
			"from", string(dc.State),
			"to", string(next),
			"reason", reason)
		dc.ResetProgressCounters()
	}
	dc.State = next
	return next, reason
}

func (service *DialogueService) transition(dc *models.DialogueContext, ex *models.ExtractedFields) (models.DialogueState, string) {
	// A phone number short-circuits straight to confirmation from any live
	// state, including an operator hand-off parked to capture exactly that.
	// Confirmation is entered only through this rule. Conversion always wins.
	if dc.Phone != "" && dc.State != models.StateCompleted {
		return models.StateBookingConfirmation, "phone_received"
	}

	if dc.Special.RequiresPersonalCalc && dc.Phone == "" {
		return models.StateHandoffOperator, "personal_quote"
	}

	switch dc.State {
	case models.StateGreeting:
		return service.routeByData(dc)
	case models.StateCityInquiry:
		return service.fromCityInquiry(dc)
	case models.StatePriceInquiry:
		return service.fromPriceInquiry(dc, ex)
	case models.StateBookingCollection:
		return service.fromBookingCollection(dc)
	case models.StateLegalClarification:
		return service.fromLegalClarification(dc)
	case models.StateIssueResolution:
		return service.fromIssueResolution(dc, ex)
	case models.StateBookingConfirmation:
		return models.StateCompleted, "deal_attempted"
	case models.StateHandoffOperator:
		return models.StateHandoffOperator, "awaiting_operator"
	case models.StateCompleted:
		return models.StateCompleted, "already_completed"
	default:
		return models.StateGreeting, "unknown_state_reset"
	}
}

// routeByData picks the working state from what the context already holds:
// no city means we must ask for it, a city with the core order fields means
// we can quote, a city alone means we keep collecting.
func (service *DialogueService) routeByData(dc *models.DialogueContext) (models.DialogueState, string) {
	if dc.City == "" {
		return models.StateCityInquiry, "city_missing"
	}
	if dc.HasCoreFields() {
		return models.StatePriceInquiry, "ready_to_quote"
	}
	return models.StateBookingCollection, "city_known"
}

func (service *DialogueService) fromCityInquiry(dc *models.DialogueContext) (models.DialogueState, string) {
	if dc.City != "" {
		return service.routeByData(dc)
	}
	dc.RetryCount++
	if dc.RetryCount >= service.cfg.MaxCityRetries {
		return models.StateHandoffOperator, "city_retries_exhausted"
	}
	return models.StateCityInquiry, "city_still_missing"
}

func (service *DialogueService) fromPriceInquiry(dc *models.DialogueContext, ex *models.ExtractedFields) (models.DialogueState, string) {
	if ex.Flags.IsObjection {
		return models.StateIssueResolution, "price_objection"
	}
	if ex.Flags.IsAffirmation {
		return models.StateBookingCollection, "quote_accepted"
	}
	return models.StatePriceInquiry, "awaiting_quote_reaction"
}

func (service *DialogueService) fromBookingCollection(dc *models.DialogueContext) (models.DialogueState, string) {
	if !dc.LegalAsked && service.isLargeOrder(dc) {
		return models.StateLegalClarification, "large_order"
	}
	return models.StateBookingCollection, "collecting_fields"
}

func (service *DialogueService) fromLegalClarification(dc *models.DialogueContext) (models.DialogueState, string) {
	dc.LegalAsked = true
	if dc.IsLegalEntity {
		return models.StateHandoffOperator, "legal_entity"
	}
	if dc.HasCoreFields() {
		return models.StatePriceInquiry, "private_ready_to_quote"
	}
	return models.StateBookingCollection, "private_collecting"
}

func (service *DialogueService) fromIssueResolution(dc *models.DialogueContext, ex *models.ExtractedFields) (models.DialogueState, string) {
	if ex.Flags.IsAffirmation {
		return service.routeByData(dc)
	}
	dc.FallbackCount++
	if dc.FallbackCount >= service.cfg.MaxFallbacks {
		return models.StateHandoffOperator, "fallbacks_exhausted"
	}
	return models.StateIssueResolution, "objection_open"
}

func (service *DialogueService) isLargeOrder(dc *models.DialogueContext) bool {
	return dc.People >= service.cfg.LargeOrderPeople || dc.Hours >= service.cfg.LargeOrderHours
}
