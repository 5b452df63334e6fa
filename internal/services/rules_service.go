package services

import (
	"strings"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

type Decision string

const (
	DecisionProceed       Decision = "proceed"
	DecisionDecline       Decision = "decline"
	DecisionPersonalQuote Decision = "personal_quote"
)

type CustomerType string

const (
	CustomerLegal   CustomerType = "legal"
	CustomerPrivate CustomerType = "private"
)

// RuleOutcome is the result of one pass through the ordered policy checks.
// Decline and personal-quote outcomes are terminal for the turn; a proceed
// outcome only annotates the customer classification.
type RuleOutcome struct {
	Decision     Decision
	Rule         string
	Reason       string
	CustomerType CustomerType
	Confidence   float64
}

// RulesService runs the deterministic business policy: an ordered predicate
// list where the first hard match wins.
type RulesService struct {
	cfg    config.RulesConfig
	logger *logger.Logger
}

func NewRulesService(cfg config.RulesConfig, log *logger.Logger) *RulesService {
	return &RulesService{cfg: cfg, logger: log}
}

// Evaluate applies checks in order: forbidden service, floor restriction,
// heavy item, customer classification (annotation only), minimum workers.
// The context must already have the fresh extraction merged in.
func (service *RulesService) Evaluate(dc *models.DialogueContext, ex *models.ExtractedFields, text string) *RuleOutcome {
	if outcome := service.checkForbiddenService(ex); outcome != nil {
		return service.logged(dc, outcome)
	}

	if outcome := service.checkFloorRestriction(ex); outcome != nil {
		return service.logged(dc, outcome)
	}

	if outcome := service.checkHeavyItem(dc, ex); outcome != nil {
		return service.logged(dc, outcome)
	}

	customerType, confidence := service.ClassifyCustomer(dc, ex, text)
	if customerType == CustomerLegal {
		dc.IsLegalEntity = true
		dc.LegalConfidence = confidence
	}

	if outcome := service.checkMinimumWorkers(dc, customerType); outcome != nil {
		outcome.CustomerType = customerType
		outcome.Confidence = confidence
		return service.logged(dc, outcome)
	}

	return service.logged(dc, &RuleOutcome{
		Decision:     DecisionProceed,
		CustomerType: customerType,
		Confidence:   confidence,
	})
}

func (service *RulesService) checkForbiddenService(ex *models.ExtractedFields) *RuleOutcome {
	if !ex.Flags.IsForbiddenService {
		return nil
	}
	return &RuleOutcome{
		Decision: DecisionDecline,
		Rule:     "forbidden_service",
		Reason:   "requested work is outside loading and moving services",
	}
}

func (service *RulesService) checkFloorRestriction(ex *models.ExtractedFields) *RuleOutcome {
	if ex.Floor <= service.cfg.MaxFloorWithoutElevator || ex.HasElevator {
		return nil
	}
	return &RuleOutcome{
		Decision: DecisionDecline,
		Rule:     "floor_restriction",
		Reason:   "carrying above the third floor without an elevator is not accepted",
	}
}

func (service *RulesService) checkHeavyItem(dc *models.DialogueContext, ex *models.ExtractedFields) *RuleOutcome {
	if ex.SingleItemWeightKG < service.cfg.HeavyItemKg && !ex.Flags.NeedsTackling {
		return nil
	}

	dc.Special.IsTakelage = true
	dc.Special.RequiresPersonalCalc = true

	return &RuleOutcome{
		Decision: DecisionPersonalQuote,
		Rule:     "heavy_item",
		Reason:   "heavy single item requires tackling and a personalized quote",
	}
}

var (
	strongLegalTerms = []string{"invoice", "contract", "legal entity", "llc", "ltd", "vat", "cashless"}
	businessTerms    = []string{"office", "warehouse", "store", "company", "shop"}
	privateTerms     = []string{"apartment", "flat", "house", "home", "dacha"}
)

// ClassifyCustomer returns the customer type with a confidence weight. It
// never branches the turn by itself.
func (service *RulesService) ClassifyCustomer(dc *models.DialogueContext, ex *models.ExtractedFields, text string) (CustomerType, float64) {
	lowered := strings.ToLower(text)

	if ex.Flags.IsLegalClient || containsAnyTerm(lowered, strongLegalTerms) {
		return CustomerLegal, 1.0
	}

	if dc.People >= service.cfg.LegalPeopleCount {
		return CustomerLegal, 0.8
	}

	if containsAnyTerm(lowered, privateTerms) {
		return CustomerPrivate, 0.9
	}

	if containsAnyTerm(lowered, businessTerms) {
		return CustomerLegal, 0.6
	}

	return CustomerPrivate, 0.7
}

func (service *RulesService) checkMinimumWorkers(dc *models.DialogueContext, customerType CustomerType) *RuleOutcome {
	if customerType != CustomerPrivate || dc.People <= 0 || dc.People >= service.cfg.MinWorkers {
		return nil
	}
	return &RuleOutcome{
		Decision: DecisionDecline,
		Rule:     "minimum_workers",
		Reason:   "private orders start at two workers",
	}
}

func (service *RulesService) logged(dc *models.DialogueContext, outcome *RuleOutcome) *RuleOutcome {
	service.logger.Debug("Business rules evaluated",
		"conversation_id", dc.ConversationID,
		"decision", string(outcome.Decision),
		"rule", outcome.Rule,
		"customer_type", string(outcome.CustomerType),
		"confidence", outcome.Confidence)
	return outcome
}

func containsAnyTerm(text string, terms []string) bool {
	for _, term := range terms {
		if containsWholeTerm(text, term) {
			return true
		}
	}
	return false
}

// containsWholeTerm matches on word boundaries so "house" does not hit
// inside "warehouse". Terms may span multiple words.
func containsWholeTerm(text, term string) bool {
	for start := 0; start <= len(text)-len(term); {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
