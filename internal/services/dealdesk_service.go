package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
	"mira-sales-pipeline/internal/reliability"
)

const crmDependency = "crm"

// DealDeskService pushes a completed conversation into the CRM. Every call
// goes through the reliability executor under the "crm" dependency name, so
// CRM outages trip one breaker shared by all conversations.
type DealDeskService struct {
	crm      CRMClient
	alerter  OperatorAlerter
	executor *reliability.Executor
	region   string
	logger   *logger.Logger
}

func NewDealDeskService(crm CRMClient, alerter OperatorAlerter, executor *reliability.Executor, log *logger.Logger) *DealDeskService {
	return &DealDeskService{
		crm:      crm,
		alerter:  alerter,
		executor: executor,
		region:   "RU",
		logger:   log,
	}
}

// NormalizePhone parses a raw customer-typed phone and returns it in E.164.
// A number that cannot be parsed or is not valid for the region yields a
// validation error and no downstream call is made.
func (service *DealDeskService) NormalizePhone(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", models.NewValidationError("PHONE_EMPTY", "phone number is empty")
	}

	parsed, err := phonenumbers.Parse(cleaned, service.region)
	if err != nil {
		return "", models.NewValidationError("PHONE_UNPARSEABLE", "phone number could not be parsed").WithCause(err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", models.NewValidationError("PHONE_INVALID", "phone number is not valid")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// CreateDeal normalizes the phone, builds the deal request from the merged
// context and sends it through retry plus circuit breaker. On delivery
// failure the lead is escalated to an operator and reported as degraded,
// never silently dropped.
func (service *DealDeskService) CreateDeal(ctx context.Context, dc *models.DialogueContext) *models.DealResult {
	start := time.Now()

	phone, err := service.NormalizePhone(dc.Phone)
	if err != nil {
		service.logger.LogService("dealdesk", "create_deal", time.Since(start), map[string]interface{}{
			"conversation_id": dc.ConversationID,
			"error_kind":      models.DealErrorValidation,
		}, err)
		return &models.DealResult{Success: false, ErrorKind: models.DealErrorValidation, Reason: err.Error()}
	}

	request := &models.DealRequest{
		Phone:       phone,
		City:        dc.City,
		Hours:       dc.Hours,
		People:      dc.People,
		CompanyName: dc.CompanyName,
		Summary:     service.buildSummary(dc, phone),
		IsLegal:     dc.IsLegalEntity,
	}

	var dealID string
	err = service.executor.Do(ctx, crmDependency, "create_deal", func(callCtx context.Context) error {
		var callErr error
		if request.IsLegal {
			dealID, callErr = service.crm.CreateLegalDeal(callCtx, request, dc.CompanyName)
		} else {
			dealID, callErr = service.crm.CreateDeal(callCtx, request)
		}
		return callErr
	})
	if err != nil {
		service.escalate(ctx, dc, phone, err)
		service.logger.LogService("dealdesk", "create_deal", time.Since(start), map[string]interface{}{
			"conversation_id": dc.ConversationID,
			"error_kind":      models.DealErrorUnavailable,
		}, err)
		return &models.DealResult{Success: false, ErrorKind: models.DealErrorUnavailable, Reason: err.Error()}
	}

	service.logger.LogService("dealdesk", "create_deal", time.Since(start), map[string]interface{}{
		"conversation_id": dc.ConversationID,
		"deal_id":         dealID,
		"is_legal":        request.IsLegal,
	}, nil)

	return &models.DealResult{Success: true, DealID: dealID}
}

// escalate fires a best-effort operator alert carrying the full lead. Alert
// failures are swallowed after logging, the alert channel must never make a
// bad situation worse.
func (service *DealDeskService) escalate(ctx context.Context, dc *models.DialogueContext, phone string, cause error) {
	message := fmt.Sprintf(
		"CRM deal delivery failed.\nConversation: %s\nPhone: %s\n%s\nCause: %v",
		dc.ConversationID, phone, service.buildSummary(dc, phone), cause)

	if err := service.alerter.Notify(ctx, message); err != nil {
		service.logger.Error("Operator alert delivery failed",
			"conversation_id", dc.ConversationID,
			"error", err.Error())
	}
}

func (service *DealDeskService) buildSummary(dc *models.DialogueContext, phone string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lead from chat %s: %d loaders, %d hours, city %s, phone %s.",
		dc.ConversationID, dc.People, dc.Hours, dc.City, phone)
	if dc.IsLegalEntity {
		fmt.Fprintf(&sb, " Legal entity")
		if dc.CompanyName != "" {
			fmt.Fprintf(&sb, " (%s)", dc.CompanyName)
		}
		sb.WriteString(".")
	}
	if dc.Special.IsTakelage {
		sb.WriteString(" Needs tackling, personal quote.")
	}
	return sb.String()
}
