package services

import (
	"errors"
	"fmt"
	"strings"

	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// ComposeInput carries everything the turn decided: the merged context, the
// rules outcome, the pricing result when one was computed, and the deal
// result when a hand-off was attempted this turn.
type ComposeInput struct {
	Context    *models.DialogueContext
	Extracted  *models.ExtractedFields
	Outcome    *RuleOutcome
	Quote      *models.Quote
	PricingErr error
	Deal       *models.DealResult
}

// ComposerService turns a decision outcome into the customer-facing reply.
// It must never ask for a field the context already holds.
type ComposerService struct {
	logger *logger.Logger
}

func NewComposerService(log *logger.Logger) *ComposerService {
	return &ComposerService{logger: log}
}

func (service *ComposerService) Compose(in ComposeInput) string {
	reply := service.compose(in)
	if in.Extracted != nil && in.Extracted.Flags.IsGreeting && in.Context.State != models.StateCompleted {
		reply = "Hello! This is Mira from the moving crew service. " + reply
	}
	return reply
}

func (service *ComposerService) compose(in ComposeInput) string {
	dc := in.Context

	if in.Outcome != nil && in.Outcome.Decision == DecisionDecline {
		return declineText(in.Outcome.Rule)
	}
	if in.Outcome != nil && in.Outcome.Decision == DecisionPersonalQuote {
		if dc.Phone == "" {
			return "Moving heavy single items needs special rigging, so the price is calculated individually. Leave your phone number and our specialist will call you with an exact quote."
		}
		return "Thank you! Heavy items are quoted individually, our specialist will call you shortly with the exact price."
	}

	switch dc.State {
	case models.StateCityInquiry:
		return "Which city do you need the loaders in?"

	case models.StatePriceInquiry:
		return service.priceReply(in)

	case models.StateBookingCollection:
		return service.collectionReply(dc)

	case models.StateLegalClarification:
		return "Are you booking as a company or as a private person? For companies we work by contract with invoicing."

	case models.StateBookingConfirmation, models.StateCompleted:
		return service.dealReply(in)

	case models.StateIssueResolution:
		return "I understand the concern. Our crews are insured and the rate covers all the work, no hidden fees. What would make this work for you?"

	case models.StateHandoffOperator:
		return "I am passing your request to our operator, they will join this chat shortly to sort everything out."

	default:
		return service.collectionReply(dc)
	}
}

func (service *ComposerService) priceReply(in ComposeInput) string {
	dc := in.Context

	if in.PricingErr != nil {
		var minErr *models.MinimumNotMetError
		var cityErr *models.CityUnsupportedError
		switch {
		case errors.As(in.PricingErr, &minErr):
			return fmt.Sprintf("The minimum order in %s is %d hours. Shall I count it for %d hours?", minErr.City, minErr.MinHours, minErr.MinHours)
		case errors.As(in.PricingErr, &cityErr):
			return fmt.Sprintf("Unfortunately we do not work in %s yet. We are adding new cities, so do check back with us.", cityErr.City)
		}
	}

	if in.Quote != nil {
		return fmt.Sprintf("%d loaders for %d hours in %s will cost %d (%d per person per hour). Shall we book it? Just leave your phone number.",
			in.Quote.People, in.Quote.Hours, in.Quote.City, in.Quote.Total, in.Quote.RatePerHour)
	}

	return service.collectionReply(dc)
}

func (service *ComposerService) collectionReply(dc *models.DialogueContext) string {
	missing := MissingFields(dc)
	if len(missing) == 0 {
		return "Great, I have everything I need. Leave your phone number and I will book the crew."
	}
	return "To count the price for you I need " + joinHumanly(missing) + "."
}

func (service *ComposerService) dealReply(in ComposeInput) string {
	if in.Deal == nil {
		return "Thank you! I am booking the crew, one moment."
	}
	if in.Deal.Success {
		return "All set! Your crew is booked and our manager will call you shortly to confirm the details."
	}
	if in.Deal.ErrorKind == models.DealErrorValidation {
		return "I could not recognize that phone number. Could you send it again, digits only or starting with +7?"
	}
	return "Thank you, I have saved your request. We will contact you shortly to confirm the booking."
}

// MissingFields lists what still has to be asked for, in asking order. A
// field present in the context is never returned, which keeps replies from
// re-asking known data.
func MissingFields(dc *models.DialogueContext) []string {
	var missing []string
	if dc.City == "" {
		missing = append(missing, "the city")
	}
	if dc.People == 0 {
		missing = append(missing, "how many loaders you need")
	}
	if dc.Hours == 0 {
		missing = append(missing, "for how many hours")
	}
	if dc.Phone == "" {
		missing = append(missing, "your phone number")
	}
	return missing
}

func declineText(rule string) string {
	switch rule {
	case "forbidden_service":
		return "Sorry, we only provide loading and moving crews, we do not take on that kind of work. Happy to help when you need loaders!"
	case "floor_restriction":
		return "Unfortunately we cannot carry above the third floor without an elevator, our insurance does not cover it. If the building has a service elevator, we are glad to help."
	case "minimum_workers":
		return "We send crews of at least two loaders, one person cannot lift safely. Shall I count the price for two?"
	default:
		return "Sorry, we cannot take this order."
	}
}

func joinHumanly(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
