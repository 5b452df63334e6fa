package services_test

import (
	"strings"
	"testing"

	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/services"
)

func TestComposerNeverAsksForKnownFields(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	dc := models.NewDialogueContext("conv-1")
	dc.State = models.StateBookingCollection
	dc.City = "Kazan"
	dc.People = 2

	reply := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{},
		Outcome:   &services.RuleOutcome{Decision: services.DecisionProceed},
	})

	lowered := strings.ToLower(reply)
	if strings.Contains(lowered, "city") {
		t.Errorf("reply asks for the city although it is known: %q", reply)
	}
	if strings.Contains(lowered, "how many loaders") {
		t.Errorf("reply asks for crew size although it is known: %q", reply)
	}
	if !strings.Contains(lowered, "hours") {
		t.Errorf("reply should ask for the missing hours: %q", reply)
	}
}

func TestMissingFieldsOrder(t *testing.T) {
	dc := models.NewDialogueContext("conv-2")
	dc.Hours = 3

	missing := services.MissingFields(dc)
	if len(missing) != 3 {
		t.Fatalf("expected 3 missing fields, got %d: %v", len(missing), missing)
	}
	if missing[0] != "the city" {
		t.Errorf("city must be asked first, got %q", missing[0])
	}
}

func TestComposerQuoteReply(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	dc := models.NewDialogueContext("conv-3")
	dc.State = models.StatePriceInquiry
	dc.City = "X"
	dc.People = 2
	dc.Hours = 3

	reply := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{},
		Outcome:   &services.RuleOutcome{Decision: services.DecisionProceed},
		Quote:     &models.Quote{City: "X", People: 2, Hours: 3, RatePerHour: 700, Total: 4200},
	})

	if !strings.Contains(reply, "4200") {
		t.Errorf("quote reply must carry the total: %q", reply)
	}
}

func TestComposerMinimumNotMetReply(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	dc := models.NewDialogueContext("conv-4")
	dc.State = models.StatePriceInquiry
	dc.City = "X"
	dc.People = 2
	dc.Hours = 1

	reply := composer.Compose(services.ComposeInput{
		Context:    dc,
		Extracted:  &models.ExtractedFields{},
		Outcome:    &services.RuleOutcome{Decision: services.DecisionProceed},
		PricingErr: &models.MinimumNotMetError{City: "X", MinHours: 2},
	})

	if !strings.Contains(reply, "2 hours") {
		t.Errorf("minimum reply must cite the city minimum: %q", reply)
	}
}

func TestComposerDeclineTemplates(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	for _, rule := range []string{"forbidden_service", "floor_restriction", "minimum_workers"} {
		dc := models.NewDialogueContext("conv-5")
		reply := composer.Compose(services.ComposeInput{
			Context:   dc,
			Extracted: &models.ExtractedFields{},
			Outcome:   &services.RuleOutcome{Decision: services.DecisionDecline, Rule: rule},
		})
		if reply == "" {
			t.Errorf("rule %s produced an empty decline", rule)
		}
	}
}

func TestComposerDealReplies(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	dc := models.NewDialogueContext("conv-6")
	dc.State = models.StateCompleted

	success := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{},
		Deal:      &models.DealResult{Success: true, DealID: "deal-1"},
	})
	if !strings.Contains(strings.ToLower(success), "booked") {
		t.Errorf("success reply should confirm the booking: %q", success)
	}

	degraded := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{},
		Deal:      &models.DealResult{Success: false, ErrorKind: models.DealErrorUnavailable},
	})
	lowered := strings.ToLower(degraded)
	if strings.Contains(lowered, "error") || strings.Contains(lowered, "crm") || strings.Contains(lowered, "fail") {
		t.Errorf("degraded reply must not surface technical failure: %q", degraded)
	}

	badPhone := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{},
		Deal:      &models.DealResult{Success: false, ErrorKind: models.DealErrorValidation},
	})
	if !strings.Contains(strings.ToLower(badPhone), "phone") {
		t.Errorf("validation reply should ask to re-send the phone: %q", badPhone)
	}
}

func TestComposerGreetingPrefix(t *testing.T) {
	composer := services.NewComposerService(testLogger(t))

	dc := models.NewDialogueContext("conv-7")
	dc.State = models.StateCityInquiry

	reply := composer.Compose(services.ComposeInput{
		Context:   dc,
		Extracted: &models.ExtractedFields{Flags: models.IntentFlags{IsGreeting: true}},
	})
	if !strings.Contains(reply, "Mira") {
		t.Errorf("greeting turn should introduce the assistant: %q", reply)
	}
}
