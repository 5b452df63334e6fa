package services_test

import (
	"testing"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/services"
)

func testRulesConfig() config.RulesConfig {
	return config.RulesConfig{
		MaxFloorWithoutElevator: 3,
		HeavyItemKg:             100,
		MinWorkers:              2,
		LegalPeopleCount:        8,
	}
}

func newTestRules(t *testing.T) *services.RulesService {
	t.Helper()
	return services.NewRulesService(testRulesConfig(), testLogger(t))
}

func TestForbiddenServiceAlwaysDeclines(t *testing.T) {
	rules := newTestRules(t)

	// Even with a complete, otherwise bookable order.
	dc := models.NewDialogueContext("conv-1")
	dc.City = "Kazan"
	dc.People = 3
	dc.Hours = 4

	ex := &models.ExtractedFields{
		City:        "Kazan",
		PeopleCount: 3,
		Hours:       4,
		Flags:       models.IntentFlags{IsForbiddenService: true},
	}

	outcome := rules.Evaluate(dc, ex, "remove construction waste, 3 workers 4 hours")
	if outcome.Decision != services.DecisionDecline {
		t.Fatalf("expected decline, got %s", outcome.Decision)
	}
	if outcome.Rule != "forbidden_service" {
		t.Errorf("expected forbidden_service rule, got %q", outcome.Rule)
	}
}

func TestFloorRestriction(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-2")
	ex := &models.ExtractedFields{Floor: 5, HasElevator: false}

	outcome := rules.Evaluate(dc, ex, "carry a sofa to the 5th floor, no elevator")
	if outcome.Decision != services.DecisionDecline || outcome.Rule != "floor_restriction" {
		t.Fatalf("expected floor_restriction decline, got %s/%s", outcome.Decision, outcome.Rule)
	}

	withElevator := &models.ExtractedFields{Floor: 5, HasElevator: true}
	outcome = rules.Evaluate(models.NewDialogueContext("conv-2b"), withElevator, "5th floor, there is an elevator")
	if outcome.Decision == services.DecisionDecline {
		t.Error("elevator present must lift the floor restriction")
	}
}

func TestHeavyItemRequiresPersonalQuote(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-3")
	ex := &models.ExtractedFields{SingleItemWeightKG: 250}

	outcome := rules.Evaluate(dc, ex, "need to move a 250 kg safe")
	if outcome.Decision != services.DecisionPersonalQuote {
		t.Fatalf("expected personal quote branch, got %s", outcome.Decision)
	}
	if !dc.Special.IsTakelage || !dc.Special.RequiresPersonalCalc {
		t.Error("heavy item must set the tackling and personal-calc flags")
	}
}

func TestTacklingFlagAlsoTriggersPersonalQuote(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-4")
	ex := &models.ExtractedFields{Flags: models.IntentFlags{NeedsTackling: true}}

	outcome := rules.Evaluate(dc, ex, "we have a piano")
	if outcome.Decision != services.DecisionPersonalQuote {
		t.Fatalf("expected personal quote for tackling, got %s", outcome.Decision)
	}
}

func TestClassifyCustomer(t *testing.T) {
	rules := newTestRules(t)

	cases := []struct {
		name       string
		text       string
		people     int
		legalFlag  bool
		wantType   services.CustomerType
		wantWeight float64
	}{
		{"explicit contract terms", "we need a contract and an invoice", 0, false, services.CustomerLegal, 1.0},
		{"extractor legal flag", "booking for our firm", 0, true, services.CustomerLegal, 1.0},
		{"large crew", "need a big crew", 10, false, services.CustomerLegal, 0.8},
		{"residential", "moving out of my apartment", 2, false, services.CustomerPrivate, 0.9},
		{"business terms", "moving our warehouse", 3, false, services.CustomerLegal, 0.6},
		{"store not matched inside restore", "restore the sofa upholstery at my flat", 2, false, services.CustomerPrivate, 0.9},
		{"small default", "need help tomorrow", 2, false, services.CustomerPrivate, 0.7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dc := models.NewDialogueContext("conv")
			dc.People = tc.people
			ex := &models.ExtractedFields{Flags: models.IntentFlags{IsLegalClient: tc.legalFlag}}

			gotType, gotWeight := rules.ClassifyCustomer(dc, ex, tc.text)
			if gotType != tc.wantType {
				t.Errorf("type: got %s, want %s", gotType, tc.wantType)
			}
			if gotWeight != tc.wantWeight {
				t.Errorf("confidence: got %.2f, want %.2f", gotWeight, tc.wantWeight)
			}
		})
	}
}

func TestMinimumWorkersDecline(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-5")
	dc.People = 1
	ex := &models.ExtractedFields{PeopleCount: 1}

	outcome := rules.Evaluate(dc, ex, "one loader for my apartment move")
	if outcome.Decision != services.DecisionDecline || outcome.Rule != "minimum_workers" {
		t.Fatalf("expected minimum_workers decline, got %s/%s", outcome.Decision, outcome.Rule)
	}
}

func TestMinimumWorkersSparesLegalCustomers(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-6")
	dc.People = 1
	ex := &models.ExtractedFields{Flags: models.IntentFlags{IsLegalClient: true}}

	outcome := rules.Evaluate(dc, ex, "one worker at our office, invoice payment")
	if outcome.Decision == services.DecisionDecline {
		t.Error("legal customers are not subject to the private minimum")
	}
}

func TestProceedAnnotatesLegalEntity(t *testing.T) {
	rules := newTestRules(t)

	dc := models.NewDialogueContext("conv-7")
	dc.People = 3
	ex := &models.ExtractedFields{Flags: models.IntentFlags{IsLegalClient: true}}

	outcome := rules.Evaluate(dc, ex, "our company needs loaders, cashless payment")
	if outcome.Decision != services.DecisionProceed {
		t.Fatalf("expected proceed, got %s", outcome.Decision)
	}
	if !dc.IsLegalEntity || dc.LegalConfidence != 1.0 {
		t.Errorf("expected legal annotation on context: legal=%v confidence=%.2f", dc.IsLegalEntity, dc.LegalConfidence)
	}
}
