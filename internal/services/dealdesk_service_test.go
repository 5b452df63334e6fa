package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/reliability"
	"mira-sales-pipeline/internal/services"
)

func testExecutor(t *testing.T) *reliability.Executor {
	t.Helper()

	cfg := config.ReliabilityConfig{
		MaxAttempts:      2,
		InitialDelay:     time.Millisecond,
		MaxDelay:         10 * time.Millisecond,
		Multiplier:       2.0,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
		CallTimeout:      time.Second,
		TurnTimeout:      5 * time.Second,
	}
	log := testLogger(t)
	return reliability.NewExecutor(cfg, reliability.NewBreakerRegistry(cfg, log), reliability.NewMetrics(), log)
}

func bookableContext() *models.DialogueContext {
	dc := models.NewDialogueContext("conv-1")
	dc.City = "Kazan"
	dc.People = 2
	dc.Hours = 3
	dc.Phone = "+79991234567"
	return dc
}

func TestCreateDealSuccess(t *testing.T) {
	crm := &fakeCRM{dealID: "deal-42"}
	alerter := &recordingAlerter{}
	desk := services.NewDealDeskService(crm, alerter, testExecutor(t), testLogger(t))

	result := desk.CreateDeal(context.Background(), bookableContext())
	if !result.Success || result.DealID != "deal-42" {
		t.Fatalf("expected success with deal-42, got %+v", result)
	}
	if crm.calls != 1 || crm.legalCalls != 0 {
		t.Errorf("expected one private deal call, got private=%d legal=%d", crm.calls, crm.legalCalls)
	}
	if len(alerter.messages) != 0 {
		t.Error("no alert expected on success")
	}
}

func TestCreateDealLegalRouting(t *testing.T) {
	crm := &fakeCRM{dealID: "deal-7"}
	desk := services.NewDealDeskService(crm, &recordingAlerter{}, testExecutor(t), testLogger(t))

	dc := bookableContext()
	dc.IsLegalEntity = true
	dc.CompanyName = "Horns and Hooves LLC"

	result := desk.CreateDeal(context.Background(), dc)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if crm.legalCalls != 1 || crm.calls != 0 {
		t.Errorf("expected the legal endpoint, got private=%d legal=%d", crm.calls, crm.legalCalls)
	}
}

func TestCreateDealInvalidPhoneSkipsCRM(t *testing.T) {
	crm := &fakeCRM{}
	desk := services.NewDealDeskService(crm, &recordingAlerter{}, testExecutor(t), testLogger(t))

	dc := bookableContext()
	dc.Phone = "not a phone"

	result := desk.CreateDeal(context.Background(), dc)
	if result.Success || result.ErrorKind != models.DealErrorValidation {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if crm.calls != 0 && crm.legalCalls != 0 {
		t.Error("CRM must not be called for an unnormalizable phone")
	}
}

func TestCreateDealUnavailableAlertsOperator(t *testing.T) {
	crm := &fakeCRM{err: errors.New("crm down")}
	alerter := &recordingAlerter{}
	desk := services.NewDealDeskService(crm, alerter, testExecutor(t), testLogger(t))

	result := desk.CreateDeal(context.Background(), bookableContext())
	if result.Success || result.ErrorKind != models.DealErrorUnavailable {
		t.Fatalf("expected dependency failure, got %+v", result)
	}
	if !strings.Contains(result.Reason, "crm down") {
		t.Errorf("result must carry the failure cause, got %q", result.Reason)
	}
	if crm.calls != 2 {
		t.Errorf("expected retries to exhaust (2 attempts), got %d", crm.calls)
	}
	if len(alerter.messages) != 1 {
		t.Fatalf("expected exactly one operator alert, got %d", len(alerter.messages))
	}
	alert := alerter.messages[0]
	if !strings.Contains(alert, "+79991234567") || !strings.Contains(alert, "conv-1") {
		t.Errorf("alert must carry phone and conversation: %q", alert)
	}
}

func TestCreateDealAlerterFailureIsSwallowed(t *testing.T) {
	crm := &fakeCRM{err: errors.New("crm down")}
	alerter := &recordingAlerter{fail: true}
	desk := services.NewDealDeskService(crm, alerter, testExecutor(t), testLogger(t))

	result := desk.CreateDeal(context.Background(), bookableContext())
	if result.Success || result.ErrorKind != models.DealErrorUnavailable {
		t.Fatalf("alert failure must not change the deal outcome, got %+v", result)
	}
}

func TestNormalizePhone(t *testing.T) {
	desk := services.NewDealDeskService(&fakeCRM{}, &recordingAlerter{}, testExecutor(t), testLogger(t))

	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"+7 999 123-45-67", "+79991234567", false},
		{"8 (999) 123 45 67", "+79991234567", false},
		{"hello", "", true},
		{"", "", true},
		{"123", "", true},
	}

	for _, tc := range cases {
		got, err := desk.NormalizePhone(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): expected error, got %q", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
