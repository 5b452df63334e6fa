package models_test

import (
	"testing"

	"mira-sales-pipeline/internal/models"
)

func TestRestrictToEvidenceDropsInventedValues(t *testing.T) {
	fields := &models.ExtractedFields{
		City:        "Moscow",
		PeopleCount: 4,
		Hours:       6,
		Floor:       5,
	}

	fields.RestrictToEvidence([]string{"I need loaders tomorrow morning"})

	if fields.City != "" {
		t.Errorf("city %q not in text must be dropped", fields.City)
	}
	if fields.PeopleCount != 0 {
		t.Errorf("people %d not in text must be dropped", fields.PeopleCount)
	}
	if fields.Hours != 0 {
		t.Errorf("hours %d not in text must be dropped", fields.Hours)
	}
	if fields.Floor != 0 {
		t.Errorf("floor %d not in text must be dropped", fields.Floor)
	}
}

func TestRestrictToEvidenceKeepsLiteralValues(t *testing.T) {
	fields := &models.ExtractedFields{
		City:        "Kazan",
		PeopleCount: 2,
		Hours:       3,
		Phone:       "+79991234567",
	}

	fields.RestrictToEvidence([]string{"2 workers for 3 hours in Kazan, phone +7 999 123-45-67"})

	if fields.City != "Kazan" {
		t.Errorf("literal city dropped, got %q", fields.City)
	}
	if fields.PeopleCount != 2 || fields.Hours != 3 {
		t.Errorf("literal numerics dropped: people=%d hours=%d", fields.PeopleCount, fields.Hours)
	}
	if fields.Phone == "" {
		t.Error("phone with matching digits dropped despite formatting differences")
	}
}

func TestRestrictToEvidenceUsesPriorTurns(t *testing.T) {
	fields := &models.ExtractedFields{City: "Samara", Hours: 5}

	fields.RestrictToEvidence([]string{
		"yes, let's do it",
		"need a crew in Samara for 5 hours",
	})

	if fields.City != "Samara" || fields.Hours != 5 {
		t.Errorf("values present in prior turns must survive: city=%q hours=%d", fields.City, fields.Hours)
	}
}
