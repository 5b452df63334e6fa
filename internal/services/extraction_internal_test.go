package services

import (
	"testing"
)

func TestParseExtractionResponseStripsFences(t *testing.T) {
	content := "```json\n{\"city\": \"Kazan\", \"people_count\": 2, \"hours\": 3, \"confidence\": 0.9}\n```"

	fields, err := parseExtractionResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.City != "Kazan" || fields.PeopleCount != 2 || fields.Hours != 3 {
		t.Errorf("parsed fields wrong: %+v", fields)
	}
}

func TestParseExtractionResponseRejectsMalformed(t *testing.T) {
	cases := []string{
		"not json at all",
		"{\"confidence\": 1.5}",
		"{\"people_count\": -3, \"confidence\": 0.5}",
	}

	for _, content := range cases {
		if _, err := parseExtractionResponse(content); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestFallbackExtractFindsPhoneOnly(t *testing.T) {
	fields := FallbackExtract("2 workers for 3 hours in Kazan, call +7 999 123-45-67")

	if fields.Phone == "" {
		t.Error("fallback must recognize the phone number")
	}
	if fields.City != "" || fields.PeopleCount != 0 || fields.Hours != 0 {
		t.Errorf("fallback must never guess city or numbers: %+v", fields)
	}
	if fields.Confidence >= 0.5 {
		t.Errorf("fallback confidence should be low, got %.2f", fields.Confidence)
	}
}

func TestFallbackExtractEmptyWithoutPhone(t *testing.T) {
	fields := FallbackExtract("hello, do you work on weekends?")

	if fields.Phone != "" {
		t.Errorf("no phone in text, got %q", fields.Phone)
	}
}
