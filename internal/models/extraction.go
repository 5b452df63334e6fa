package models

import (
	"strconv"
	"strings"
)

// IntentFlags are the per-turn intent signals the extractor reports. They are
// consumed within the turn they were extracted for and are never accumulated
// into the dialogue context.
type IntentFlags struct {
	IsGreeting         bool `json:"is_greeting"`
	IsForbiddenService bool `json:"is_forbidden_service"`
	NeedsTackling      bool `json:"needs_tackling"`
	IsLegalClient      bool `json:"is_legal_client"`
	NeedsTransport     bool `json:"needs_transport"`
	HasQuestion        bool `json:"has_question"`
	IsAffirmation      bool `json:"is_affirmation"`
	IsObjection        bool `json:"is_objection"`
}

// ExtractedFields is the structured result of one extraction call. Numeric and
// city fields stay zero/empty when the text does not literally supply them.
type ExtractedFields struct {
	City               string      `json:"city"`
	PeopleCount        int         `json:"people_count"`
	Hours              int         `json:"hours"`
	Phone              string      `json:"phone"`
	CompanyName        string      `json:"company_name"`
	Floor              int         `json:"floor"`
	HasElevator        bool        `json:"has_elevator"`
	SingleItemWeightKG int         `json:"single_item_weight_kg"`
	Flags              IntentFlags `json:"intent_flags"`
	Confidence         float64     `json:"confidence"`
}

// RestrictToEvidence drops any numeric or city value whose literal form does
// not appear in the given raw texts (current turn, prior turns, ad hint).
// This is the enforcement point of the no-fabrication contract: the extractor
// may only report what the customer actually wrote.
func (f *ExtractedFields) RestrictToEvidence(texts []string) {
	var joined strings.Builder
	for _, t := range texts {
		joined.WriteString(strings.ToLower(t))
		joined.WriteString("\n")
	}
	evidence := joined.String()

	if f.City != "" && !strings.Contains(evidence, strings.ToLower(f.City)) {
		f.City = ""
	}
	if f.CompanyName != "" && !strings.Contains(evidence, strings.ToLower(f.CompanyName)) {
		f.CompanyName = ""
	}
	if f.PeopleCount > 0 && !strings.Contains(evidence, strconv.Itoa(f.PeopleCount)) {
		f.PeopleCount = 0
	}
	if f.Hours > 0 && !strings.Contains(evidence, strconv.Itoa(f.Hours)) {
		f.Hours = 0
	}
	if f.Floor > 0 && !strings.Contains(evidence, strconv.Itoa(f.Floor)) {
		f.Floor = 0
	}
	if f.SingleItemWeightKG > 0 && !strings.Contains(evidence, strconv.Itoa(f.SingleItemWeightKG)) {
		f.SingleItemWeightKG = 0
	}
	if f.Phone != "" && !strings.Contains(evidence, strings.ToLower(digitsOnly(f.Phone))) &&
		!strings.Contains(digitsOnly(evidence), digitsOnly(f.Phone)) {
		f.Phone = ""
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
