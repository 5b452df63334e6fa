package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// ExtractionService performs the one schema-constrained understanding call per
// turn. On any failure it degrades to a conservative regex fallback that only
// ever recognizes a phone number, so a turn never fails on extraction.
type ExtractionService struct {
	client *genai.Client
	config config.GenAIConfig
	logger *logger.Logger
}

func NewExtractionService(cfg config.GenAIConfig, log *logger.Logger) (*ExtractionService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("extraction API key required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}

	service := &ExtractionService{
		client: client,
		config: cfg,
		logger: log,
	}

	log.Info("Extraction Service Initialized Successfully",
		"model", cfg.Model,
		"timeout", cfg.Timeout.String())

	return service, nil
}

func (service *ExtractionService) Extract(ctx context.Context, text string, history []models.HistoryTurn, adHint *models.AdHint) *models.ExtractedFields {
	startTime := time.Now()

	fields, err := service.extractStructured(ctx, text, history, adHint)
	if err != nil {
		service.logger.WithError(err).Warn("Structured extraction failed, degrading to regex fallback")
		fields = FallbackExtract(text)
	}

	fields.RestrictToEvidence(evidenceTexts(text, history, adHint))

	service.logger.LogService("extraction", "extract", time.Since(startTime), map[string]interface{}{
		"text_length": len(text),
		"city":        fields.City,
		"people":      fields.PeopleCount,
		"hours":       fields.Hours,
		"has_phone":   fields.Phone != "",
		"confidence":  fields.Confidence,
		"degraded":    err != nil,
	}, nil)

	return fields
}

func (service *ExtractionService) extractStructured(ctx context.Context, text string, history []models.HistoryTurn, adHint *models.AdHint) (*models.ExtractedFields, error) {
	prompt := service.buildExtractionPrompt(text, history, adHint)

	var lastErr error
	for attempt := 1; attempt <= service.config.MaxRetries; attempt++ {
		content, err := service.makeExtractionRequest(ctx, prompt)
		if err == nil {
			fields, parseErr := parseExtractionResponse(content)
			if parseErr == nil {
				return fields, nil
			}
			err = parseErr
		}
		lastErr = err

		if attempt < service.config.MaxRetries {
			select {
			case <-time.After(service.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, models.NewTimeoutError("EXTRACTION_TIMEOUT", "Extraction timed out").WithCause(ctx.Err())
			}
		}
	}

	return nil, models.NewExternalError("EXTRACTION_FAILED", "Structured extraction failed").WithCause(lastErr)
}

func (service *ExtractionService) makeExtractionRequest(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	temperature := float32(service.config.Temperature)
	maxTokens := int32(service.config.MaxTokens)

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You extract structured order fields from chat messages for a moving-crew service. You never invent values.",
			genai.RoleUser),
		Temperature:      &temperature,
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
	}

	result, err := service.client.Models.GenerateContent(genCtx, service.config.Model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates generated")
	}

	candidate := result.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return text, nil
}

func (service *ExtractionService) buildExtractionPrompt(text string, history []models.HistoryTurn, adHint *models.AdHint) string {
	var historyText strings.Builder
	for _, turn := range history {
		historyText.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Text))
	}

	hint := "none"
	if adHint != nil && adHint.AdvertisedCity != "" {
		hint = fmt.Sprintf("the customer wrote from an ad for city %q", adHint.AdvertisedCity)
	}

	return fmt.Sprintf(`You extract order details from one customer message in a chat with a moving-crew (loaders) service.

RECENT CONVERSATION:
%s
AD CONTEXT: %s

CUSTOMER MESSAGE:
"%s"

Extract ONLY what the message literally states. Never guess, never infer, never
carry values over from your own assumptions. A field the customer did not state
stays empty/zero/false.

Respond with exactly this JSON object and nothing else:
{
  "city": "",
  "people_count": 0,
  "hours": 0,
  "phone": "",
  "company_name": "",
  "floor": 0,
  "has_elevator": false,
  "single_item_weight_kg": 0,
  "intent_flags": {
    "is_greeting": false,
    "is_forbidden_service": false,
    "needs_tackling": false,
    "is_legal_client": false,
    "needs_transport": false,
    "has_question": false,
    "is_affirmation": false,
    "is_objection": false
  },
  "confidence": 0.0
}

Field rules:
- city: only if the message names a city.
- people_count / hours / floor / single_item_weight_kg: only numbers written in the message.
- phone: only a phone number written in the message, as written.
- company_name: only if the message names the customer's company.
- is_forbidden_service: true for waste removal, demolition, or anything outside loading/moving work.
- needs_tackling: true for pianos, safes, machine tools, or other unusually heavy single items.
- is_legal_client: true when the customer mentions acting for a company, contract or invoice payment.
- needs_transport: true when the customer asks for a vehicle, not just workers.
- is_affirmation: true for agreement/confirmation ("yes", "ok", "let's book").
- is_objection: true for price or condition complaints.
- confidence: your overall confidence between 0.0 and 1.0.`, historyText.String(), hint, text)
}

func parseExtractionResponse(content string) (*models.ExtractedFields, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var fields models.ExtractedFields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}

	if fields.Confidence < 0 || fields.Confidence > 1 {
		return nil, fmt.Errorf("extraction confidence out of range: %f", fields.Confidence)
	}
	if fields.PeopleCount < 0 || fields.Hours < 0 || fields.Floor < 0 || fields.SingleItemWeightKG < 0 {
		return nil, fmt.Errorf("extraction returned negative numeric field")
	}

	return &fields, nil
}

var phonePattern = regexp.MustCompile(`(?:\+7|\+\d{1,3}|8)[\s\-()]*(?:\d[\s\-()]*){9,10}`)

// FallbackExtract is the conservative degraded path: it recognizes only a
// phone number by pattern and leaves every other field empty. It never
// guesses a city, hours or crew size.
func FallbackExtract(text string) *models.ExtractedFields {
	fields := &models.ExtractedFields{Confidence: 0.1}

	if match := phonePattern.FindString(text); match != "" {
		fields.Phone = strings.TrimSpace(match)
	}

	return fields
}

func evidenceTexts(text string, history []models.HistoryTurn, adHint *models.AdHint) []string {
	texts := make([]string, 0, len(history)+2)
	texts = append(texts, text)
	for _, turn := range history {
		if turn.Role == "customer" {
			texts = append(texts, turn.Text)
		}
	}
	if adHint != nil && adHint.AdvertisedCity != "" {
		texts = append(texts, adHint.AdvertisedCity)
	}
	return texts
}
