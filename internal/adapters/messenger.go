package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// HTTPMessenger delivers replies to the chat channel gateway over a JSON
// webhook. The gateway fans the message out to whichever marketplace or
// messaging app the conversation lives on.
type HTTPMessenger struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

func NewHTTPMessenger(cfg config.OutboundConfig, log *logger.Logger) *HTTPMessenger {
	return &HTTPMessenger{
		url:    cfg.MessengerURL,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: log,
	}
}

type sendPayload struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

func (messenger *HTTPMessenger) Send(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(sendPayload{ConversationID: conversationID, Text: text})
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode outbound message").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messenger.url, bytes.NewReader(body))
	if err != nil {
		return models.NewInternalError("REQUEST_BUILD_FAILED", "Failed to build messenger request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := messenger.client.Do(req)
	if err != nil {
		return models.NewExternalError("MESSENGER_UNAVAILABLE", "Failed to deliver message").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewExternalError("MESSENGER_REJECTED",
			fmt.Sprintf("messenger returned status %d: %s", resp.StatusCode, string(snippet)))
	}

	return nil
}
