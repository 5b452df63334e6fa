package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// HTTPAlerter posts operator alerts to an out-of-band webhook, typically a
// team chat channel. Callers treat delivery as best effort.
type HTTPAlerter struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

func NewHTTPAlerter(cfg config.OutboundConfig, log *logger.Logger) *HTTPAlerter {
	return &HTTPAlerter{
		url:    cfg.AlertURL,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: log,
	}
}

func (alerter *HTTPAlerter) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode alert").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, alerter.url, bytes.NewReader(body))
	if err != nil {
		return models.NewInternalError("REQUEST_BUILD_FAILED", "Failed to build alert request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := alerter.client.Do(req)
	if err != nil {
		return models.NewExternalError("ALERT_UNAVAILABLE", "Failed to deliver operator alert").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return models.NewExternalError("ALERT_REJECTED",
			fmt.Sprintf("alert channel returned status %d", resp.StatusCode))
	}

	return nil
}
