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

// HTTPCRM talks to the sales CRM's deal endpoint. Private and legal deals
// land in different pipelines on the CRM side, hence two entry points.
type HTTPCRM struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logger.Logger
}

func NewHTTPCRM(cfg config.OutboundConfig, log *logger.Logger) *HTTPCRM {
	return &HTTPCRM{
		baseURL: cfg.CRMBaseURL,
		token:   cfg.CRMToken,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  log,
	}
}

type dealPayload struct {
	Phone       string `json:"phone"`
	City        string `json:"city"`
	Hours       int    `json:"hours"`
	People      int    `json:"people"`
	CompanyName string `json:"company_name,omitempty"`
	Summary     string `json:"summary"`
	IsLegal     bool   `json:"is_legal"`
}

type dealReply struct {
	DealID string `json:"deal_id"`
}

func (crm *HTTPCRM) CreateDeal(ctx context.Context, req *models.DealRequest) (string, error) {
	return crm.post(ctx, "/api/deals", req)
}

func (crm *HTTPCRM) CreateLegalDeal(ctx context.Context, req *models.DealRequest, company string) (string, error) {
	payload := *req
	payload.CompanyName = company
	payload.IsLegal = true
	return crm.post(ctx, "/api/deals/legal", &payload)
}

func (crm *HTTPCRM) post(ctx context.Context, path string, req *models.DealRequest) (string, error) {
	body, err := json.Marshal(dealPayload{
		Phone:       req.Phone,
		City:        req.City,
		Hours:       req.Hours,
		People:      req.People,
		CompanyName: req.CompanyName,
		Summary:     req.Summary,
		IsLegal:     req.IsLegal,
	})
	if err != nil {
		return "", models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode deal request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, crm.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", models.NewInternalError("REQUEST_BUILD_FAILED", "Failed to build CRM request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if crm.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+crm.token)
	}

	resp, err := crm.client.Do(httpReq)
	if err != nil {
		return "", models.NewExternalError("CRM_UNAVAILABLE", "Failed to reach CRM").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", models.NewExternalError("CRM_REJECTED",
			fmt.Sprintf("CRM returned status %d: %s", resp.StatusCode, string(snippet)))
	}

	var reply dealReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", models.NewExternalError("CRM_MALFORMED_RESPONSE", "Failed to decode CRM response").WithCause(err)
	}
	if reply.DealID == "" {
		return "", models.NewExternalError("CRM_MALFORMED_RESPONSE", "CRM response missing deal id")
	}

	return reply.DealID, nil
}
