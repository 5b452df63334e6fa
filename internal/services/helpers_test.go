package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.LogConfig{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return log
}

// memoryStore is an in-memory ConversationStore for orchestrator tests.
type memoryStore struct {
	mu       sync.Mutex
	claimed  map[string]bool
	contexts map[string]*models.DialogueContext
	history  map[string][]models.HistoryTurn
	audits   []*models.AuditRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		claimed:  make(map[string]bool),
		contexts: make(map[string]*models.DialogueContext),
		history:  make(map[string][]models.HistoryTurn),
	}
}

func (s *memoryStore) ClaimMessage(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[messageID] {
		return false, nil
	}
	s.claimed[messageID] = true
	return true, nil
}

func (s *memoryStore) GetDialogueContext(ctx context.Context, conversationID string) (*models.DialogueContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dc, ok := s.contexts[conversationID]
	if !ok {
		return nil, models.ErrDialogueNotFound
	}
	clone := *dc
	return &clone, nil
}

func (s *memoryStore) SaveDialogueContext(ctx context.Context, dc *models.DialogueContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *dc
	s.contexts[dc.ConversationID] = &clone
	return nil
}

func (s *memoryStore) GetHistory(ctx context.Context, conversationID string, limit int) ([]models.HistoryTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[conversationID], nil
}

func (s *memoryStore) AppendHistory(ctx context.Context, conversationID string, turns ...models.HistoryTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[conversationID] = append(s.history[conversationID], turns...)
	return nil
}

func (s *memoryStore) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, record)
	return nil
}

func (s *memoryStore) HealthCheck(ctx context.Context) error { return nil }

// stubExtractor returns a scripted sequence of extractions.
type stubExtractor struct {
	mu      sync.Mutex
	results []*models.ExtractedFields
	calls   int
}

func (e *stubExtractor) Extract(ctx context.Context, text string, history []models.HistoryTurn, adHint *models.AdHint) *models.ExtractedFields {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls >= len(e.results) {
		e.calls++
		return &models.ExtractedFields{}
	}
	result := e.results[e.calls]
	e.calls++
	return result
}

// recordingMessenger captures every reply sent.
type recordingMessenger struct {
	mu      sync.Mutex
	replies []string
	fail    bool
}

func (m *recordingMessenger) Send(ctx context.Context, conversationID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("channel down")
	}
	m.replies = append(m.replies, text)
	return nil
}

func (m *recordingMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return ""
	}
	return m.replies[len(m.replies)-1]
}

// recordingAlerter captures operator alerts.
type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (a *recordingAlerter) Notify(ctx context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("alert channel down")
	}
	a.messages = append(a.messages, message)
	return nil
}

// stubDealCreator scripts the deal desk outcome and counts calls.
type stubDealCreator struct {
	mu     sync.Mutex
	result *models.DealResult
	calls  int
}

func (d *stubDealCreator) CreateDeal(ctx context.Context, dc *models.DialogueContext) *models.DealResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.result != nil {
		return d.result
	}
	return &models.DealResult{Success: true, DealID: "deal-1"}
}

// fakeCRM is a scripted CRM client for deal desk tests.
type fakeCRM struct {
	mu         sync.Mutex
	calls      int
	legalCalls int
	err        error
	dealID     string
}

func (c *fakeCRM) CreateDeal(ctx context.Context, req *models.DealRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.dealID, nil
}

func (c *fakeCRM) CreateLegalDeal(ctx context.Context, req *models.DealRequest, company string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.legalCalls++
	if c.err != nil {
		return "", c.err
	}
	return c.dealID, nil
}
