package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
	"mira-sales-pipeline/internal/reliability"
)

// Orchestrator runs one inbound chat turn end to end: dedup, extraction,
// context merge, business rules, state machine, pricing, deal hand-off,
// reply composition and persistence. Turns for different conversations run
// in parallel; turns for the same conversation are serialized because the
// context merge is order-sensitive.
type Orchestrator struct {
	store     ConversationStore
	extractor Extractor
	pricing   *PricingService
	rules     *RulesService
	dialogue  *DialogueService
	composer  *ComposerService
	dealdesk  DealCreator
	messenger MessengerClient
	alerter   OperatorAlerter

	config  *config.Config
	logger  *logger.Logger
	metrics *reliability.Metrics

	convLocks   sync.Map // conversation_id -> *sync.Mutex
	activeTurns sync.Map // request_id -> conversation_id

	startTime time.Time
}

func NewOrchestrator(
	store ConversationStore,
	extractor Extractor,
	pricing *PricingService,
	rules *RulesService,
	dialogue *DialogueService,
	composer *ComposerService,
	dealdesk DealCreator,
	messenger MessengerClient,
	alerter OperatorAlerter,
	cfg *config.Config,
	metrics *reliability.Metrics,
	log *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		store:     store,
		extractor: extractor,
		pricing:   pricing,
		rules:     rules,
		dialogue:  dialogue,
		composer:  composer,
		dealdesk:  dealdesk,
		messenger: messenger,
		alerter:   alerter,
		config:    cfg,
		metrics:   metrics,
		logger:    log,
		startTime: time.Now(),
	}

	log.Info("Orchestrator initialized successfully",
		"turn_timeout", cfg.Reliability.TurnTimeout.String(),
		"dedup_ttl", cfg.Redis.DedupTTL.String())

	return orchestrator
}

// ProcessTurn handles a single inbound message and always produces a reply.
// A panic anywhere in the pipeline is caught here, answered with a generic
// apology and escalated when it happened on the deal path.
func (orchestrator *Orchestrator) ProcessTurn(ctx context.Context, msg *models.InboundMessage) (result *models.TurnResult) {
	startTime := time.Now()
	requestID := models.GenerateRequestID()

	orchestrator.activeTurns.Store(requestID, msg.ConversationID)
	defer orchestrator.activeTurns.Delete(requestID)

	defer func() {
		if recovered := recover(); recovered != nil {
			result = orchestrator.recoverTurn(ctx, msg, requestID, recovered, startTime)
		}
	}()

	orchestrator.logger.LogTurn(msg.ConversationID, msg.MessageID, "turn_started", 0, nil)

	claimed, err := orchestrator.store.ClaimMessage(ctx, msg.MessageID)
	if err != nil {
		// The dedup store being down must not drop customer messages;
		// at-least-once processing is the lesser evil.
		orchestrator.logger.WithError(err).WithField("message_id", msg.MessageID).
			Warn("Dedup claim failed, processing anyway")
		claimed = true
	}
	if !claimed {
		duration := time.Since(startTime)
		orchestrator.logger.LogTurn(msg.ConversationID, msg.MessageID, "turn_duplicate", duration, nil)
		orchestrator.metrics.Record("turn.duplicate", duration, nil)
		return &models.TurnResult{
			ConversationID: msg.ConversationID,
			MessageID:      msg.MessageID,
			RequestID:      requestID,
			Duplicate:      true,
		}
	}

	lock := orchestrator.lockFor(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	turnCtx, cancel := context.WithTimeout(ctx, orchestrator.config.Reliability.TurnTimeout)
	defer cancel()

	result = orchestrator.runPipeline(turnCtx, msg, requestID, startTime)

	duration := time.Since(startTime)
	orchestrator.metrics.Record("turn.process", duration, nil)
	orchestrator.logger.LogTurn(msg.ConversationID, msg.MessageID, "turn_completed", duration, nil)

	totalTimeMs := float64(duration.Milliseconds())
	result.TotalTimeMS = &totalTimeMs
	return result
}

func (orchestrator *Orchestrator) runPipeline(ctx context.Context, msg *models.InboundMessage, requestID string, startTime time.Time) *models.TurnResult {
	dc, err := orchestrator.store.GetDialogueContext(ctx, msg.ConversationID)
	if err != nil {
		if !errors.Is(err, models.ErrDialogueNotFound) {
			orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
				Warn("Context load failed, starting fresh")
		}
		dc = models.NewDialogueContext(msg.ConversationID)
	}

	history, err := orchestrator.store.GetHistory(ctx, msg.ConversationID, orchestrator.config.Redis.HistoryLimit)
	if err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Warn("History load failed, extracting without it")
		history = nil
	}

	extracted := orchestrator.extractor.Extract(ctx, msg.Text, history, msg.AdHint)
	dc.Merge(extracted)

	outcome := orchestrator.rules.Evaluate(dc, extracted, msg.Text)

	composeInput := ComposeInput{
		Context:   dc,
		Extracted: extracted,
		Outcome:   outcome,
	}

	var action string
	var deal *models.DealResult

	if outcome.Decision == DecisionDecline {
		action = "decline:" + outcome.Rule
	} else {
		state, reason := orchestrator.dialogue.Next(dc, extracted)
		action = reason

		if state == models.StatePriceInquiry && dc.HasCoreFields() {
			composeInput.Quote, composeInput.PricingErr = orchestrator.quoteFor(dc)
		}

		if state == models.StateBookingConfirmation {
			deal = orchestrator.dealdesk.CreateDeal(ctx, dc)
			composeInput.Deal = deal
			if !deal.Success && deal.ErrorKind == models.DealErrorValidation {
				// Bad phone: forget it and go back to collecting so the
				// short-circuit does not re-fire with the same value.
				dc.Phone = ""
				dc.State = models.StateBookingCollection
			} else {
				dc.State = models.StateCompleted
			}
		}
	}

	reply := orchestrator.composer.Compose(composeInput)

	if err := orchestrator.messenger.Send(ctx, msg.ConversationID, reply); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Error("Reply delivery failed")
	}

	orchestrator.persistTurn(ctx, msg, dc, reply)

	dealCreated := deal != nil && deal.Success
	dealID := ""
	turnSuccess := true
	turnError := ""
	if deal != nil {
		dealID = deal.DealID
		if !deal.Success {
			// A failed hand-off must stay visible in the audit trail so the
			// lead can be reconciled by hand.
			turnSuccess = false
			turnError = "deal hand-off failed (" + deal.ErrorKind + "): " + deal.Reason
		}
	}

	orchestrator.audit(ctx, &models.AuditRecord{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		RequestID:      requestID,
		Text:           msg.Text,
		Response:       reply,
		Extracted:      extracted,
		State:          string(dc.State),
		Action:         action,
		Success:        turnSuccess,
		LatencyMS:      float64(time.Since(startTime).Milliseconds()),
		DealCreated:    dealCreated,
		DealID:         dealID,
		Error:          turnError,
		Timestamp:      time.Now(),
	})

	return &models.TurnResult{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		RequestID:      requestID,
		Reply:          reply,
		State:          string(dc.State),
		Action:         action,
		DealCreated:    dealCreated,
		DealID:         dealID,
	}
}

func (orchestrator *Orchestrator) quoteFor(dc *models.DialogueContext) (*models.Quote, error) {
	quote, err := orchestrator.pricing.Price(dc.City, dc.Hours, dc.People)
	if err != nil {
		var cityErr *models.CityUnsupportedError
		if errors.As(err, &cityErr) {
			dc.Special.IsOutOfCity = true
		}
		return nil, err
	}
	return quote, nil
}

func (orchestrator *Orchestrator) persistTurn(ctx context.Context, msg *models.InboundMessage, dc *models.DialogueContext, reply string) {
	now := time.Now()
	dc.LastActivity = now

	if err := orchestrator.store.AppendHistory(ctx, msg.ConversationID,
		models.HistoryTurn{Role: "customer", Text: msg.Text, At: now},
		models.HistoryTurn{Role: "bot", Text: reply, At: now}); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Error("History append failed")
	}

	if err := orchestrator.store.SaveDialogueContext(ctx, dc); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Error("Context save failed")
	}
}

func (orchestrator *Orchestrator) audit(ctx context.Context, record *models.AuditRecord) {
	if err := orchestrator.store.AppendAudit(ctx, record); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", record.ConversationID).
			Error("Audit append failed")
	}
}

// recoverTurn is the single top-level boundary for unexpected panics. The
// customer always gets a reply, and a panic on the deal path raises an
// operator alert so the lead can be rescued by hand.
func (orchestrator *Orchestrator) recoverTurn(ctx context.Context, msg *models.InboundMessage, requestID string, recovered interface{}, startTime time.Time) *models.TurnResult {
	duration := time.Since(startTime)
	panicErr := fmt.Errorf("panic in turn pipeline: %v", recovered)

	orchestrator.logger.LogTurn(msg.ConversationID, msg.MessageID, "turn_panicked", duration, panicErr)
	orchestrator.metrics.Record("turn.process", duration, panicErr)

	alert := fmt.Sprintf("Turn processing crashed.\nConversation: %s\nMessage: %s\nText: %s\nCause: %v",
		msg.ConversationID, msg.MessageID, msg.Text, recovered)
	if err := orchestrator.alerter.Notify(ctx, alert); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Error("Operator alert delivery failed")
	}

	reply := "Sorry, something went wrong on our side. We have saved your message and will get back to you shortly."
	if err := orchestrator.messenger.Send(ctx, msg.ConversationID, reply); err != nil {
		orchestrator.logger.WithError(err).WithField("conversation_id", msg.ConversationID).
			Error("Apology delivery failed")
	}

	orchestrator.audit(ctx, &models.AuditRecord{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		RequestID:      requestID,
		Text:           msg.Text,
		Response:       reply,
		Action:         "panic_recovered",
		Success:        false,
		LatencyMS:      float64(duration.Milliseconds()),
		Error:          panicErr.Error(),
		Timestamp:      time.Now(),
	})

	totalTimeMs := float64(duration.Milliseconds())
	return &models.TurnResult{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		RequestID:      requestID,
		Reply:          reply,
		Action:         "panic_recovered",
		TotalTimeMS:    &totalTimeMs,
	}
}

func (orchestrator *Orchestrator) lockFor(conversationID string) *sync.Mutex {
	lock, _ := orchestrator.convLocks.LoadOrStore(conversationID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (orchestrator *Orchestrator) ActiveTurnsCount() int {
	count := 0
	orchestrator.activeTurns.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	if err := orchestrator.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service redis health check failed: %w", err)
	}
	return nil
}

func (orchestrator *Orchestrator) GetStats() map[string]interface{} {
	uptime := time.Since(orchestrator.startTime)

	return map[string]interface{}{
		"service":        "orchestrator",
		"uptime_seconds": uptime.Seconds(),
		"active_turns":   orchestrator.ActiveTurnsCount(),
		"operations":     orchestrator.metrics.Snapshot(),
		"recent_errors":  orchestrator.metrics.RecentErrors(),
	}
}

func (orchestrator *Orchestrator) Close() error {
	orchestrator.logger.Info("Orchestrator shutting down")

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			activeCount := orchestrator.ActiveTurnsCount()
			if activeCount > 0 {
				orchestrator.logger.Warn("Timeout waiting for turns to complete", "active_turns", activeCount)
			}
			return nil
		case <-ticker.C:
			if orchestrator.ActiveTurnsCount() == 0 {
				orchestrator.logger.Info("All turns completed, orchestrator closed")
				return nil
			}
		}
	}
}
