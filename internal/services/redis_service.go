package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// RedisService backs every shared TTL-bounded store of the pipeline: the
// dedup guard, the per-conversation dialogue context, the conversation
// history and the audit stream.
type RedisService struct {
	client *redis.Client
	logger *logger.Logger
	config config.RedisConfig
}

func NewRedisService(cfg config.RedisConfig, log *logger.Logger) (*RedisService, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	service := &RedisService{
		client: redis.NewClient(opt),
		logger: log,
		config: cfg,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis Service Initialized Successfully",
		"url", cfg.URL,
		"pool_size", cfg.PoolSize,
		"dedup_ttl", cfg.DedupTTL.String())

	return service, nil
}

func (service *RedisService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return service.client.Ping(ctx).Err()
}

func (service *RedisService) Close() error {
	service.logger.Info("Closing Redis Service")
	return service.client.Close()
}

func (service *RedisService) HealthCheck(ctx context.Context) error {
	if err := service.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}

// ClaimMessage atomically claims a message id for processing. Returns false
// when the id was already claimed inside the dedup TTL; the caller must then
// skip all side effects.
func (service *RedisService) ClaimMessage(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("dedup:msg:%s", messageID)
	startTime := time.Now()

	claimed, err := service.client.SetNX(ctx, key, 1, service.config.DedupTTL).Result()
	if err != nil {
		service.logger.LogService("redis", "claim_message", time.Since(startTime), map[string]interface{}{
			"message_id": messageID,
		}, err)
		return false, models.NewExternalError("REDIS_CLAIM_FAILED", "Failed to claim message id").WithCause(err)
	}

	service.logger.LogService("redis", "claim_message", time.Since(startTime), map[string]interface{}{
		"message_id": messageID,
		"claimed":    claimed,
	}, nil)

	return claimed, nil
}

func (service *RedisService) GetDialogueContext(ctx context.Context, conversationID string) (*models.DialogueContext, error) {
	key := fmt.Sprintf("dialogue:%s:context", conversationID)
	startTime := time.Now()

	stateJSON, err := service.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, models.ErrDialogueNotFound.WithMetadata("conversation_id", conversationID)
		}
		service.logger.LogService("redis", "get_dialogue_context", time.Since(startTime), map[string]interface{}{
			"conversation_id": conversationID,
		}, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "Failed to get dialogue context").WithCause(err)
	}

	var dc models.DialogueContext
	if err := json.Unmarshal([]byte(stateJSON), &dc); err != nil {
		return nil, models.NewInternalError("DESERIALIZATION_FAILED", "Failed to decode dialogue context").WithCause(err)
	}

	service.logger.LogService("redis", "get_dialogue_context", time.Since(startTime), map[string]interface{}{
		"conversation_id": conversationID,
		"state":           string(dc.State),
	}, nil)

	return &dc, nil
}

func (service *RedisService) SaveDialogueContext(ctx context.Context, dc *models.DialogueContext) error {
	key := fmt.Sprintf("dialogue:%s:context", dc.ConversationID)
	startTime := time.Now()

	stateJSON, err := json.Marshal(dc)
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode dialogue context").WithCause(err)
	}

	if err := service.client.Set(ctx, key, stateJSON, service.config.ContextTTL).Err(); err != nil {
		service.logger.LogService("redis", "save_dialogue_context", time.Since(startTime), map[string]interface{}{
			"conversation_id": dc.ConversationID,
		}, err)
		return models.NewExternalError("REDIS_STORE_FAILED", "Failed to store dialogue context").WithCause(err)
	}

	service.logger.LogService("redis", "save_dialogue_context", time.Since(startTime), map[string]interface{}{
		"conversation_id": dc.ConversationID,
		"state":           string(dc.State),
	}, nil)

	return nil
}

func (service *RedisService) AppendHistory(ctx context.Context, conversationID string, turns ...models.HistoryTurn) error {
	if len(turns) == 0 {
		return nil
	}

	key := fmt.Sprintf("dialogue:%s:history", conversationID)
	startTime := time.Now()

	encoded := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		turnJSON, err := json.Marshal(turn)
		if err != nil {
			return models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode history turn").WithCause(err)
		}
		encoded = append(encoded, turnJSON)
	}

	pipe := service.client.Pipeline()
	pipe.RPush(ctx, key, encoded...)
	pipe.LTrim(ctx, key, int64(-2*service.config.HistoryLimit), -1)
	pipe.Expire(ctx, key, service.config.HistoryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		service.logger.LogService("redis", "append_history", time.Since(startTime), map[string]interface{}{
			"conversation_id": conversationID,
		}, err)
		return models.NewExternalError("REDIS_STORE_FAILED", "Failed to append history turn").WithCause(err)
	}

	return nil
}

func (service *RedisService) GetHistory(ctx context.Context, conversationID string, limit int) ([]models.HistoryTurn, error) {
	key := fmt.Sprintf("dialogue:%s:history", conversationID)
	startTime := time.Now()

	entries, err := service.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		service.logger.LogService("redis", "get_history", time.Since(startTime), map[string]interface{}{
			"conversation_id": conversationID,
		}, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "Failed to get conversation history").WithCause(err)
	}

	turns := make([]models.HistoryTurn, 0, len(entries))
	for _, entry := range entries {
		var turn models.HistoryTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			service.logger.WithError(err).Warn("Skipping malformed history entry")
			continue
		}
		turns = append(turns, turn)
	}

	service.logger.LogService("redis", "get_history", time.Since(startTime), map[string]interface{}{
		"conversation_id": conversationID,
		"turns":           len(turns),
	}, nil)

	return turns, nil
}

// AppendAudit pushes the per-turn audit record onto a bounded Redis stream.
func (service *RedisService) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	startTime := time.Now()

	values := map[string]interface{}{
		"conversation_id": record.ConversationID,
		"message_id":      record.MessageID,
		"request_id":      record.RequestID,
		"text":            record.Text,
		"response":        record.Response,
		"state":           record.State,
		"action":          record.Action,
		"success":         record.Success,
		"latency_ms":      record.LatencyMS,
		"deal_created":    record.DealCreated,
		"timestamp":       record.Timestamp.Format(time.RFC3339),
	}
	if record.Extracted != nil {
		extractedJSON, err := json.Marshal(record.Extracted)
		if err != nil {
			return models.NewInternalError("SERIALIZATION_FAILED", "Failed to encode extracted fields").WithCause(err)
		}
		values["extracted"] = string(extractedJSON)
	}
	if record.DealID != "" {
		values["deal_id"] = record.DealID
	}
	if record.Error != "" {
		values["error"] = record.Error
	}

	err := service.client.XAdd(ctx, &redis.XAddArgs{
		Stream: service.config.AuditStream,
		MaxLen: service.config.AuditMaxLen,
		Approx: true,
		Values: values,
	}).Err()

	if err != nil {
		service.logger.LogService("redis", "append_audit", time.Since(startTime), map[string]interface{}{
			"conversation_id": record.ConversationID,
			"message_id":      record.MessageID,
		}, err)
		return models.NewExternalError("REDIS_PUBLISH_FAILED", "Failed to append audit record").WithCause(err)
	}

	return nil
}
