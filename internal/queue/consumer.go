/**
 * Queue Consumer for the OCR highlight worker
 *
 * Consumes highlight:resolve tasks produced by the extraction pipeline,
 * one task per extracted field value. Uses Asynq for queue management.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/match"
	"github.com/hibiken/asynq"
)

// TypeResolveHighlight is the task type for one highlight request
const TypeResolveHighlight = "highlight:resolve"

// ResolvePayload represents the structure of a highlight task
type ResolvePayload struct {
	OrganizationID string `json:"organizationId"`
	DocumentID     string `json:"documentId"`
	PromptID       string `json:"promptId"`
	Key            string `json:"key,omitempty"`
	Value          string `json:"value"`
}

// Resolver resolves highlights for a document
type Resolver interface {
	Resolve(ctx context.Context, ref highlight.DocumentRef, query string, prov highlight.Provenance) (highlight.Info, match.Tier, error)
}

// Publisher announces resolved highlights
type Publisher interface {
	PublishHighlight(ctx context.Context, taskID string, ref highlight.DocumentRef, info highlight.Info) error
}

// Consumer handles highlight task consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	resolver  Resolver
	publisher Publisher
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Resolver          Resolver
	Publisher         Publisher // optional
	ProcessingTimeout int64     // milliseconds (default: 30000)
}

// NewResolveTask builds a highlight task for the given payload
func NewResolveTask(p ResolvePayload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal highlight payload: %w", err)
	}
	return asynq.NewTask(TypeResolveHighlight, data, opts...), nil
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Resolver == nil {
		return nil, fmt.Errorf("Resolver is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("QueueConsumer")
	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 1s, 2s, 4s ... capped at 30s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > 30*time.Second {
					delay = 30 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error",
					"type", task.Type(),
					"payload", string(task.Payload()),
					"error", err,
				)
			}),
			Logger: asynqLogger{logger},
		},
	)

	mux := asynq.NewServeMux()

	consumer := newConsumer(cfg, logger)
	consumer.client = client
	consumer.server = server
	consumer.mux = mux

	mux.HandleFunc(TypeResolveHighlight, consumer.handleResolveHighlight)

	return consumer, nil
}

func newConsumer(cfg *ConsumerConfig, logger *logging.Logger) *Consumer {
	return &Consumer{
		resolver:  cfg.Resolver,
		publisher: cfg.Publisher,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName,
	)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("stopping queue consumer")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	c.logger.Info("queue consumer stopped")
	return nil
}

// Enqueue submits a highlight task to the consumer's queue
func (c *Consumer) Enqueue(ctx context.Context, p ResolvePayload) (string, error) {
	task, err := NewResolveTask(p, asynq.Queue(c.config.QueueName), asynq.MaxRetry(3))
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue highlight task: %w", err)
	}
	return info.ID, nil
}

// handleResolveHighlight resolves one extracted value to OCR blocks
func (c *Consumer) handleResolveHighlight(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload ResolvePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal highlight payload: %v: %w", err, asynq.SkipRetry)
	}

	ref, err := highlight.ParseDocumentRef(payload.OrganizationID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)

	timeout := 30 * time.Second
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, tier, err := c.resolver.Resolve(processCtx, ref, payload.Value, highlight.Provenance{
		PromptID: payload.PromptID,
		Key:      payload.Key,
	})
	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			c.logger.Warn("highlight task timed out", "task_id", taskID, "duration", duration, "timeout", timeout)
			return fmt.Errorf("processing timeout: %w", herrors.NewProcessingTimeoutError(taskID, timeout, err))
		}
		c.logger.Warn("highlight task failed", "task_id", taskID, "document", ref.DocumentID, "error", err)
		return fmt.Errorf("highlight resolution failed: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal highlight: %v: %w", err, asynq.SkipRetry)
	}
	if rw := task.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			c.logger.Warn("failed to write task result", "task_id", taskID, "error", err)
		}
	}

	if c.publisher != nil {
		if err := c.publisher.PublishHighlight(ctx, taskID, ref, info); err != nil {
			c.logger.Warn("failed to publish highlight", "task_id", taskID, "error", err)
		}
	}

	c.logger.Info("highlight task completed",
		"task_id", taskID,
		"document", ref.DocumentID,
		"prompt_id", payload.PromptID,
		"tier", tier,
		"blocks", len(info.Blocks),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}
