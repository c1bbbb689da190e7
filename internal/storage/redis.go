/**
 * Redis Store for the OCR highlight worker
 *
 * Shares fetched block lists between worker replicas as a read-through
 * cache in front of the primary block source, and publishes resolved
 * highlights for WebSocket streaming.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/blockcache"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/redis/go-redis/v9"
)

// RedisStore handles block caching and highlight publishing in Redis
type RedisStore struct {
	client    *redis.Client
	blockTTL  time.Duration
	queueName string
	logger    *logging.Logger
}

// RedisStoreConfig holds Redis store configuration
type RedisStoreConfig struct {
	RedisURL  string
	BlockTTL  time.Duration // default 30 minutes
	QueueName string        // namespace for results and events, default "highlight"
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *RedisStoreConfig) (*RedisStore, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg), nil
}

// NewRedisStoreFromClient wraps an existing Redis client
func NewRedisStoreFromClient(client *redis.Client, cfg *RedisStoreConfig) *RedisStore {
	ttl := 30 * time.Minute
	queueName := "highlight"
	if cfg != nil {
		if cfg.BlockTTL > 0 {
			ttl = cfg.BlockTTL
		}
		if cfg.QueueName != "" {
			queueName = cfg.QueueName
		}
	}
	return &RedisStore{
		client:    client,
		blockTTL:  ttl,
		queueName: queueName,
		logger:    logging.NewLogger("RedisStore"),
	}
}

func blocksKey(orgID, docID string) string {
	return fmt.Sprintf("ocr:blocks:%s:%s", orgID, docID)
}

// blocksEpochKey counts invalidations of one document. A fetch only writes
// back if the epoch it started under is still current.
func blocksEpochKey(orgID, docID string) string {
	return blocksKey(orgID, docID) + ":epoch"
}

// epochTTL outlives any fetch so the counter cannot lapse mid-fetch.
const epochTTL = 24 * time.Hour

var errBlocksInvalidated = errors.New("blocks invalidated during fetch")

func (r *RedisStore) resultsKey() string { return r.queueName + ":results" }
func (r *RedisStore) eventsKey() string  { return r.queueName + ":events" }

// CachedFetcher returns a fetcher that serves block lists from Redis and
// falls through to next on a miss. Redis failures never fail a fetch.
func (r *RedisStore) CachedFetcher(next blockcache.Fetcher) blockcache.Fetcher {
	return blockcache.FetcherFunc(func(ctx context.Context, orgID, docID string) ([]ocr.Block, error) {
		key := blocksKey(orgID, docID)

		epoch, epochErr := r.epoch(ctx, orgID, docID)

		data, err := r.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var blocks []ocr.Block
			jsonErr := json.Unmarshal(data, &blocks)
			if jsonErr == nil {
				return blocks, nil
			}
			r.logger.Warn("discarding undecodable cached blocks", "key", key, "error", jsonErr)
			r.client.Del(ctx, key)
		case errors.Is(err, redis.Nil):
		default:
			r.logger.Warn("redis block cache unavailable", "key", key, "error", err)
		}

		blocks, err := next.FetchBlocks(ctx, orgID, docID)
		if err != nil {
			return nil, err
		}

		if epochErr != nil {
			return blocks, nil
		}
		if err := r.storeBlocks(ctx, orgID, docID, epoch, blocks); err != nil {
			if errors.Is(err, errBlocksInvalidated) {
				r.logger.Debug("skipping write-back of invalidated blocks", "key", key)
			} else {
				r.logger.Warn("failed to cache blocks in redis", "key", key, "error", err)
			}
		}
		return blocks, nil
	})
}

func (r *RedisStore) epoch(ctx context.Context, orgID, docID string) (int64, error) {
	n, err := r.client.Get(ctx, blocksEpochKey(orgID, docID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// storeBlocks writes blocks only while the document's epoch still equals
// the one read before the fetch.
func (r *RedisStore) storeBlocks(ctx context.Context, orgID, docID string, epoch int64, blocks []ocr.Block) error {
	encoded, err := json.Marshal(blocks)
	if err != nil {
		return err
	}
	epochKey := blocksEpochKey(orgID, docID)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, epochKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != epoch {
			return errBlocksInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, blocksKey(orgID, docID), encoded, r.blockTTL)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return errBlocksInvalidated
		}
		return err
	}, epochKey)
}

// InvalidateBlocks removes a document's shared cache entry and bumps its
// epoch so fetches already running do not write it back.
func (r *RedisStore) InvalidateBlocks(ctx context.Context, orgID, docID string) error {
	epochKey := blocksEpochKey(orgID, docID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, blocksKey(orgID, docID))
		pipe.Incr(ctx, epochKey)
		pipe.Expire(ctx, epochKey, epochTTL)
		return nil
	})
	return err
}

// PublishHighlight stores a resolved highlight under its task id and
// announces it on the events channel
func (r *RedisStore) PublishHighlight(ctx context.Context, taskID string, ref highlight.DocumentRef, info highlight.Info) error {
	resultData, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal highlight: %w", err)
	}

	if err := r.client.HSet(ctx, r.resultsKey(), taskID, resultData).Err(); err != nil {
		return fmt.Errorf("failed to store highlight result: %w", err)
	}

	event := map[string]interface{}{
		"event":          "highlight:resolved",
		"taskId":         taskID,
		"organizationId": ref.OrganizationID,
		"documentId":     ref.DocumentID,
		"promptId":       info.PromptID,
		"blocks":         len(info.Blocks),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	if err := r.client.Publish(ctx, r.eventsKey(), eventData).Err(); err != nil {
		return fmt.Errorf("failed to publish highlight event: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
