/**
 * Pipeline event publishing
 *
 * Publishes per-job stage transitions over Redis pub/sub for live progress
 * consumers (the API's WebSocket bridge), and mirrors the latest stage into
 * a keyed entry so late subscribers can catch up.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textbridge/ocr-worker/internal/logging"
	"github.com/textbridge/ocr-worker/internal/processor"
)

// statusTTL bounds how long a finished job's last stage stays readable.
const statusTTL = 24 * time.Hour

// EventPublisher implements the processor's status reporting over Redis.
type EventPublisher struct {
	client  *redis.Client
	channel string
	logger  *logging.Logger
}

// NewEventPublisher creates a publisher on the given channel.
func NewEventPublisher(redisURL, channel string) (*EventPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &EventPublisher{
		client:  client,
		channel: channel,
		logger:  logging.NewLogger("EventPublisher"),
	}, nil
}

// ReportStatus publishes one stage transition. Publishing is best-effort;
// a Redis hiccup must never fail a pipeline.
func (e *EventPublisher) ReportStatus(ctx context.Context, jobID string, status processor.Status, fields map[string]interface{}) {
	event := map[string]interface{}{
		"jobId":     jobID,
		"status":    string(status),
		"timestamp": time.Now().UnixMilli(),
	}
	for k, v := range fields {
		event[k] = v
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("failed to marshal status event", "jobId", jobID, "error", err)
		return
	}

	if err := e.client.Publish(ctx, e.channel, data).Err(); err != nil {
		e.logger.Warn("failed to publish status event", "jobId", jobID, "error", err)
	}
	if err := e.client.Set(ctx, fmt.Sprintf("ocr:jobs:%s:status", jobID), data, statusTTL).Err(); err != nil {
		e.logger.Warn("failed to store status snapshot", "jobId", jobID, "error", err)
	}
}

// Close closes the Redis connection.
func (e *EventPublisher) Close() error {
	return e.client.Close()
}
