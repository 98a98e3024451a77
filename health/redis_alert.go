package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/meshworks/adapterkit/core"
)

// RedisAlertSink publishes alert events to a Redis channel so external
// alerting collaborators (pagers, dashboards, other instances) can
// subscribe without this layer knowing about them.
type RedisAlertSink struct {
	client  *redis.Client
	channel string
	logger  core.Logger
}

// NewRedisAlertSink connects to Redis and verifies the connection.
func NewRedisAlertSink(redisURL, channel string, logger core.Logger) (*RedisAlertSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}

	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", core.ErrConnectionFailed)
	}

	if channel == "" {
		channel = "adapterkit:alerts"
	}

	return &RedisAlertSink{
		client:  client,
		channel: channel,
		logger:  core.ComponentLogger(logger, "adapterkit/health"),
	}, nil
}

// Alert implements AlertSink via Redis pub/sub.
func (s *RedisAlertSink) Alert(ctx context.Context, event AlertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Error("Failed to publish alert", map[string]interface{}{
			"operation":  "health_alert_publish",
			"alert_id":   event.ID,
			"adapter_id": event.AdapterID,
			"channel":    s.channel,
			"error":      err.Error(),
		})
		return fmt.Errorf("failed to publish alert to Redis: %w", err)
	}

	s.logger.Debug("Alert published", map[string]interface{}{
		"operation":  "health_alert_publish",
		"alert_id":   event.ID,
		"adapter_id": event.AdapterID,
		"channel":    s.channel,
	})
	return nil
}

// Close releases the Redis connection.
func (s *RedisAlertSink) Close() error {
	return s.client.Close()
}
