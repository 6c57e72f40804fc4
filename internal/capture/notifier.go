package capture

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// LogNotifier writes messages to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a notifier on logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// ShowMessage implements Notifier.
func (n *LogNotifier) ShowMessage(ctx context.Context, text string) {
	owner, _ := OwnerFrom(ctx)
	n.logger.Info("message", zap.String("owner", owner), zap.String("text", text))
}

// Publisher is the slice of the Redis client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes messages on a per-owner channel so connected
// clients can show them. Nobody listening is fine.
type RedisNotifier struct {
	client Publisher
	logger *zap.Logger
}

// NewRedisNotifier builds a notifier on client.
func NewRedisNotifier(client Publisher, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger.Named("redis_notifier")}
}

// Channel is the pub/sub channel messages for owner are published on.
func Channel(owner string) string {
	return "notifications:" + owner
}

// ShowMessage implements Notifier. Messages without an owner are dropped.
func (n *RedisNotifier) ShowMessage(ctx context.Context, text string) {
	owner, ok := OwnerFrom(ctx)
	if !ok {
		return
	}
	if err := n.client.Publish(ctx, Channel(owner), text).Err(); err != nil {
		n.logger.Warn("failed to publish message", zap.String("owner", owner), zap.Error(err))
	}
}

// Notifiers fans a message out to several notifiers.
type Notifiers []Notifier

// ShowMessage implements Notifier.
func (ns Notifiers) ShowMessage(ctx context.Context, text string) {
	for _, n := range ns {
		n.ShowMessage(ctx, text)
	}
}
