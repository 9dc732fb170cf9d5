// Package notifications delivers moderation events over Redis pub/sub to
// users and to the live admin stream.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	// AdminChannel carries every moderation event for the admin dashboard.
	AdminChannel = "moderation:events"

	userChannelPattern = "notifications:user:*"
)

// Notifier provides helpers to publish notifications into Redis channels.
// A Notifier without a Redis client drops everything silently.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishAdmin sends an event payload to every connected admin stream.
func (n *Notifier) PublishAdmin(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, AdminChannel, payload).Err()
}

// StartSubscriber subscribes to the admin channel and every user channel
// and calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern, AdminChannel)
	// Wait for the subscription so publishes right after start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to moderation channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in moderation subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel is the Redis channel for one user's notices.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}
