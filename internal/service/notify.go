package service

import (
	"context"

	"warden/internal/featureflags"
	"warden/internal/notifications"
	"warden/internal/observability"
)

// publisher sends fire-and-forget events after a commit.
type publisher struct {
	notifier ModerationNotifier
	flags    *featureflags.Manager
}

func newPublisher(n ModerationNotifier, flags *featureflags.Manager) publisher {
	if n == nil {
		n = noopNotifier{}
	}
	return publisher{notifier: n, flags: flags}
}

func (p publisher) admin(ctx context.Context, ev notifications.Event) {
	payload, err := ev.Encode()
	if err == nil {
		err = p.notifier.PublishAdmin(context.WithoutCancel(ctx), payload)
	}
	if err != nil {
		observability.NotificationFailures.WithLabelValues("admin").Inc()
		observability.LogAsyncOperationError(ctx, "publish_admin_event", err, map[string]interface{}{
			"event": ev.Type,
		})
	}
}

// user sends ev to userID when flag is enabled for them. An empty flag
// always sends.
func (p publisher) user(ctx context.Context, userID uint, flag string, ev notifications.Event) {
	if userID == 0 || (flag != "" && !p.flags.Enabled(flag, userID)) {
		return
	}
	payload, err := ev.Encode()
	if err == nil {
		err = p.notifier.PublishUser(context.WithoutCancel(ctx), userID, payload)
	}
	if err != nil {
		observability.NotificationFailures.WithLabelValues("user").Inc()
		observability.LogAsyncOperationError(ctx, "publish_user_notice", err, map[string]interface{}{
			"event":   ev.Type,
			"user_id": userID,
		})
	}
}
