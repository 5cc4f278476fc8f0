package notify

import "context"

// Notifier delivers out-of-band updates about run lifecycle events.
// Delivery is best-effort; a failed notification never affects a run.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) Notify(ctx context.Context, title, message string) error { return nil }

// FromConfig returns a Slack notifier when a webhook is configured,
// otherwise a Noop.
func FromConfig(slackWebhook string) Notifier {
	if slackWebhook != "" {
		return NewSlack(slackWebhook)
	}
	return Noop{}
}
