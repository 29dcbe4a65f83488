// Package notify dispatches operational alerts (submitted tickets,
// failed runs) to an external channel. Delivery is best-effort: callers
// log and continue when a send fails.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// Notifier sends a human-readable alert.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SlackNotifier posts alerts to a fixed Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, message string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.Notify: %w", err)
	}
	return nil
}

// LogNotifier writes alerts to the structured log. Used when no Slack
// token is configured so the alert path stays exercised.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, message string) error {
	log.Info().Str("channel", "log").Msg(message)
	return nil
}
