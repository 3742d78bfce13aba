// Package notify posts status transitions to chat webhooks.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/TheBase/TheBase/internal/status"
)

// Slack posts indicator transitions to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	timeout    time.Duration
}

// NewSlack creates a notifier for webhookURL. channel may be empty to use the
// webhook's default.
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{webhookURL: webhookURL, channel: channel, timeout: 10 * time.Second}
}

// Message renders the text posted for a transition.
func Message(prev, next status.Display) string {
	text := fmt.Sprintf("The Base: agent is now *%s* (was %s)", next.Label, prev.Label)
	if next.Note != "" {
		text += " · " + next.Note
	}
	return text
}

// Post sends text to the webhook.
func (s *Slack) Post(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{
		Channel: s.channel,
		Text:    text,
	})
}

// StatusChanged is a status.ChangeFunc. Failures are logged and dropped.
func (s *Slack) StatusChanged(prev, next status.Display) {
	if err := s.Post(context.Background(), Message(prev, next)); err != nil {
		slog.Warn("Slack notify failed", "error", err)
		return
	}
	slog.Info("Slack notified of status change", "state", next.State, "stale", next.Stale)
}
