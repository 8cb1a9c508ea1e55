package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// SlackNotifier posts agent run results to a Slack incoming webhook.
// An empty URL disables it, so callers can wire it unconditionally.
type SlackNotifier struct {
	webhookURL string
}

// NewSlack creates a Slack notifier
func NewSlack(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL}
}

// Notify sends one result message. The webhook URL is a credential and
// never appears in returned errors.
func (n *SlackNotifier) Notify(ctx context.Context, req *model.DispatchRequest, result *model.AgentResult) error {
	if n.webhookURL == "" {
		return nil
	}

	attachment := slack.Attachment{
		Color: colorFor(result.Status),
		Title: fmt.Sprintf("Agent task %s: %s", result.Status, req.EventKey()),
		Fields: []slack.AttachmentField{
			{Title: "Event", Value: req.EventKey(), Short: true},
			{Title: "Actor", Value: req.Metadata.ActorName, Short: true},
			{Title: "Duration", Value: result.Duration.Round(time.Millisecond).String(), Short: true},
			{Title: "Cost", Value: fmt.Sprintf("$%.4f", result.CostUSD), Short: true},
		},
	}

	if req.Metadata.URL != "" {
		attachment.TitleLink = req.Metadata.URL
	}

	switch result.Status {
	case model.AgentStatusSuccess:
		attachment.Text = truncate(result.ResultText, 3000)
	default:
		attachment.Text = truncate(result.Error, 3000)
	}

	msg := &slack.WebhookMessage{
		Text:        fmt.Sprintf("Agent task finished for %s", req.EventKey()),
		Attachments: []slack.Attachment{attachment},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack notification")
	}
	return nil
}

func colorFor(status model.AgentStatus) string {
	switch status {
	case model.AgentStatusSuccess:
		return "good"
	case model.AgentStatusTimeout, model.AgentStatusBudgetExceeded:
		return "warning"
	default:
		return "danger"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
