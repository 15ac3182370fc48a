package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/opensource-commerce/kite/internal/domain"
)

// webhookItemLimit caps the items rendered per webhook message.
const webhookItemLimit = 10

// WebhookNotifier posts queue snapshots to a Slack-compatible incoming
// webhook.
type WebhookNotifier struct {
	url  string
	mode string

	// post is swapped in tests.
	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewWebhookNotifier creates a webhook notifier. mode tags the message so
// readers can tell dry runs from live ones.
func NewWebhookNotifier(url, mode string) *WebhookNotifier {
	return &WebhookNotifier{
		url:  url,
		mode: mode,
		post: slack.PostWebhookContext,
	}
}

// Name identifies the notifier in orchestrator logs.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify renders the top items and posts one message per queue.
func (n *WebhookNotifier) Notify(ctx context.Context, queue *domain.ApprovalQueue) error {
	if n.url == "" {
		return &domain.NotifyError{Notifier: n.Name(), Err: fmt.Errorf("webhook URL not configured")}
	}

	top := queue.Items
	if len(top) > webhookItemLimit {
		top = top[:webhookItemLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Approval Queue Alert* (%s)\n", n.mode)
	fmt.Fprintf(&b, "manual_review_count: *%d*\n", queue.Count)

	if len(top) == 0 {
		b.WriteString("\nNo manual-review items.")
	} else {
		b.WriteString("\n")
		for i, item := range top {
			fmt.Fprintf(&b, "%d. *%s* | $%s | risk:%d | %s\n",
				i+1, item.OrderID, formatValue(item.OrderValue), item.RiskScore, item.Reason)
		}
	}
	if queue.Count > len(top) {
		fmt.Fprintf(&b, "\n...and %d more", queue.Count-len(top))
	}

	if err := n.post(ctx, n.url, &slack.WebhookMessage{Text: b.String()}); err != nil {
		return &domain.NotifyError{Notifier: n.Name(), Err: err}
	}
	return nil
}
