// Package notify delivers approval-queue snapshots to humans.
//
// Notifier failures are reported to the orchestrator, which logs them and
// carries on; a run never fails because a notification did not land.
package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

// logItemLimit caps the items written per queue snapshot.
const logItemLimit = 20

// LogNotifier appends queue snapshots to a local file.
// The default notifier for Community tier and dry runs.
type LogNotifier struct {
	path string
	now  func() time.Time
}

// NewLogNotifier creates a file-backed notifier.
func NewLogNotifier(path string) *LogNotifier {
	if path == "" {
		path = "./state/notifications.log"
	}
	return &LogNotifier{path: path, now: time.Now}
}

// Name identifies the notifier in orchestrator logs.
func (n *LogNotifier) Name() string { return "local-log" }

// Notify appends one block per queue: a timestamped header with the count,
// then one line per item, capped at logItemLimit.
func (n *LogNotifier) Notify(ctx context.Context, queue *domain.ApprovalQueue) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] manual_review_count=%d\n", n.now().UTC().Format(time.RFC3339), queue.Count)

	items := queue.Items
	if len(items) > logItemLimit {
		items = items[:logItemLimit]
	}
	for _, item := range items {
		fmt.Fprintf(&b, "- %s value=$%s risk=%d reason=%s\n",
			item.OrderID, formatValue(item.OrderValue), item.RiskScore, item.Reason)
	}
	b.WriteString("\n")

	if dir := filepath.Dir(n.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.NotifyError{Notifier: n.Name(), Err: err}
		}
	}

	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.NotifyError{Notifier: n.Name(), Err: err}
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return &domain.NotifyError{Notifier: n.Name(), Err: err}
	}
	return nil
}

// formatValue renders a dollar amount without trailing zeros, matching the
// run summaries (42.5 not 42.50, 120 not 120.00).
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
