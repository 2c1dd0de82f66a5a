// Package slack posts journey reports and improvement hints to Slack via
// incoming webhooks. It is observability only: delivery failures are logged
// and never fed back into the pipeline.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/journey"
)

const httpTimeout = 10 * time.Second

// Notifier sends journey output to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger

	unsubscribe func()
}

// New creates a new Slack notifier. If webhookURL is empty, all sends are
// no-ops.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Start subscribes the notifier to improvement hints on the bus.
func (n *Notifier) Start(b *bus.Bus) {
	n.unsubscribe = b.Subscribe(bus.TypeImprovementHint, n.handleHint)
}

// Stop removes the bus subscription.
func (n *Notifier) Stop() {
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}

func (n *Notifier) handleHint(ctx context.Context, ev bus.Event) error {
	hint, ok := ev.Payload.(bus.ImprovementHint)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}

	// Delivery is detached from bus dispatch.
	go func() {
		pctx := context.WithoutCancel(ctx)
		if err := n.post(pctx, hintMessage(&hint, ev.Timestamp)); err != nil {
			n.logger.Error(pctx, err, "failed to post hint to slack",
				"target_agent", hint.TargetAgent)
		}
	}()
	return nil
}

// Insert posts a flushed journey report, satisfying journey.ReportSink so the
// notifier can sit behind the aggregator next to the persistent sink.
func (n *Notifier) Insert(ctx context.Context, r *journey.Report) error {
	return n.post(ctx, reportMessage(r))
}

// Recent is not supported on the webhook side.
func (n *Notifier) Recent(_ context.Context, _ int) ([]*journey.Report, error) {
	return nil, nil
}

func (n *Notifier) post(ctx context.Context, msg map[string]any) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func hintMessage(h *bus.ImprovementHint, at time.Time) map[string]any {
	var evidence []string
	for k, v := range h.Evidence {
		evidence = append(evidence, fmt.Sprintf("%s=%.2f", k, v))
	}

	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Target:* %s", h.TargetAgent)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", h.Severity)},
	}
	if len(evidence) > 0 {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Evidence:* %s", strings.Join(evidence, ", ")),
		})
	}
	if h.SuggestedAction != "" {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Suggested:* %s", h.SuggestedAction),
		})
	}

	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Improvement Hint: %s", severityEmoji(h.Severity), h.TargetAgent),
				},
			},
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": h.Hint},
			},
			{"type": "section", "fields": fields},
			contextBlock(at),
		},
	}
}

func reportMessage(r *journey.Report) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Claims:* %d", r.TotalClaims)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Fast track:* %.0f%%", r.PctFastTrack*100)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Flagged:* %.0f%%", r.PctFlagged*100)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Fraud flags:* %.0f%%", r.FraudFlagRate*100)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Docs evaluated:* %d", r.DocsEvaluated)},
	}
	if r.AvgTimeToTriage != nil {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Avg triage:* %.1fs", *r.AvgTimeToTriage),
		})
	}
	if r.AvgEstimateMin != nil && r.AvgEstimateMax != nil {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Avg estimate:* $%.0f - $%.0f", *r.AvgEstimateMin, *r.AvgEstimateMax),
		})
	}

	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": "\U0001f4ca Journey Report",
				},
			},
			{"type": "section", "fields": fields},
			contextBlock(r.GeneratedAt),
		},
	}
}

func contextBlock(ts time.Time) map[string]any {
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("fnol • %s", ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "high":
		return "\U0001f534" // red circle
	case "medium":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
