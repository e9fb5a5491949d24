package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/plan"
)

const notifyTimeout = 10 * time.Second

// WebhookNotifier delivers escalation and status messages to an
// incoming webhook. Without a webhook URL the message is only logged,
// which keeps escalation steps working in dev.
type WebhookNotifier struct {
	webhookURL     string
	defaultContact string
	client         *http.Client
	logger         log.Logger
}

// NewWebhookNotifier creates a notifier. defaultContact is used when a
// notify step has no recipient.
func NewWebhookNotifier(webhookURL, defaultContact string, logger log.Logger) *WebhookNotifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &WebhookNotifier{
		webhookURL:     webhookURL,
		defaultContact: defaultContact,
		client:         &http.Client{Timeout: notifyTimeout},
		logger:         logger,
	}
}

// Notify posts the message to the webhook, or logs it when no webhook
// is configured.
func (n *WebhookNotifier) Notify(ctx context.Context, args plan.NotifyArgs) (map[string]any, error) {
	recipient := args.Recipient
	if recipient == "" {
		recipient = n.defaultContact
	}

	if n.webhookURL == "" {
		n.logger.Info(ctx, "notification (no webhook configured)",
			"channel", args.Channel,
			"recipient", recipient,
			"subject", args.Subject,
			"message", args.Message,
		)
		return map[string]any{"delivered": true, "transport": "log", "recipient": recipient}, nil
	}

	payload := map[string]any{
		"channel":   args.Channel,
		"recipient": recipient,
		"subject":   args.Subject,
		"text":      args.Message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("notify: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return map[string]any{"delivered": true, "transport": "webhook", "recipient": recipient}, nil
}
