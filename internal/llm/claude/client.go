// Package claude adapts the Anthropic API to the caseflow collaborator
// interfaces. It provides the intent classifier and the reply drafter.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/caseflow"
)

const defaultMaxTokens = 1024

// Client talks to the Anthropic messages API. It implements both
// caseflow.Classifier and caseflow.Drafter.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    log.Logger
}

// New creates a new Claude client with the given API key and model name.
func New(apiKey, model string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
		logger:    logger,
	}
}

// Classify extracts intents and severity from the ticket text.
func (c *Client) Classify(ctx context.Context, text string) (*caseflow.Classification, error) {
	raw, err := c.send(ctx, classifySystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("claude: classify: %w", err)
	}
	cls, err := parseClassification(raw)
	if err != nil {
		return nil, fmt.Errorf("claude: classify: %w", err)
	}
	return cls, nil
}

// Draft writes the customer-facing reply for a case.
func (c *Client) Draft(ctx context.Context, req *caseflow.DraftRequest) (string, error) {
	raw, err := c.send(ctx, draftSystemPrompt, buildDraftPrompt(req))
	if err != nil {
		return "", fmt.Errorf("claude: draft: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// send issues a single-turn request and returns the concatenated text
// content of the reply.
func (c *Client) send(ctx context.Context, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages.new: %w", err)
	}

	c.logger.Info(ctx, "claude response",
		"model", string(c.model),
		"stop_reason", string(msg.StopReason),
		"tokens_in", msg.Usage.InputTokens,
		"tokens_out", msg.Usage.OutputTokens,
	)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response (stop reason %s)", msg.StopReason)
	}
	return sb.String(), nil
}

const classifySystemPrompt = `You classify customer support tickets.
Respond with a single JSON object and nothing else:
{"intents": ["<intent>", ...], "severity": "low"|"normal"|"high"}
Intents are short snake_case labels such as "refund_request",
"duplicate_charge", "shipping_delay" or "account_access". Severity is
"high" only for fraud, legal threats, or customers locked out of paid
functionality.`

const draftSystemPrompt = `You write replies to customer support tickets.
Ground every factual sentence in one of the provided knowledge base
snippets and cite it with its bracketed number, e.g. [1]. Never promise
actions other than the outcome you are given. Be brief and plain.`

// classification mirrors the JSON shape the classifier prompt requests.
type classification struct {
	Intents  []string `json:"intents"`
	Severity string   `json:"severity"`
}

// parseClassification pulls the JSON object out of the model reply.
// Models occasionally wrap JSON in code fences or prose, so it scans
// for the outermost braces rather than unmarshalling the raw reply.
func parseClassification(raw string) (*caseflow.Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply %q", raw)
	}

	var c classification
	if err := json.Unmarshal([]byte(raw[start:end+1]), &c); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	if len(c.Intents) == 0 {
		c.Intents = []string{"general"}
	}
	severity := caseflow.Severity(strings.ToLower(strings.TrimSpace(c.Severity)))
	switch severity {
	case caseflow.SeverityLow, caseflow.SeverityNormal, caseflow.SeverityHigh:
	default:
		severity = caseflow.SeverityNormal
	}
	return &caseflow.Classification{Intents: c.Intents, Severity: severity}, nil
}

// buildDraftPrompt lays out the ticket, the outcome to communicate, and
// the numbered snippets available for citation.
func buildDraftPrompt(req *caseflow.DraftRequest) string {
	var sb strings.Builder

	sb.WriteString("Ticket from customer:\n")
	sb.WriteString(req.Ticket.Text)
	sb.WriteString("\n\nOutcome to communicate: ")
	switch req.Disposition {
	case caseflow.DispositionApproved:
		sb.WriteString("the refund was approved and is being processed.")
	case caseflow.DispositionDenied:
		sb.WriteString("the refund was denied after review.")
	case caseflow.DispositionEscalated:
		sb.WriteString("the request was escalated to a supervisor who will follow up.")
	default:
		sb.WriteString("no action was taken yet.")
	}

	if len(req.MissingEvidence) > 0 {
		sb.WriteString("\nAsk the customer to provide: ")
		sb.WriteString(strings.Join(req.MissingEvidence, ", "))
		sb.WriteString(".")
	}

	sb.WriteString("\n\nKnowledge base snippets:\n")
	for i, ch := range req.Chunks {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, ch.Source, ch.Text)
	}
	if len(req.Chunks) == 0 {
		sb.WriteString("(none)\n")
	}

	sb.WriteString("\nWrite the reply in Markdown.")
	return sb.String()
}
