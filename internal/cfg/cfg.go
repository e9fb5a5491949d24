package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers string
	KafkaTopic   string

	NotifyWebhookURL  string
	EscalationContact string
	ReviewerToken     string

	KBPath         string
	RetrievalLimit int

	RefundCapMinor            int
	RefundLowMinor            int
	RefundMediumMinor         int
	ExplanationThresholdMinor int
	ExplanationMinChars       int
	PhotoThresholdMinor       int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for case checkpoints (empty = in-memory store)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis URL for case checkpoints (used when database-url is empty)")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", "", "comma-separated Kafka brokers for case export (empty = export disabled)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "recourse-cases", "Kafka topic for closed-case events")
	fs.StringVar(&c.NotifyWebhookURL, "notify-webhook-url", "", "webhook URL for escalation notifications (empty = log only)")
	fs.StringVar(&c.EscalationContact, "escalation-contact", "support-leads@example.com", "default recipient for escalation notifications")
	fs.StringVar(&c.ReviewerToken, "reviewer-token", "", "bearer token for the decision endpoint (empty = unauthenticated)")
	fs.StringVar(&c.KBPath, "kb-path", "", "path to the knowledge base YAML (empty = built-in corpus)")
	fs.IntVar(&c.RetrievalLimit, "retrieval-limit", 10, "candidates each ranker returns before fusion (1..100)")
	fs.IntVar(&c.RefundCapMinor, "refund-cap-minor", 5000, "hard refund ceiling in minor units")
	fs.IntVar(&c.RefundLowMinor, "refund-low-minor", 2000, "upper bound of the auto-approve refund tier in minor units")
	fs.IntVar(&c.RefundMediumMinor, "refund-medium-minor", 5000, "upper bound of the approval-gated refund tier in minor units")
	fs.IntVar(&c.ExplanationThresholdMinor, "explanation-threshold-minor", 1000, "amount from which an explanation is required, in minor units")
	fs.IntVar(&c.ExplanationMinChars, "explanation-min-chars", 0, "minimum explanation length accepted from ticket text (0 = any non-empty)")
	fs.IntVar(&c.PhotoThresholdMinor, "photo-threshold-minor", 2000, "amount from which photo evidence is required, in minor units")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude API key is required for LLM access
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}

	// Claude model is required for LLM access
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.DatabaseURL != "" && c.RedisURL != "" {
		errs = append(errs, errors.New("DATABASE_URL and REDIS_URL are mutually exclusive"))
	}

	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if c.RetrievalLimit <= 0 || c.RetrievalLimit > 100 {
		errs = append(errs, fmt.Errorf("invalid RETRIEVAL_LIMIT %d (must be 1..100)", c.RetrievalLimit))
	}

	// Refund tiers must be ordered; the policy engine re-validates but a
	// misconfiguration should fail startup, not the first ticket.
	if c.RefundCapMinor <= 0 {
		errs = append(errs, fmt.Errorf("invalid REFUND_CAP_MINOR %d (must be positive)", c.RefundCapMinor))
	}
	if c.RefundLowMinor <= 0 || c.RefundLowMinor > c.RefundMediumMinor {
		errs = append(errs, fmt.Errorf("invalid REFUND_LOW_MINOR %d (must be 1..REFUND_MEDIUM_MINOR)", c.RefundLowMinor))
	}
	if c.RefundMediumMinor > c.RefundCapMinor {
		errs = append(errs, fmt.Errorf("REFUND_MEDIUM_MINOR %d must not exceed REFUND_CAP_MINOR %d", c.RefundMediumMinor, c.RefundCapMinor))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Brokers returns the Kafka broker list, or nil when export is disabled.
func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
