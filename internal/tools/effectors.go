package tools

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/recourse/internal/plan"
)

// FlagToggler records feature flag changes in memory and logs them.
// Stands in for a real flag service until one is wired up.
type FlagToggler struct {
	logger log.Logger

	mu    sync.Mutex
	flags map[string]bool // "flag/customer" -> enabled
}

// NewFlagToggler creates a new in-memory flag toggler.
func NewFlagToggler(logger log.Logger) *FlagToggler {
	if logger == nil {
		logger = log.Nop()
	}
	return &FlagToggler{logger: logger, flags: make(map[string]bool)}
}

// ToggleFeature sets the flag state and returns the new value.
func (f *FlagToggler) ToggleFeature(ctx context.Context, args plan.ToggleFeatureArgs) (map[string]any, error) {
	key := args.Flag + "/" + args.CustomerID

	f.mu.Lock()
	f.flags[key] = args.Enabled
	f.mu.Unlock()

	f.logger.Info(ctx, "feature flag toggled",
		"flag", args.Flag,
		"customer_id", args.CustomerID,
		"enabled", args.Enabled,
	)
	return map[string]any{"flag": args.Flag, "enabled": args.Enabled}, nil
}

// State reports the current value of a flag for a customer.
func (f *FlagToggler) State(flag, customerID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.flags[flag+"/"+customerID]
	return v, ok
}

// BugLogger files bugs into the service log and returns a tracking ID.
type BugLogger struct {
	logger log.Logger
}

// NewBugLogger creates a log-backed bug filer.
func NewBugLogger(logger log.Logger) *BugLogger {
	if logger == nil {
		logger = log.Nop()
	}
	return &BugLogger{logger: logger}
}

// FileBug records the bug and returns its tracking ID.
func (b *BugLogger) FileBug(ctx context.Context, args plan.FileBugArgs) (map[string]any, error) {
	bugID := "bug_" + ulid.Make().String()
	b.logger.Warn(ctx, "bug filed from case plan",
		"bug_id", bugID,
		"title", args.Title,
		"severity", args.Severity,
	)
	return map[string]any{"bug_id": bugID, "title": args.Title}, nil
}
