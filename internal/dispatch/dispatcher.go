// Package dispatch is the entry point the agent caller uses: given a tool
// name and a raw argument, it resolves the registry entry, invokes it, and
// returns the handler's envelope unmodified. It holds no conversation
// state, so the reasoning loop and the tool implementations stay decoupled.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"sophia/internal/domain"
	"sophia/internal/normalize"
	"sophia/internal/tooling"
)

// defaultCallTimeout bounds a single tool invocation so one slow remote
// call cannot stall a session indefinitely.
const defaultCallTimeout = 2 * time.Minute

// Option is a functional option for configuring Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a structured logger. If l is nil it is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithCallTimeout bounds each tool invocation. Non-positive values are
// ignored.
func WithCallTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// Dispatcher routes invocations to the process-wide tool registry. It is
// read-only after construction and safe for concurrent sessions.
type Dispatcher struct {
	registry *tooling.Registry
	logger   *slog.Logger
	timeout  time.Duration
}

// NewDispatcher returns a Dispatcher over the given registry. Registry must
// not be nil.
func NewDispatcher(registry *tooling.Registry, opts ...Option) *Dispatcher {
	if registry == nil {
		panic("dispatch: registry must not be nil")
	}
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
		timeout:  defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Definitions exposes the advertised catalogue for the reasoning loop.
func (d *Dispatcher) Definitions() []tooling.ToolDefinition {
	return d.registry.Definitions()
}

// Invoke looks up the named tool and runs it with a bounded timeout. An
// unknown name yields a structured error envelope, never a fault; the
// handler's result is returned unmodified.
func (d *Dispatcher) Invoke(ctx context.Context, name string, rawArg any) domain.ToolResult {
	tool, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warn("unknown tool requested", "tool", name)
		return domain.ErrResult(name, rawArg, "unknown tool %q; available tools: %v", name, d.registry.Names())
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result := tool.Call(ctx, normalize.FromAny(rawArg))
	d.logger.Info("tool invoked",
		"tool", name,
		"ok", result.OK,
		"duration", time.Since(start),
	)
	return result
}

var _ domain.ToolInvoker = (*Dispatcher)(nil)
