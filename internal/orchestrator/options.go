package orchestrator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/state"
)

// DeadlockPolicy selects what happens when tasks remain but none can run.
type DeadlockPolicy string

const (
	// DeadlockSynthesize routes to the Synthesizer with what completed.
	DeadlockSynthesize DeadlockPolicy = "synthesize"
	// DeadlockError ends the run with a planning error naming the stuck tasks.
	DeadlockError DeadlockPolicy = "error"
)

// ParseDeadlockPolicy validates s. The empty string selects DeadlockSynthesize.
func ParseDeadlockPolicy(s string) (DeadlockPolicy, error) {
	switch DeadlockPolicy(s) {
	case "", DeadlockSynthesize:
		return DeadlockSynthesize, nil
	case DeadlockError:
		return DeadlockError, nil
	default:
		return "", fmt.Errorf("unknown deadlock policy %q", s)
	}
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxConcurrency    int
	maxToolIterations int
	deadlockPolicy    DeadlockPolicy
	approvalEnabled   bool
	refineEnabled     bool
	logger            zerolog.Logger
	metrics           *Metrics
	locks             *state.ThreadLocks
	newThreadID       func() string
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		deadlockPolicy:  DeadlockSynthesize,
		approvalEnabled: true,
		refineEnabled:   true,
		logger:          zerolog.Nop(),
		newThreadID:     uuid.NewString,
	}
}

// WithMaxConcurrency bounds how many workers run at once. Zero means no bound.
func WithMaxConcurrency(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrency = n }
}

// WithMaxToolIterations bounds model calls per tool loop.
func WithMaxToolIterations(n int) Option {
	return func(o *orchestratorOptions) { o.maxToolIterations = n }
}

// WithDeadlockPolicy sets the deadlock policy.
func WithDeadlockPolicy(p DeadlockPolicy) Option {
	return func(o *orchestratorOptions) { o.deadlockPolicy = p }
}

// WithApproval enables or disables the approval suspension for domain actions.
// When disabled, domain actions are planned like decompose requests.
func WithApproval(enabled bool) Option {
	return func(o *orchestratorOptions) { o.approvalEnabled = enabled }
}

// WithRefine enables or disables refinement after synthesis for generation intents.
func WithRefine(enabled bool) Option {
	return func(o *orchestratorOptions) { o.refineEnabled = enabled }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink. Without it the default registry is used.
func WithMetrics(m *Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithLocks shares a thread lock set between orchestrators.
func WithLocks(l *state.ThreadLocks) Option {
	return func(o *orchestratorOptions) { o.locks = l }
}

// WithThreadIDGenerator replaces the uuid thread id generator.
func WithThreadIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) {
		if fn != nil {
			o.newThreadID = fn
		}
	}
}
