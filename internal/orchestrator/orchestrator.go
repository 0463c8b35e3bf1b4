// Package orchestrator runs a request through classification, planning,
// dependency-aware concurrent task execution, synthesis, and refinement.
// Runs that need a human stop at an approval point, persist their state,
// and continue later through Resume.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/agent"
	"github.com/ShayCichocki/switchyard/internal/decompose"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/internal/tools"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// RequiredConfig contains the collaborators an Orchestrator cannot run without.
type RequiredConfig struct {
	// Models selects a model per hint. It must have a default model.
	Models *llm.Router
	// Tools is the registry available to workers and the approval call. May be nil.
	Tools *tools.Registry
	// Store persists suspended runs.
	Store state.CheckpointStore
}

// Status is how a call ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
)

// Outcome is the result of one call.
type Outcome struct {
	ThreadID string
	Status   Status
	// Result is the final answer when completed.
	Result string
	// Prompt is shown to the human when suspended.
	Prompt string
	State  models.ExecutionState
	// InputTokens and OutputTokens are the model usage of this call.
	InputTokens  int64
	OutputTokens int64
}

// Orchestrator drives runs. It is safe for concurrent use; calls on the
// same thread are serialized and a second concurrent call fails with
// ErrThreadBusy.
type Orchestrator struct {
	classifier  *agent.Classifier
	planner     *decompose.Planner
	worker      *agent.Worker
	synthesizer *agent.Synthesizer
	refiner     *agent.Refiner
	approver    *agent.Approver

	store   state.CheckpointStore
	locks   *state.ThreadLocks
	metrics *Metrics
	logger  zerolog.Logger
	opts    orchestratorOptions
}

// New creates an Orchestrator.
func New(cfg RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if cfg.Models == nil {
		return nil, errors.New("orchestrator: models router is required")
	}
	if _, err := cfg.Models.Default(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if cfg.Store == nil {
		return nil, errors.New("orchestrator: checkpoint store is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = defaultMetrics()
	}
	if o.locks == nil {
		o.locks = state.NewThreadLocks()
	}
	if o.maxConcurrency < 0 {
		o.maxConcurrency = 0
	}

	logger := o.logger.With().Str("component", "orchestrator").Logger()
	deps := agent.Deps{
		Models:            cfg.Models,
		Tools:             cfg.Tools,
		Logger:            o.logger,
		MaxToolIterations: o.maxToolIterations,
	}

	return &Orchestrator{
		classifier:  agent.NewClassifier(deps),
		planner:     decompose.New(cfg.Models, o.logger),
		worker:      agent.NewWorker(deps),
		synthesizer: agent.NewSynthesizer(deps),
		refiner:     agent.NewRefiner(deps),
		approver:    agent.NewApprover(deps),
		store:       cfg.Store,
		locks:       o.locks,
		metrics:     o.metrics,
		logger:      logger,
		opts:        o,
	}, nil
}

// Invoke validates req and starts or resumes a run, streaming events to
// sink. Model and tool failures never surface here; the returned error is
// limited to invalid requests, busy or unknown threads, checkpoint storage
// failures, cancellation, and sink errors.
func (o *Orchestrator) Invoke(ctx context.Context, req Request, sink Sink) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Resume != nil {
		return o.Resume(ctx, *req.Resume, sink)
	}
	return o.Start(ctx, *req.Start, sink)
}

// Start runs a new request. A thread left suspended by an earlier call is
// superseded.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest, sink Sink) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = o.opts.newThreadID()
	}
	if !o.locks.TryLock(threadID) {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	defer o.locks.Unlock(threadID)

	if _, err := o.store.Load(ctx, threadID); err == nil {
		o.logger.Info().Str("thread_id", threadID).Msg("superseding suspended run")
		if err := o.store.Delete(ctx, threadID); err != nil {
			return nil, fmt.Errorf("delete superseded checkpoint: %w", err)
		}
	} else if !errors.Is(err, state.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	st := models.NewExecutionState(threadID).Apply(models.Update{
		Messages: req.Messages,
		Config:   req.Config,
	})
	return o.execute(ctx, st, nil, sink)
}

// Resume continues a suspended run with the human's reply.
func (o *Orchestrator) Resume(ctx context.Context, req ResumeRequest, sink Sink) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.locks.TryLock(req.ThreadID) {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, req.ThreadID)
	}
	defer o.locks.Unlock(req.ThreadID)

	cp, err := o.store.Load(ctx, req.ThreadID)
	if errors.Is(err, state.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotSuspended, req.ThreadID)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.State.Position != models.PhaseApprovalReply {
		return nil, fmt.Errorf("%w: %s is at %s", ErrNotSuspended, req.ThreadID, cp.State.Position)
	}
	return o.execute(ctx, cp.State, req.Value, sink)
}

// execute drives st until it suspends or reaches PhaseDone.
func (o *Orchestrator) execute(ctx context.Context, st models.ExecutionState, resumeValue json.RawMessage, sink Sink) (*Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	usage := llm.NewTokenTracker()
	ctx = llm.ContextWithTracker(ctx, usage)

	r := &run{
		o:           o,
		st:          st,
		resumeValue: resumeValue,
		emitter:     NewEventEmitter(sink, st.ThreadID, cancel),
		logger:      o.logger.With().Str("thread_id", st.ThreadID).Logger(),
	}
	resumed := resumeValue != nil

	o.metrics.IncActiveRuns()
	defer o.metrics.DecActiveRuns()

	started := time.Now()
	r.logger.Info().Bool("resumed", resumed).Str("position", string(st.Position)).Msg("run started")
	r.emit(Event{Type: EventRunStarted, Name: RunName})

	for r.st.Position != models.PhaseDone {
		prompt, suspend, err := r.step(ctx)
		if err == nil {
			err = r.interrupted(ctx)
		}
		if err != nil {
			o.metrics.IncRun(string(r.st.Intent), "error")
			r.logger.Error().Err(err).Str("position", string(r.st.Position)).Msg("run aborted")
			return nil, err
		}
		if suspend {
			return r.suspend(ctx, prompt, usage)
		}
	}

	if resumed {
		if err := o.store.Delete(ctx, r.st.ThreadID); err != nil {
			r.logger.Warn().Err(err).Msg("failed to delete checkpoint")
		}
	}

	r.emit(Event{Type: EventRunCompleted, Name: RunName, Output: r.st.Result})
	if err := r.emitter.Err(); err != nil {
		o.metrics.IncRun(string(r.st.Intent), "error")
		return nil, fmt.Errorf("event stream: %w", err)
	}

	in, out := usage.Total()
	r.logger.Info().
		Str("intent", string(r.st.Intent)).
		Dur("duration", time.Since(started)).
		Int("model_calls", usage.Calls()).
		Int64("input_tokens", in).
		Int64("output_tokens", out).
		Msg("run completed")
	o.metrics.IncRun(string(r.st.Intent), string(StatusCompleted))

	return &Outcome{
		ThreadID:     r.st.ThreadID,
		Status:       StatusCompleted,
		Result:       r.st.Result,
		State:        r.st,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
