package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/switchyard/internal/agent"
	"github.com/ShayCichocki/switchyard/internal/decompose"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// PlanningErrorText is the result when the deadlock policy is DeadlockError.
const PlanningErrorText = "Planning error: these tasks can never run because their dependencies cannot be satisfied: %s"

// ApprovalPromptText is shown to the human when a domain action waits for approval.
const ApprovalPromptText = "Approval required before acting on this request:\n%s\n\nReply to continue."

// run is the per-call state of one execution. The state is owned by the
// goroutine driving step; workers only read their assignment snapshot.
type run struct {
	o           *Orchestrator
	st          models.ExecutionState
	resumeValue json.RawMessage
	emitter     *EventEmitter
	logger      zerolog.Logger
	// stuck is set by a deadlocked pass and reported when synthesis starts.
	stuck []string
}

func (r *run) emit(ev Event) {
	r.emitter.Emit(ev)
}

func (r *run) apply(u models.Update) {
	r.st = r.st.Apply(u)
}

// interrupted reports a sink failure or cancellation of the caller's context.
func (r *run) interrupted(ctx context.Context) error {
	if err := r.emitter.Err(); err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	return ctx.Err()
}

// hooks routes agent progress for the phase or worker called name.
func (r *run) hooks(name string) agent.Hooks {
	return agent.Hooks{
		OnToken: func(fragment string) {
			r.emit(Event{Type: EventToken, Name: name, Content: fragment})
		},
		OnToolStart: func(tool string) {
			r.emit(Event{Type: EventToolStarted, Name: tool, Source: name})
		},
		OnToolEnd: func(tool, content string) {
			r.emit(Event{Type: EventToolCompleted, Name: tool, Source: name, Content: content})
		},
	}
}

// phase emits the start of a phase and returns the function that ends it.
func (r *run) phase(name string, stuck ...string) func(output string, failed bool) {
	r.emit(Event{Type: EventPhaseStarted, Name: name, Stuck: stuck})
	r.logger.Debug().Str("phase", name).Msg("phase started")
	started := time.Now()
	return func(output string, failed bool) {
		status := "ok"
		if failed {
			status = "recovered"
		}
		d := time.Since(started)
		r.o.metrics.ObservePhase(name, status, d)
		r.logger.Debug().Str("phase", name).Str("status", status).Dur("duration", d).Msg("phase finished")
		r.emit(Event{Type: EventPhaseCompleted, Name: name, Output: output, Failed: failed})
	}
}

// step executes the phase at the current position and advances it. It
// returns suspend=true with the prompt to show when the run must wait.
func (r *run) step(ctx context.Context) (prompt string, suspend bool, err error) {
	switch r.st.Position {
	case models.PhaseClassify:
		r.classify(ctx)
	case models.PhasePlan:
		r.plan(ctx)
	case models.PhaseDispatch:
		r.dispatch(ctx)
	case models.PhaseSynthesize:
		r.synthesize(ctx)
	case models.PhaseRefine:
		r.refine(ctx)
	case models.PhaseApproval:
		prompt = fmt.Sprintf(ApprovalPromptText, models.LastText(r.st.Messages))
		r.apply(models.Update{Position: models.Ptr(models.PhaseApprovalReply)})
		return prompt, true, nil
	case models.PhaseApprovalReply:
		r.approvalReply(ctx)
	default:
		return "", false, fmt.Errorf("unknown run position %q", r.st.Position)
	}
	return "", false, nil
}

// route picks the phase after classification.
func (r *run) route(intent models.Intent) models.Phase {
	switch intent {
	case models.IntentDecompose, models.IntentComplexGeneration:
		return models.PhasePlan
	case models.IntentSimpleGeneration, models.IntentPlainChat:
		return models.PhaseRefine
	case models.IntentDomainAction:
		if r.o.opts.approvalEnabled {
			return models.PhaseApproval
		}
		return models.PhasePlan
	default:
		return models.PhaseRefine
	}
}

// afterAnswer picks the phase once an answer exists: generation intents are
// refined, everything else is done.
func (r *run) afterAnswer() models.Phase {
	if r.st.Intent.IsGeneration() && r.o.opts.refineEnabled {
		return models.PhaseRefine
	}
	return models.PhaseDone
}

func (r *run) classify(ctx context.Context) {
	end := r.phase(PhaseNameClassifier)
	c := r.o.classifier.Classify(ctx, r.st.Messages, r.hooks(PhaseNameClassifier))
	r.apply(models.Update{
		Intent:   models.Ptr(c.Intent),
		Position: models.Ptr(r.route(c.Intent)),
	})
	r.logger.Info().Str("intent", string(c.Intent)).Bool("parsed", c.OK).Msg("request classified")
	end(string(c.Intent), !c.OK)
}

func (r *run) plan(ctx context.Context) {
	end := r.phase(PhaseNameSupervisor)
	plan := r.o.planner.Plan(ctx, r.st.Messages, r.hooks(PhaseNameSupervisor).OnToken)

	next := models.PhaseDispatch
	if plan.Kind == decompose.PlanDirect {
		next = r.afterAnswer()
	}
	r.apply(models.Update{
		Tasks:    models.Ptr(plan.Tasks),
		Result:   models.Ptr(plan.Result),
		Position: models.Ptr(next),
	})
	r.logger.Info().Str("plan", plan.Kind.String()).Int("tasks", len(plan.Tasks)).Msg("plan ready")
	end(plan.Result, plan.Kind == decompose.PlanFallback)
}

// dispatch runs one round: every ready task executes concurrently and all
// workers are joined before outputs are merged and the scheduler runs again.
func (r *run) dispatch(ctx context.Context) {
	d := Distribute(r.st.Tasks, r.st.Outputs, r.st.ThreadID)
	if d.Kind == DecisionSynthesize {
		r.finishDispatch(d)
		return
	}

	results := make([]agent.WorkerResult, len(d.Assignments))
	var g errgroup.Group
	if r.o.opts.maxConcurrency > 0 {
		g.SetLimit(r.o.opts.maxConcurrency)
	}
	for i, a := range d.Assignments {
		g.Go(func() error {
			name := WorkerName(a.Task.ID)
			r.emit(Event{Type: EventTaskStarted, Name: name, TaskID: a.Task.ID})
			res := r.o.worker.Run(ctx, a.Task, a.Context, a.ThreadID, r.hooks(name))
			results[i] = res
			r.o.metrics.IncTask(res.Failed)
			r.o.metrics.AddToolCalls(res.ToolCalls)
			r.emit(Event{
				Type:   EventTaskCompleted,
				Name:   name,
				TaskID: a.Task.ID,
				Output: res.Output,
				Failed: res.Failed,
			})
			return nil
		})
	}
	_ = g.Wait()

	outputs := make(models.AgentOutputs, len(results))
	for _, res := range results {
		outputs[res.TaskID] = res.Output
	}
	r.apply(models.Update{Outputs: outputs})
	r.logger.Debug().Int("dispatched", len(results)).Int("completed", len(r.st.Outputs)).Msg("round finished")
}

func (r *run) finishDispatch(d Decision) {
	if d.Reason != ReasonDeadlock {
		r.apply(models.Update{Position: models.Ptr(models.PhaseSynthesize)})
		return
	}

	r.o.metrics.IncDeadlock()
	r.logger.Warn().
		Strs("stuck", d.Stuck).
		Str("policy", string(r.o.opts.deadlockPolicy)).
		Msg("no task can become ready")

	if r.o.opts.deadlockPolicy == DeadlockError {
		result := fmt.Sprintf(PlanningErrorText, strings.Join(d.Stuck, ", "))
		r.apply(models.Update{
			Result:   models.Ptr(result),
			Position: models.Ptr(models.PhaseDone),
		})
		return
	}
	r.stuck = d.Stuck
	r.apply(models.Update{Position: models.Ptr(models.PhaseSynthesize)})
}

func (r *run) synthesize(ctx context.Context) {
	end := r.phase(PhaseNameSynthesize, r.stuck...)
	res := r.o.synthesizer.Synthesize(ctx, r.st.Messages, r.st.Tasks, r.st.Outputs, r.hooks(PhaseNameSynthesize))
	r.apply(models.Update{Result: models.Ptr(res.Text)})
	r.apply(models.Update{Position: models.Ptr(r.afterAnswer())})
	end(res.Text, res.Fallback)
}

func (r *run) refine(ctx context.Context) {
	end := r.phase(PhaseNameRefiner)
	res := r.o.refiner.Refine(ctx, r.st, r.hooks(PhaseNameRefiner))
	r.apply(models.Update{
		Result:   models.Ptr(res.Text),
		Position: models.Ptr(models.PhaseDone),
	})
	end(res.Text, res.Failed)
}

func (r *run) approvalReply(ctx context.Context) {
	end := r.phase(PhaseNameApproval)
	res := r.o.approver.Respond(ctx, r.st, r.resumeValue, r.hooks(PhaseNameApproval))
	next := models.PhaseDone
	if r.o.opts.refineEnabled {
		next = models.PhaseRefine
	}
	r.apply(models.Update{
		Result:   models.Ptr(res.Text),
		Position: models.Ptr(next),
	})
	end(res.Text, res.Failed)
}

// suspend persists the run and reports it as waiting for a human.
func (r *run) suspend(ctx context.Context, prompt string, usage *llm.TokenTracker) (*Outcome, error) {
	cp := state.Checkpoint{ThreadID: r.st.ThreadID, State: r.st, Prompt: prompt}
	if err := r.o.store.Save(ctx, cp); err != nil {
		r.o.metrics.IncRun(string(r.st.Intent), "error")
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	r.emit(Event{Type: EventSuspended, Name: PhaseNameApproval, Content: prompt})
	if err := r.emitter.Err(); err != nil {
		r.o.metrics.IncRun(string(r.st.Intent), "error")
		return nil, fmt.Errorf("event stream: %w", err)
	}

	r.logger.Info().Str("position", string(r.st.Position)).Msg("run suspended")
	r.o.metrics.IncRun(string(r.st.Intent), string(StatusSuspended))

	in, out := usage.Total()
	return &Outcome{
		ThreadID:     r.st.ThreadID,
		Status:       StatusSuspended,
		Prompt:       prompt,
		State:        r.st,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
