package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// ApprovalResult is the outcome of the call made after a human responds.
type ApprovalResult struct {
	Text   string
	Failed bool
}

// Approver feeds the value supplied on resume into a tool-enabled model call.
type Approver struct {
	deps Deps
}

// NewApprover creates an approver.
func NewApprover(deps Deps) *Approver {
	return &Approver{deps: deps}
}

// Respond runs the approval call. The resumed value and the original request
// both reach the model; failures become explicit text.
func (a *Approver) Respond(ctx context.Context, st models.ExecutionState, value json.RawMessage, hooks Hooks) ApprovalResult {
	logger := a.deps.logger("approver").With().Str("thread_id", st.ThreadID).Logger()

	model, err := a.deps.Models.Default()
	if err != nil {
		return ApprovalResult{Text: fmt.Sprintf("Approval could not be processed: %v", err), Failed: true}
	}

	loop := &toolLoop{
		model:         model,
		tools:         a.deps.Tools,
		maxIterations: a.deps.maxIterations(),
		hooks:         hooks,
		logger:        logger,
	}
	res, err := loop.run(ctx, llm.Request{
		System: ApprovalPrompt,
		Messages: []llm.Message{
			llm.UserMessage(fmt.Sprintf("Original request:\n%s\n\nHuman response:\n%s",
				models.RenderMessages(st.Messages), ResumeText(value))),
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("approval call failed")
		return ApprovalResult{Text: fmt.Sprintf("Approval could not be processed: %v", err), Failed: true}
	}
	return ApprovalResult{Text: res.Output}
}

// ResumeText renders a resume value for a prompt. JSON strings are unquoted;
// any other JSON value is passed through as written.
func ResumeText(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	return string(value)
}
