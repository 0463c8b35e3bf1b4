package agent

import (
	"context"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// RefineFailedText is the result when refinement fails.
const RefineFailedText = "Processing failed."

// RefineResult is the refiner's output.
type RefineResult struct {
	Text   string
	Failed bool
}

// Refiner is the downstream step that answers chat requests and turns
// generation requests into a final generation prompt.
type Refiner struct {
	deps Deps
}

// NewRefiner creates a refiner.
func NewRefiner(deps Deps) *Refiner {
	return &Refiner{deps: deps}
}

// Refine produces the final text for st. Generation intents get a prompt
// shaped by the configured aspect ratio and any synthesized research in
// st.Result. Every other intent gets a direct chat reply that may draw on
// st.Result.
func (r *Refiner) Refine(ctx context.Context, st models.ExecutionState, hooks Hooks) RefineResult {
	logger := r.deps.logger("refiner").With().Str("thread_id", st.ThreadID).Logger()

	model, err := r.deps.Models.Default()
	if err != nil {
		logger.Warn().Err(err).Msg("refiner has no model")
		return RefineResult{Text: RefineFailedText, Failed: true}
	}

	req := llm.Request{OnToken: hooks.OnToken}
	if st.Intent.IsGeneration() {
		aspect := st.Config.Aspect
		if !models.ValidAspect(aspect) {
			aspect = models.DefaultAspect
		}
		req.Messages = []llm.Message{llm.UserMessage(GenerationPrompt(st.Result, aspect, models.LastText(st.Messages)))}
	} else {
		req.System = ChatPrompt
		if st.Result != "" {
			req.System += "\n\nUse this information from earlier steps:\n" + st.Result
		}
		req.Messages = chatHistory(st.Messages)
	}

	resp, err := model.Invoke(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("refinement failed")
		return RefineResult{Text: RefineFailedText, Failed: true}
	}
	return RefineResult{Text: resp.Content}
}

// chatHistory renders each message as one user turn. File attachments are
// left to the retrieval layer and do not reach the chat model.
func chatHistory(msgs []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		var kept models.Message
		for _, item := range m.Content {
			if item.Kind == models.ContentAttachment && item.MimeCategory == models.MimeFile {
				continue
			}
			kept.Content = append(kept.Content, item)
		}
		if text := kept.Render(); text != "" {
			out = append(out, llm.UserMessage(text))
		}
	}
	if len(out) == 0 {
		out = append(out, llm.UserMessage("Hello"))
	}
	return out
}
