package agent

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// SynthesisResult is the merged answer. Fallback is set when the model call
// failed and Text is the apology built from the raw outputs.
type SynthesisResult struct {
	Text     string
	Fallback bool
}

// Synthesizer merges task outputs into one answer.
type Synthesizer struct {
	deps Deps
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(deps Deps) *Synthesizer {
	return &Synthesizer{deps: deps}
}

// Synthesize produces the final answer. It never returns an error: on model
// failure the result apologizes and still carries each task's output.
func (s *Synthesizer) Synthesize(ctx context.Context, msgs []models.Message, tasks models.TaskGraph, outputs models.AgentOutputs, hooks Hooks) SynthesisResult {
	logger := s.deps.logger("synthesizer")
	logger.Debug().Int("outputs", len(outputs)).Msg("combining outputs")

	model, err := s.deps.Models.Default()
	if err == nil {
		var resp *llm.Response
		resp, err = model.Invoke(ctx, llm.Request{
			System:   SynthesizerPrompt,
			Messages: []llm.Message{llm.UserMessage(SynthesizerInput(msgs, tasks, outputs))},
			OnToken:  hooks.OnToken,
		})
		if err == nil {
			return SynthesisResult{Text: resp.Content}
		}
	}

	logger.Warn().Err(err).Msg("synthesis failed, returning raw outputs")
	return SynthesisResult{Text: synthesisFallback(err, tasks, outputs), Fallback: true}
}

func synthesisFallback(err error, tasks models.TaskGraph, outputs models.AgentOutputs) string {
	msg := fmt.Sprintf("Sorry, something went wrong while combining the results: %v.", err)
	if len(outputs) == 0 {
		return msg + " No individual task results were produced."
	}
	return fmt.Sprintf("%s The individual task results are still available below.\n\n%s", msg, RenderOutputs(tasks, outputs))
}
