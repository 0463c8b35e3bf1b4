// Package agent implements the model-backed roles of a run: the intent
// classifier, task workers, the synthesizer, the refiner, and the approval
// responder.
package agent

import (
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/tools"
)

// Hooks receive progress from an agent while it runs. Any field may be nil.
// Hooks may be called from several goroutines at once.
type Hooks struct {
	OnToken     func(fragment string)
	OnToolStart func(name string)
	OnToolEnd   func(name, content string)
}

func (h Hooks) token(s string) {
	if h.OnToken != nil {
		h.OnToken(s)
	}
}

func (h Hooks) toolStart(name string) {
	if h.OnToolStart != nil {
		h.OnToolStart(name)
	}
}

func (h Hooks) toolEnd(name, content string) {
	if h.OnToolEnd != nil {
		h.OnToolEnd(name, content)
	}
}

// Deps are the collaborators shared by every agent.
type Deps struct {
	Models *llm.Router
	Tools  *tools.Registry
	Logger zerolog.Logger
	// MaxToolIterations bounds the tool loop. Zero uses DefaultMaxToolIterations.
	MaxToolIterations int
}

func (d Deps) maxIterations() int {
	if d.MaxToolIterations <= 0 {
		return DefaultMaxToolIterations
	}
	return d.MaxToolIterations
}

func (d Deps) logger(component string) zerolog.Logger {
	return d.Logger.With().Str("component", component).Logger()
}

// truncateForDisplay shortens tool output for event payloads.
func truncateForDisplay(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
