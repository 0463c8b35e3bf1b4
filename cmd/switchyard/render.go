package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/stream"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// renderer prints the event stream for a terminal. Steps and tools are
// shown as progress lines; tokens are printed only when showTokens is set.
type renderer struct {
	mu         sync.Mutex
	out        io.Writer
	showTokens bool
	midLine    bool

	step   *color.Color
	done   *color.Color
	tool   *color.Color
	warn   *color.Color
	result *color.Color
}

func newRenderer(out io.Writer, showTokens bool) *renderer {
	return &renderer{
		out:        out,
		showTokens: showTokens,
		step:       color.New(color.FgCyan),
		done:       color.New(color.FgGreen),
		tool:       color.New(color.FgYellow),
		warn:       color.New(color.FgRed),
		result:     color.New(color.Bold),
	}
}

// Write implements stream.Writer.
func (r *renderer) Write(ev stream.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == stream.TypeToken {
		if r.showTokens {
			fmt.Fprint(r.out, ev.Content)
			r.midLine = true
		}
		return nil
	}
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}

	switch ev.Type {
	case stream.TypeStepStart:
		if ev.Name == orchestrator.RunName {
			return nil
		}
		line := fmt.Sprintf("▸ %s", ev.Name)
		if ev.Data != nil && len(ev.Data.Stuck) > 0 {
			line += r.warn.Sprintf(" (unreachable: %s)", strings.Join(ev.Data.Stuck, ", "))
		}
		fmt.Fprintln(r.out, r.step.Sprint(line))
	case stream.TypeStepEnd:
		if ev.Name == orchestrator.RunName {
			return nil
		}
		fmt.Fprintf(r.out, "%s %s\n", r.done.Sprint("✓"), ev.Name)
	case stream.TypeToolStart:
		fmt.Fprintf(r.out, "  %s %s\n", r.tool.Sprint("⚙"), ev.Name)
	case stream.TypeToolEnd:
		fmt.Fprintf(r.out, "  %s %s: %s\n", r.tool.Sprint("⚙"), ev.Name, firstLine(ev.Content))
	case stream.TypeInterrupt:
		fmt.Fprintf(r.out, "%s\n%s\n", r.warn.Sprint("⏸ waiting for input"), ev.Content)
	}
	return nil
}

// finish prints the final answer of a completed run.
func (r *renderer) finish(out *orchestrator.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
	if out.Status != orchestrator.StatusCompleted {
		return
	}
	fmt.Fprintf(r.out, "\n%s\n", r.result.Sprint(out.Result))
}

// summary prints the steps a chat client would show.
func summary(w io.Writer, steps []models.Step) {
	for _, s := range steps {
		mark := "…"
		if s.Status == models.StepCompleted {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s %-24s %s\n", mark, s.Name, firstLine(s.Content))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	const maxLen = 80
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}
