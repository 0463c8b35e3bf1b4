package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchyard/internal/config"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/internal/stream"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CheckpointConfig
		wantErr bool
	}{
		{"memory", config.CheckpointConfig{Driver: config.DriverMemory}, false},
		{"sqlite", config.CheckpointConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "cp.db")}, false},
		{"unknown", config.CheckpointConfig{Driver: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			ctx := context.Background()
			require.NoError(t, store.Save(ctx, state.Checkpoint{
				ThreadID: "t1",
				State:    models.NewExecutionState("t1"),
				Prompt:   "approve?",
			}))
			cp, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "approve?", cp.Prompt)

			// Nothing is older than an hour yet.
			purgeCheckpoints(ctx, store, time.Hour, zerolog.Nop())
			_, err = store.Load(ctx, "t1")
			assert.NoError(t, err)
		})
	}
}

func TestBuildModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	c := config.Default()
	usage := llm.NewTokenTracker()

	_, err := buildModel(context.Background(), c, config.ProviderAnthropic, usage, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrNoAPIKey)

	_, err = buildModel(context.Background(), c, "openai", usage, zerolog.Nop())
	assert.ErrorIs(t, err, llm.ErrNoProvider)

	c.Gemini.APIKey = "AIzaSyTESTKEY00000000000"
	m, err := buildModel(context.Background(), c, config.ProviderGemini, usage, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, c.Gemini.Model, m.Name())

	c.Anthropic.APIKey = "sk-ant-api03-testkey"
	c.Models.Reasoning = config.ProviderGemini
	router, err := buildRouter(context.Background(), c, usage, zerolog.Nop())
	require.NoError(t, err)
	reasoning, err := router.For(models.ModelHintReasoning)
	require.NoError(t, err)
	assert.Equal(t, c.Gemini.Model, reasoning.Name())
}

func TestOrchestratorOptions(t *testing.T) {
	c := config.Default().Orchestrator
	opts, err := orchestratorOptions(c, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, opts, 6)

	c.DeadlockPolicy = "shrug"
	_, err = orchestratorOptions(c, zerolog.Nop())
	assert.Error(t, err)
}

func TestResumeRequest(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"approved":true}`, `{"approved":true}`},
		{`42`, `42`},
		{`yes please`, `"yes please"`},
		{`"quoted"`, `"quoted"`},
	}
	for _, tt := range tests {
		req := resumeRequest(tt.in, "t1")
		require.NotNil(t, req.Resume)
		assert.JSONEq(t, tt.want, string(req.Resume.Value))
		assert.NoError(t, req.Validate())
	}
}

func TestRenderer(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	r := newRenderer(&buf, true)
	events := []stream.Event{
		{Type: stream.TypeStepStart, Name: orchestrator.RunName},
		{Type: stream.TypeStepStart, Name: "Worker:a"},
		{Type: stream.TypeToolStart, Name: "current_time"},
		{Type: stream.TypeToolEnd, Name: "current_time", Content: "2026-01-01T00:00:00Z\nextra"},
		{Type: stream.TypeToken, Name: "Worker:a", Content: "hel"},
		{Type: stream.TypeToken, Name: "Worker:a", Content: "lo"},
		{Type: stream.TypeStepEnd, Name: "Worker:a", Data: &stream.Data{Output: "hello"}},
		{Type: stream.TypeStepStart, Name: orchestrator.PhaseNameSynthesize, Data: &stream.Data{Stuck: []string{"c"}}},
		{Type: stream.TypeStepEnd, Name: orchestrator.RunName, Data: &stream.Data{Output: "final"}},
	}
	for _, ev := range events {
		require.NoError(t, r.Write(ev))
	}
	r.finish(&orchestrator.Outcome{Status: orchestrator.StatusCompleted, Result: "final"})

	want := strings.Join([]string{
		"▸ Worker:a",
		"  ⚙ current_time",
		"  ⚙ current_time: 2026-01-01T00:00:00Z …",
		"hello",
		"✓ Worker:a",
		"▸ Synthesizer (unreachable: c)",
		"",
		"final",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestRenderer_Interrupt(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	r := newRenderer(&buf, false)
	require.NoError(t, r.Write(stream.Event{Type: stream.TypeToken, Content: "ignored"}))
	require.NoError(t, r.Write(stream.Event{Type: stream.TypeInterrupt, Content: "Approve?", ThreadID: "t1"}))
	r.finish(&orchestrator.Outcome{Status: orchestrator.StatusSuspended, Prompt: "Approve?"})

	assert.Equal(t, "⏸ waiting for input\nApprove?\n", buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	summary(&buf, []models.Step{
		{Name: "Classifier", Status: models.StepCompleted},
		{Name: "Refiner", Status: models.StepRunning, Content: "partial"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "✓ Classifier"))
	assert.True(t, strings.HasPrefix(lines[1], "… Refiner"))
	assert.True(t, strings.HasSuffix(lines[1], "partial"))
}

func TestWriteConfigYAML(t *testing.T) {
	c := config.Default()
	c.Anthropic.APIKey = "sk-ant-REDACTED"

	var buf bytes.Buffer
	require.NoError(t, writeConfigYAML(&buf, c))

	out := buf.String()
	assert.NotContains(t, out, "abcdefghijklmnop")
	assert.Contains(t, out, "sk-ant-...mnop")
	assert.Contains(t, out, "deadlock_policy: synthesize")
	assert.Contains(t, out, "model_call_timeout: 2m0s")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one …", firstLine("  one\ntwo "))
	assert.Equal(t, strings.Repeat("x", 80)+"…", firstLine(strings.Repeat("x", 100)))

	cut := firstLine(strings.Repeat("x", 79) + strings.Repeat("é", 5))
	assert.Equal(t, strings.Repeat("x", 79)+"…", cut)
	assert.True(t, utf8.ValidString(cut))

	raw, _ := json.Marshal(firstLine(""))
	assert.Equal(t, `""`, string(raw))
}
