package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/llm/llmtest"
	"github.com/ShayCichocki/switchyard/internal/tools"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDeps(t *testing.T, model llm.Model, ts ...tools.Tool) Deps {
	t.Helper()
	reg, err := tools.NewRegistry(ts...)
	require.NoError(t, err)
	return Deps{
		Models: llm.NewRouter(model),
		Tools:  reg,
		Logger: zerolog.Nop(),
	}
}

func tool(name string, fn func(ctx context.Context, args json.RawMessage) (string, error)) tools.Tool {
	return tools.Func(llm.ToolSpec{Name: name, Description: name}, fn)
}

func call(id, name string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(`{}`)}
}

func TestClassifier(t *testing.T) {
	tests := []struct {
		name   string
		model  llm.Model
		want   models.Intent
		wantOK bool
	}{
		{"json label", llmtest.Reply(`{"intent": "decompose"}`), models.IntentDecompose, true},
		{"fenced json", llmtest.Reply("```json\n{\"intent\":\"domain-action\"}\n```"), models.IntentDomainAction, true},
		{"bare label", llmtest.Reply("simple-generation"), models.IntentSimpleGeneration, true},
		{"unknown label", llmtest.Reply(`{"intent": "weather"}`), models.IntentPlainChat, false},
		{"garbage", llmtest.Reply("I think you want a poem"), models.IntentPlainChat, false},
		{"model error", llmtest.Fail(errors.New("boom")), models.IntentPlainChat, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(newDeps(t, tt.model))
			got := c.Classify(context.Background(), []models.Message{models.NewTextMessage("hi")}, Hooks{})
			assert.Equal(t, tt.want, got.Intent)
			assert.Equal(t, tt.wantOK, got.OK)
			assert.True(t, got.Intent.Valid())
		})
	}
}

func TestClassifier_HasFileContext(t *testing.T) {
	model := llmtest.Reply(`{"intent":"decompose"}`)
	c := NewClassifier(newDeps(t, model))

	msgs := []models.Message{{Content: []models.ContentItem{
		models.Text("summarize this"),
		models.Attachment("doc-1", models.MimeFile),
	}}}
	c.Classify(context.Background(), msgs, Hooks{})

	prompt := model.LastRequest().Messages[0].Content
	assert.Contains(t, prompt, "contains a file: yes")
	assert.Contains(t, prompt, "[file]")
}

func TestWorker_Success(t *testing.T) {
	model := llmtest.Reply("the answer")
	w := NewWorker(newDeps(t, model))

	task := models.Task{ID: "B", Role: "Writer", Instruction: "write it", Dependencies: []string{"A"}}
	res := w.Run(context.Background(), task, models.AgentOutputs{"A": "research notes"}, "t1", Hooks{})

	assert.False(t, res.Failed)
	assert.Equal(t, "B", res.TaskID)
	assert.Equal(t, "the answer", res.Output)
	assert.Equal(t, 1, res.Iterations)

	system := model.LastRequest().System
	assert.Contains(t, system, "Writer")
	assert.Contains(t, system, "write it")
	assert.Contains(t, system, "[A]")
	assert.Contains(t, system, "research notes")
}

func TestWorker_ModelErrorBecomesFailureText(t *testing.T) {
	w := NewWorker(newDeps(t, llmtest.Fail(errors.New("rate limited"))))
	res := w.Run(context.Background(), models.Task{ID: "A"}, nil, "t1", Hooks{})

	assert.True(t, res.Failed)
	assert.True(t, IsFailure(res.Output))
	assert.Contains(t, res.Output, "rate limited")
}

func TestWorker_ToolErrorBecomesFailureText(t *testing.T) {
	model := llmtest.Sequence(llmtest.ToolUse("", call("c1", "lookup")), llmtest.Text("unreachable"))
	broken := tool("lookup", func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("service down")
	})
	w := NewWorker(newDeps(t, model, broken))

	res := w.Run(context.Background(), models.Task{ID: "A"}, nil, "t1", Hooks{})
	assert.True(t, res.Failed)
	assert.Contains(t, res.Output, "service down")
	assert.Contains(t, res.Output, "lookup")
}

func TestWorker_UnknownToolBecomesFailureText(t *testing.T) {
	model := llmtest.Sequence(llmtest.ToolUse("", call("c1", "nope")))
	w := NewWorker(newDeps(t, model))

	res := w.Run(context.Background(), models.Task{ID: "A"}, nil, "t1", Hooks{})
	assert.True(t, res.Failed)
	assert.Contains(t, res.Output, "tool not found")
}

func TestWorker_ToolLoopBoundedAtFiveIterations(t *testing.T) {
	var toolRuns atomic.Int32
	model := llmtest.New("looper", func(_ context.Context, _ llm.Request, n int) (*llm.Response, error) {
		return llmtest.ToolUse("still thinking", call("c", "ping")), nil
	})
	ping := tool("ping", func(context.Context, json.RawMessage) (string, error) {
		toolRuns.Add(1)
		return "pong", nil
	})
	w := NewWorker(newDeps(t, model, ping))

	done := make(chan WorkerResult, 1)
	go func() {
		done <- w.Run(context.Background(), models.Task{ID: "A"}, nil, "t1", Hooks{})
	}()

	select {
	case res := <-done:
		assert.False(t, res.Failed)
		assert.Equal(t, 5, res.Iterations)
		assert.Equal(t, 5, model.Calls())
		assert.Equal(t, int32(4), toolRuns.Load())
		assert.Contains(t, res.Output, "still thinking")
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not return")
	}
}

func TestWorker_ToolLoopExhaustedWithoutContentFails(t *testing.T) {
	model := llmtest.New("looper", func(context.Context, llm.Request, int) (*llm.Response, error) {
		return llmtest.ToolUse("", call("c", "ping")), nil
	})
	ping := tool("ping", func(context.Context, json.RawMessage) (string, error) { return "pong", nil })

	deps := newDeps(t, model, ping)
	deps.MaxToolIterations = 3
	res := NewWorker(deps).Run(context.Background(), models.Task{ID: "A"}, nil, "t1", Hooks{})

	assert.True(t, res.Failed)
	assert.Equal(t, 3, model.Calls())
}

func TestWorker_ConcurrentToolResultsAppendedInOrder(t *testing.T) {
	model := llmtest.Sequence(
		llmtest.ToolUse("", call("c1", "slow"), call("c2", "fast")),
		llmtest.Text("done"),
	)
	slow := tool("slow", func(context.Context, json.RawMessage) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "slow result", nil
	})
	fast := tool("fast", func(context.Context, json.RawMessage) (string, error) {
		return "fast result", nil
	})

	var started, ended atomic.Int32
	hooks := Hooks{
		OnToolStart: func(string) { started.Add(1) },
		OnToolEnd:   func(string, string) { ended.Add(1) },
	}
	res := NewWorker(newDeps(t, model, slow, fast)).Run(context.Background(), models.Task{ID: "A"}, nil, "t1", hooks)
	require.False(t, res.Failed)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, int32(2), ended.Load())

	second := model.Requests()[1]
	last := second.Messages[len(second.Messages)-1]
	require.Len(t, last.ToolResults, 2)
	assert.Equal(t, "c1", last.ToolResults[0].CallID)
	assert.Equal(t, "slow result", last.ToolResults[0].Content)
	assert.Equal(t, "c2", last.ToolResults[1].CallID)
}

func TestWorker_StreamsTokens(t *testing.T) {
	var sb strings.Builder
	res := NewWorker(newDeps(t, llmtest.Reply("hello there"))).Run(context.Background(), models.Task{ID: "A"}, nil, "t1",
		Hooks{OnToken: func(s string) { sb.WriteString(s) }})
	require.False(t, res.Failed)
	assert.Equal(t, "hello there", sb.String())
}

func TestSynthesizer(t *testing.T) {
	model := llmtest.Reply("merged")
	s := NewSynthesizer(newDeps(t, model))

	tasks := models.TaskGraph{{ID: "B"}, {ID: "A"}}
	outputs := models.AgentOutputs{"A": "x", "B": "y"}
	res := s.Synthesize(context.Background(), []models.Message{models.NewTextMessage("question")}, tasks, outputs, Hooks{})

	assert.False(t, res.Fallback)
	assert.Equal(t, "merged", res.Text)

	input := model.LastRequest().Messages[0].Content
	assert.Contains(t, input, "question")
	assert.Less(t, strings.Index(input, "[B]"), strings.Index(input, "[A]"))
}

func TestSynthesizer_FallbackKeepsOutputs(t *testing.T) {
	s := NewSynthesizer(newDeps(t, llmtest.Fail(errors.New("timeout"))))
	res := s.Synthesize(context.Background(), nil, models.TaskGraph{{ID: "A"}}, models.AgentOutputs{"A": "partial work"}, Hooks{})

	assert.True(t, res.Fallback)
	assert.Contains(t, res.Text, "Sorry")
	assert.Contains(t, res.Text, "individual task results")
	assert.Contains(t, res.Text, "partial work")
}

func TestRefiner_Generation(t *testing.T) {
	model := llmtest.Reply("a cat in sunglasses, cinematic")
	r := NewRefiner(newDeps(t, model))

	st := models.NewExecutionState("t1")
	st.Intent = models.IntentComplexGeneration
	st.Config = models.Config{Aspect: models.Aspect1x1}
	st.Result = "cats like shade"
	st.Messages = []models.Message{models.NewTextMessage("draw a cool cat")}

	res := r.Refine(context.Background(), st, Hooks{})
	assert.False(t, res.Failed)
	assert.Equal(t, "a cat in sunglasses, cinematic", res.Text)

	prompt := model.LastRequest().Messages[0].Content
	assert.Contains(t, prompt, "1:1")
	assert.Contains(t, prompt, "cats like shade")
	assert.Contains(t, prompt, "draw a cool cat")
}

func TestRefiner_ChatDropsFileAttachments(t *testing.T) {
	model := llmtest.Reply("hi!")
	r := NewRefiner(newDeps(t, model))

	st := models.NewExecutionState("t1")
	st.Intent = models.IntentPlainChat
	st.Messages = []models.Message{{Content: []models.ContentItem{
		models.Text("hello"),
		models.Attachment("f1", models.MimeFile),
		models.Attachment("i1", models.MimeImage),
	}}}

	res := r.Refine(context.Background(), st, Hooks{})
	require.False(t, res.Failed)

	req := model.LastRequest()
	assert.Equal(t, ChatPrompt, req.System)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "[image]")
	assert.NotContains(t, req.Messages[0].Content, "[file]")
}

func TestRefiner_Failure(t *testing.T) {
	r := NewRefiner(newDeps(t, llmtest.Fail(errors.New("down"))))
	res := r.Refine(context.Background(), models.NewExecutionState("t1"), Hooks{})
	assert.True(t, res.Failed)
	assert.Equal(t, RefineFailedText, res.Text)
}

func TestApprover_FeedsResumeValue(t *testing.T) {
	model := llmtest.Reply("lights turned on")
	a := NewApprover(newDeps(t, model))

	st := models.NewExecutionState("t1")
	st.Messages = []models.Message{models.NewTextMessage("turn on the lights")}

	res := a.Respond(context.Background(), st, json.RawMessage(`"ok"`), Hooks{})
	assert.False(t, res.Failed)
	assert.Equal(t, "lights turned on", res.Text)

	prompt := model.LastRequest().Messages[0].Content
	assert.Contains(t, prompt, "turn on the lights")
	assert.Contains(t, prompt, "Human response:\nok")
}

func TestResumeText(t *testing.T) {
	assert.Equal(t, "ok", ResumeText(json.RawMessage(`"ok"`)))
	assert.Equal(t, `{"approved":true}`, ResumeText(json.RawMessage(`{"approved":true}`)))
}

func TestTruncateForDisplay(t *testing.T) {
	assert.Equal(t, "short", truncateForDisplay("short"))

	got := truncateForDisplay(strings.Repeat("a", 499) + strings.Repeat("é", 5))
	assert.Equal(t, strings.Repeat("a", 499)+"...", got)
	assert.True(t, utf8.ValidString(got))
}
