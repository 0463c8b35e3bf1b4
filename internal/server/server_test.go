package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/switchyard/internal/agent"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/llm/llmtest"
	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/server"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeModel answers the classifier with intent and everything else by role.
func fakeModel(intent string) llm.Model {
	return llmtest.New("fake", func(_ context.Context, req llm.Request, _ int) (*llm.Response, error) {
		switch {
		case req.System == agent.ClassifierPrompt:
			return llmtest.Text(`{"intent": "` + intent + `"}`), nil
		case req.System == agent.ApprovalPrompt:
			return llmtest.Text("approved and done"), nil
		case strings.HasPrefix(req.System, agent.ChatPrompt):
			return llmtest.Text("hello from the chat"), nil
		default:
			return llmtest.Text("ok"), nil
		}
	})
}

type harness struct {
	store *state.MemoryStore
	srv   *server.Server
}

func newHarness(t *testing.T, intent string) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	store := state.NewMemoryStore()
	o, err := orchestrator.New(orchestrator.RequiredConfig{
		Models: llm.NewRouter(fakeModel(intent)),
		Store:  store,
	},
		orchestrator.WithLogger(zerolog.Nop()),
		orchestrator.WithMetrics(orchestrator.MustNewMetrics(reg)),
	)
	require.NoError(t, err)
	return &harness{
		store: store,
		srv:   server.New(o, store, server.Config{BodyLimit: 4096, Gatherer: reg}, zerolog.Nop()),
	}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

// readEvents parses an SSE body into translated events.
func readEvents(t *testing.T, body string) []stream.Event {
	t.Helper()
	var events []stream.Event
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev stream.Event
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		events = append(events, ev)
	}
	return events
}

func TestFlow_PlainChatStreams(t *testing.T) {
	h := newHarness(t, "plain-chat")

	rec := h.do(http.MethodPost, "/api/v1/flow",
		`{"message":[{"content":[{"kind":"text","value":"hi"}]}],"threadId":"t1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, stream.TypeStepStart, events[0].Type)
	assert.Equal(t, orchestrator.RunName, events[0].Name)

	last := events[len(events)-1]
	assert.Equal(t, stream.TypeStepEnd, last.Type)
	assert.Equal(t, orchestrator.RunName, last.Name)
	require.NotNil(t, last.Data)
	assert.Equal(t, "hello from the chat", last.Data.Output)

	for _, ev := range events {
		if ev.Type == stream.TypeToken {
			assert.NotEqual(t, orchestrator.PhaseNameClassifier, ev.Name, "classifier tokens are not streamed")
		}
	}
}

func TestFlow_SuspendInspectResume(t *testing.T) {
	h := newHarness(t, "domain-action")

	rec := h.do(http.MethodPost, "/api/v1/flow",
		`{"message":[{"content":[{"kind":"text","value":"delete my drafts"}]}],"threadId":"t9"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := readEvents(t, rec.Body.String())
	last := events[len(events)-1]
	assert.Equal(t, stream.TypeInterrupt, last.Type)
	assert.Equal(t, "t9", last.ThreadID)
	assert.Contains(t, last.Content, "delete my drafts")

	rec = h.do(http.MethodGet, "/api/v1/threads/t9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var thread map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	assert.Equal(t, "t9", thread["threadId"])
	assert.Equal(t, "approval_reply", thread["position"])
	assert.Contains(t, thread["prompt"], "delete my drafts")

	rec = h.do(http.MethodPost, "/api/v1/flow", `{"resumeValue":"yes","threadId":"t9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	events = readEvents(t, rec.Body.String())
	last = events[len(events)-1]
	assert.Equal(t, stream.TypeStepEnd, last.Type)
	require.NotNil(t, last.Data)
	assert.Equal(t, "hello from the chat", last.Data.Output)

	rec = h.do(http.MethodGet, "/api/v1/threads/t9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlow_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"message":`, http.StatusBadRequest},
		{"neither shape", `{"threadId":"t1"}`, http.StatusBadRequest},
		{"both shapes", `{"message":[{"content":[{"kind":"text","value":"hi"}]}],"resumeValue":1,"threadId":"t1"}`, http.StatusBadRequest},
		{"resume without thread", `{"resumeValue":"ok"}`, http.StatusBadRequest},
		{"resume unknown thread", `{"resumeValue":"ok","threadId":"nobody"}`, http.StatusNotFound},
		{"too large", `{"message":[{"content":[{"kind":"text","value":"` + strings.Repeat("x", 5000) + `"}]}]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "plain-chat")
			rec := h.do(http.MethodPost, "/api/v1/flow", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

// stubInvoker returns a fixed error, optionally after emitting one event.
type stubInvoker struct {
	err  error
	emit bool
}

func (s stubInvoker) Invoke(_ context.Context, _ orchestrator.Request, sink orchestrator.Sink) (*orchestrator.Outcome, error) {
	if s.emit {
		_ = sink(orchestrator.Event{Type: orchestrator.EventRunStarted, Name: orchestrator.RunName})
	}
	return nil, s.err
}

func TestFlow_InvokeErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		inv  stubInvoker
		want int
	}{
		{"busy thread", stubInvoker{err: orchestrator.ErrThreadBusy}, http.StatusConflict},
		{"not suspended", stubInvoker{err: orchestrator.ErrNotSuspended}, http.StatusNotFound},
		{"storage failure", stubInvoker{err: errors.New("disk full")}, http.StatusInternalServerError},
		{"after stream started", stubInvoker{err: errors.New("late"), emit: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := server.New(tt.inv, state.NewMemoryStore(), server.Config{}, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flow", strings.NewReader(`{"resumeValue":1,"threadId":"t"}`))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "disk full")
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, "plain-chat")

	rec := h.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	h.do(http.MethodPost, "/api/v1/flow", `{"message":[{"content":[{"kind":"text","value":"hi"}]}]}`)

	rec = h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "switchyard_orchestrator_runs_total")
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv := server.New(stubInvoker{}, state.NewMemoryStore(), server.Config{ShutdownTimeout: time.Second}, zerolog.Nop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
