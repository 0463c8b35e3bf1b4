package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/stream"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

var (
	chatThread string
	chatAspect string
	chatJSON   bool
	chatTokens bool
	chatSteps  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a request and watch it run",
	Long: `Send a request to the orchestrator and render its progress.

With a message argument, one request is sent. Without one, lines are read
from stdin; when a run suspends for approval, the next line is sent as
the reply. Type /quit to leave.

Use --json to print the raw event stream as JSON lines.`,
	RunE: runChat,
}

func init() {
	addRunFlags(chatCmd)
	chatCmd.Flags().StringVar(&chatAspect, "aspect", "", "Aspect ratio for generation requests (e.g. 16:9)")
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&chatThread, "thread", "", "Thread ID (default: generated)")
	cmd.Flags().BoolVar(&chatJSON, "json", false, "Print events as JSON lines")
	cmd.Flags().BoolVar(&chatTokens, "tokens", false, "Stream model tokens as they arrive")
	cmd.Flags().BoolVar(&chatSteps, "steps", false, "Print a step summary after each run")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var reqCfg *models.Config
	if chatAspect != "" {
		if !models.ValidAspect(chatAspect) {
			return fmt.Errorf("invalid aspect %q", chatAspect)
		}
		reqCfg = &models.Config{Aspect: chatAspect}
	}

	a, err := newApp(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	threadID := chatThread
	if threadID == "" {
		threadID = uuid.NewString()
	}
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		_, err := invoke(ctx, a, startRequest(strings.Join(args, " "), threadID, reqCfg), out)
		return err
	}

	prompt := color.New(color.FgMagenta).Sprint("> ")
	suspended := false
	sc := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, prompt)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "/quit":
			return nil
		case line == "":
			fmt.Fprint(out, prompt)
			continue
		}

		req := startRequest(line, threadID, reqCfg)
		if suspended {
			req = resumeRequest(line, threadID)
		}
		res, err := invoke(ctx, a, req, out)
		if err != nil {
			return err
		}
		suspended = res.Status == orchestrator.StatusSuspended
		fmt.Fprint(out, prompt)
	}
	return sc.Err()
}

func startRequest(text, threadID string, reqCfg *models.Config) orchestrator.Request {
	return orchestrator.Request{Start: &orchestrator.StartRequest{
		Messages: []models.Message{models.NewTextMessage(text)},
		Config:   reqCfg,
		ThreadID: threadID,
	}}
}

// resumeRequest sends value as JSON when it parses, otherwise as a string.
func resumeRequest(value, threadID string) orchestrator.Request {
	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		raw, _ = json.Marshal(value)
	}
	return orchestrator.Request{Resume: &orchestrator.ResumeRequest{
		Value:    raw,
		ThreadID: threadID,
	}}
}

// invoke runs req, rendering events to out.
func invoke(ctx context.Context, a *app, req orchestrator.Request, out io.Writer) (*orchestrator.Outcome, error) {
	timeline := stream.NewTimeline()
	if chatJSON {
		return a.orch.Invoke(ctx, req, stream.Sink(stream.Tee(timeline, stream.NewJSONLinesWriter(out))))
	}

	r := newRenderer(out, chatTokens)
	res, err := a.orch.Invoke(ctx, req, stream.Sink(stream.Tee(timeline, r)))
	if err != nil {
		return nil, err
	}
	r.finish(res)
	if chatSteps {
		fmt.Fprintln(out)
		summary(out, timeline.Steps())
	}
	if timeline.Waiting() {
		fmt.Fprintf(out, "\nThread %s is waiting. Reply with: switchyard resume --thread %s <reply>\n", res.ThreadID, res.ThreadID)
	}
	return res, nil
}
