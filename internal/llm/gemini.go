package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
)

// GeminiConfig configures the Gemini REST provider.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// MaxElapsed bounds all retries of one call.
	MaxElapsed time.Duration
	MaxTokens  int
}

// Gemini is a Model backed by the Gemini generateContent endpoint.
type Gemini struct {
	cfg        GeminiConfig
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGemini creates a Gemini model client.
func NewGemini(cfg GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGeminiEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 2 * time.Minute
	}
	return &Gemini{
		cfg:        cfg,
		url:        fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(cfg.Endpoint, "/"), cfg.Model),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "llm.gemini").Logger(),
	}, nil
}

// Name returns the configured model name.
func (g *Gemini) Name() string {
	return g.cfg.Model
}

// Invoke performs one generateContent call with retry on transient errors.
// The endpoint is not streamed; OnToken receives the full text once.
func (g *Gemini) Invoke(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second

	operation := func() (*geminiResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)

		start := time.Now()
		resp, err := g.httpClient.Do(httpReq)
		if err != nil {
			g.logger.Warn().Err(err).Msg("network error during gemini request, retrying")
			return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, g.handleAPIError(resp.StatusCode, respBody)
		}

		var payload geminiResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(payload.Candidates) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		g.logger.Debug().
			Dur("duration", time.Since(start)).
			Int64("prompt_tokens", payload.UsageMetadata.PromptTokenCount).
			Int64("completion_tokens", payload.UsageMetadata.CandidatesTokenCount).
			Msg("gemini generation complete")
		return &payload, nil
	}

	payload, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(g.cfg.MaxElapsed),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}

	out := convertGeminiResponse(payload)
	if req.OnToken != nil && out.Content != "" {
		req.OnToken(out.Content)
	}
	return out, nil
}

func (g *Gemini) handleAPIError(statusCode int, body []byte) error {
	g.logger.Error().Int("status", statusCode).Str("response", string(body)).Msg("gemini API returned error status")
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}

func (g *Gemini) buildRequest(req Request) geminiRequest {
	out := geminiRequest{}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		c := geminiContent{Role: "user"}
		if m.Role == RoleAssistant {
			c.Role = "model"
		}
		if m.Content != "" {
			c.Parts = append(c.Parts, geminiPart{Text: m.Content})
		}
		for _, call := range m.ToolCalls {
			c.Parts = append(c.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: call.Name, Args: call.Arguments}})
		}
		for _, res := range m.ToolResults {
			key := "result"
			if res.IsError {
				key = "error"
			}
			c.Parts = append(c.Parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     res.Name,
				Response: map[string]any{key: res.Content},
			}})
		}
		if len(c.Parts) > 0 {
			out.Contents = append(out.Contents, c)
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decl := geminiFunctionDeclaration{Name: t.Name, Description: t.Description}
			if len(t.Properties) > 0 {
				decl.Parameters = map[string]any{
					"type":       "object",
					"properties": t.Properties,
				}
				if len(t.Required) > 0 {
					decl.Parameters["required"] = t.Required
				}
			}
			decls = append(decls, decl)
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	maxTokens := int(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}
	if req.JSON || maxTokens > 0 {
		out.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: maxTokens}
		if req.JSON && len(req.Tools) == 0 {
			out.GenerationConfig.ResponseMimeType = "application/json"
		}
	}
	return out
}

func convertGeminiResponse(payload *geminiResponse) *Response {
	candidate := payload.Candidates[0]
	resp := &Response{
		StopReason: StopEndTurn,
		Usage: Usage{
			InputTokens:  payload.UsageMetadata.PromptTokenCount,
			OutputTokens: payload.UsageMetadata.CandidatesTokenCount,
		},
	}
	if candidate.FinishReason == "MAX_TOKENS" {
		resp.StopReason = StopMaxTokens
	}

	var text strings.Builder
	for i, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("%s-%d", part.FunctionCall.Name, i),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	resp.Content = text.String()
	if len(resp.ToolCalls) > 0 {
		resp.StopReason = StopToolUse
	}
	return resp
}
