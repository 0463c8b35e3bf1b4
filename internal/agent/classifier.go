package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// Classification is the classifier's tagged result. When OK is false the
// model output was unusable and Intent holds the plain-chat default.
type Classification struct {
	Intent models.Intent
	OK     bool
	// Raw is the model output, kept for logging.
	Raw string
	Err error
}

// Classifier labels a request with one Intent.
type Classifier struct {
	deps Deps
}

// NewClassifier creates a classifier.
func NewClassifier(deps Deps) *Classifier {
	return &Classifier{deps: deps}
}

type classifierOutput struct {
	Intent string `json:"intent"`
}

// Classify returns exactly one member of the intent enumeration. Model
// errors and labels outside the enumeration fall back to plain-chat.
func (c *Classifier) Classify(ctx context.Context, msgs []models.Message, hooks Hooks) Classification {
	logger := c.deps.logger("classifier")

	model, err := c.deps.Models.Default()
	if err != nil {
		return Classification{Intent: models.IntentPlainChat, Err: err}
	}

	resp, err := model.Invoke(ctx, llm.Request{
		System:    ClassifierPrompt,
		Messages:  []llm.Message{llm.UserMessage(ClassifierInput(msgs))},
		MaxTokens: 256,
		JSON:      true,
		OnToken:   hooks.OnToken,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("classifier call failed, defaulting to plain-chat")
		return Classification{Intent: models.IntentPlainChat, Err: err}
	}

	result := parseClassification(resp.Content)
	if !result.OK {
		logger.Warn().Err(result.Err).Str("raw", result.Raw).Msg("unusable intent, defaulting to plain-chat")
	} else {
		logger.Debug().Str("intent", string(result.Intent)).Msg("intent identified")
	}
	return result
}

func parseClassification(raw string) Classification {
	label := strings.Trim(strings.ToLower(strings.TrimSpace(raw)), `"'.`)

	var out classifierOutput
	if err := llm.DecodeJSON(raw, &out); err == nil {
		label = strings.ToLower(strings.TrimSpace(out.Intent))
	}

	intent, ok := models.ParseIntent(label)
	if !ok {
		return Classification{
			Intent: intent,
			Raw:    raw,
			Err:    fmt.Errorf("intent %q is not a known label", label),
		}
	}
	return Classification{Intent: intent, OK: true, Raw: raw}
}
