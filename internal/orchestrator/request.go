package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

var (
	// ErrInvalidRequest is returned for a request that is not exactly one
	// valid start or resume shape.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrThreadBusy is returned when another call holds the thread.
	ErrThreadBusy = errors.New("thread is busy")
	// ErrNotSuspended is returned when resuming a thread with no pending suspension.
	ErrNotSuspended = errors.New("thread is not suspended")
)

// StartRequest starts a run for a conversation.
type StartRequest struct {
	Messages []models.Message `json:"message"`
	Config   *models.Config   `json:"config,omitempty"`
	ThreadID string           `json:"threadId,omitempty"`
}

// Validate checks the request.
func (r StartRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if r.Config != nil && r.Config.Aspect != "" && !models.ValidAspect(r.Config.Aspect) {
		return fmt.Errorf("%w: unsupported aspect %q", ErrInvalidRequest, r.Config.Aspect)
	}
	return nil
}

// ResumeRequest continues a suspended run with the human's reply.
type ResumeRequest struct {
	Value    json.RawMessage `json:"resumeValue"`
	ThreadID string          `json:"threadId"`
}

// Validate checks the request.
func (r ResumeRequest) Validate() error {
	if strings.TrimSpace(r.ThreadID) == "" {
		return fmt.Errorf("%w: threadId is required to resume", ErrInvalidRequest)
	}
	if len(r.Value) == 0 {
		return fmt.Errorf("%w: resumeValue is required", ErrInvalidRequest)
	}
	return nil
}

// Request is one call. Exactly one of Start and Resume is set.
type Request struct {
	Start  *StartRequest
	Resume *ResumeRequest
}

// Validate checks that exactly one valid shape is present.
func (r Request) Validate() error {
	switch {
	case r.Start != nil && r.Resume != nil:
		return fmt.Errorf("%w: message and resumeValue are mutually exclusive", ErrInvalidRequest)
	case r.Start != nil:
		return r.Start.Validate()
	case r.Resume != nil:
		return r.Resume.Validate()
	default:
		return fmt.Errorf("%w: either message or resumeValue is required", ErrInvalidRequest)
	}
}

// wireRequest is the union of both shapes as they appear on the wire.
type wireRequest struct {
	Message     []models.Message `json:"message"`
	Config      *models.Config   `json:"config"`
	ResumeValue json.RawMessage  `json:"resumeValue"`
	ThreadID    string           `json:"threadId"`
}

// DecodeRequest parses a JSON request body and validates it.
func DecodeRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var req Request
	if w.Message != nil {
		req.Start = &StartRequest{Messages: w.Message, Config: w.Config, ThreadID: w.ThreadID}
	}
	if w.ResumeValue != nil {
		req.Resume = &ResumeRequest{Value: w.ResumeValue, ThreadID: w.ThreadID}
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
