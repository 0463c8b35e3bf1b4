package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// SSEWriter writes events as server-sent events. Headers are sent with the
// first event so a handler can still answer with an error status when a
// call fails before producing anything.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Write sends ev as "event: <type>\ndata: <json>\n\n".
func (s *SSEWriter) Write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Started reports whether any event has been written.
func (s *SSEWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// JSONLinesWriter writes one JSON object per line.
type JSONLinesWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesWriter wraps w.
func NewJSONLinesWriter(w io.Writer) *JSONLinesWriter {
	return &JSONLinesWriter{enc: json.NewEncoder(w)}
}

func (j *JSONLinesWriter) Write(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(ev)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(Event) error

func (f WriterFunc) Write(ev Event) error { return f(ev) }

// Tee writes every event to each writer in order and stops at the first error.
func Tee(writers ...Writer) Writer {
	return WriterFunc(func(ev Event) error {
		for _, w := range writers {
			if err := w.Write(ev); err != nil {
				return err
			}
		}
		return nil
	})
}
