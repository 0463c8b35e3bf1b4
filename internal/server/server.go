// Package server exposes the orchestrator over HTTP.
//
// POST /api/v1/flow accepts either request shape and streams translated
// events as server-sent events. Failures detected before the first event
// are answered with a JSON error and a status code; once the stream has
// started, failures end the stream and are only logged.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/internal/stream"
	"github.com/ShayCichocki/switchyard/internal/version"
)

// Invoker runs one request. *orchestrator.Orchestrator satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (*orchestrator.Outcome, error)
}

// CheckpointReader loads suspended runs.
type CheckpointReader interface {
	Load(ctx context.Context, threadID string) (state.Checkpoint, error)
}

// Config configures a Server.
type Config struct {
	Addr            string
	BodyLimit       int64
	ShutdownTimeout time.Duration
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP transport.
type Server struct {
	invoker     Invoker
	checkpoints CheckpointReader
	cfg         Config
	logger      zerolog.Logger
	router      chi.Router
}

// New builds a Server and its routes.
func New(invoker Invoker, checkpoints CheckpointReader, cfg Config, logger zerolog.Logger) *Server {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		invoker:     invoker,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/flow", s.handleFlow)
		r.Get("/threads/{threadID}", s.handleThread)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get(),
	})
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, s.cfg.BodyLimit)
	if !ok {
		return
	}
	req, err := orchestrator.DecodeRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out, err := s.invoker.Invoke(r.Context(), req, stream.Sink(sse))
	if err != nil {
		if sse.Started() {
			s.logger.Warn().Err(err).Msg("stream ended with error")
			return
		}
		writeFlowError(w, s.logger, err)
		return
	}
	s.logger.Debug().
		Str("thread_id", out.ThreadID).
		Str("status", string(out.Status)).
		Msg("flow finished")
}

type threadResponse struct {
	ThreadID  string    `json:"threadId"`
	Position  string    `json:"position"`
	Prompt    string    `json:"prompt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "threadID")
	cp, err := s.checkpoints.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrCheckpointNotFound) {
			writeError(w, http.StatusNotFound, "no suspended run for thread "+id)
			return
		}
		writeFlowError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, threadResponse{
		ThreadID:  cp.ThreadID,
		Position:  string(cp.State.Position),
		Prompt:    cp.Prompt,
		UpdatedAt: cp.UpdatedAt,
	})
}
