// Package server exposes the approval gateway as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// Gateway is the subset of approval.Gateway the API needs.
type Gateway interface {
	Submit(ctx context.Context, problem string) (approval.SubmitResult, error)
	Decide(ctx context.Context, id, stage string, approved bool, feedback string) (approval.DecisionResult, error)
	Pause(ctx context.Context, id, reason string) (approval.PauseResult, error)
	Resume(ctx context.Context, id, continueFrom string) (approval.ResumeResult, error)
	GetStatus(id string) (*pipeline.TaskState, error)
	GetStageOutput(id, stage string) (approval.StageOutput, error)
	GetFinalResult(id string) (approval.FinalResult, error)
	ListTasks() []pipeline.Summary
}

// Config configures the listener.
type Config struct {
	Port           int
	AllowedOrigins []string
	Version        string
}

// Server serves the API.
type Server struct {
	gateway Gateway
	origins map[string]struct{}
	version string
	logger  *slog.Logger
	server  *http.Server
}

// New builds a server. It does not start listening.
func New(gw Gateway, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		gateway: gw,
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)),
		version: cfg.Version,
		logger:  logger.With("component", "http"),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = struct{}{}
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens in the background. Listener errors go to errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("API server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeAPIJSON(w http.ResponseWriter, data any) {
	writeAPIJSONStatus(w, http.StatusOK, data)
}

func writeAPIJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
