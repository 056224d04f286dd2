// Package server exposes the resume operations over a local HTTP API for
// browser extensions and scripts.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/resumetailor/internal/handoff"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
)

// Runner runs operations. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, op model.Operation) (string, error)
	Apply(ctx context.Context, st pipeline.State, op model.Operation) (pipeline.State, error)
}

// Compiler turns a LaTeX document into a PDF.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Runner      Runner
	Store       model.DocumentStore
	Compiler    Compiler
	Editor      *handoff.Editor
	Template    string // default document for new sessions
	CORSOrigins []string
}

// Server serves the HTTP API. Operations on the same session are
// serialized; different sessions run concurrently.
type Server struct {
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Server.locks once refs reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps, logger *slog.Logger) *Server {
	return &Server{
		deps:   deps,
		logger: logger,
		locks:  make(map[string]*sessionLock),
	}
}

// Router builds the gin engine with middleware and routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		requestLogger(s.logger),
		recovery(s.logger),
		cors(s.deps.CORSOrigins),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/template", s.template)
	api.POST("/operations", s.runOperation)

	api.POST("/sessions", s.createSession)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/tailor", s.sessionOperation(model.KindTailor))
	api.POST("/sessions/:id/refine", s.sessionOperation(model.KindRefine))
	api.POST("/sessions/:id/shorten", s.sessionOperation(model.KindShorten))
	api.POST("/sessions/:id/revert", s.revert)
	api.GET("/sessions/:id/pdf", s.pdf)
	api.GET("/sessions/:id/overleaf", s.overleaf)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// lockSession acquires the mutex for a session and returns its release.
func (s *Server) lockSession(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
