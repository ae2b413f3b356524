// Package server exposes the wayline use cases as an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/josephgoksu/Wayline/internal/app"
)

// UserHeader optionally overrides the acting user for one request.
const UserHeader = "X-Wayline-User"

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	UserID         string // default user when UserHeader is absent
	Version        string
}

// Server serves the API. Handlers are thin: decode, call the app layer,
// encode.
type Server struct {
	appCtx     *app.Context
	tasks      *app.TaskApp
	reasoning  *app.ReasoningApp
	bridge     *app.BridgeApp
	reflection *app.ReflectionApp

	userID  string
	version string
	origins map[string]struct{}
	server  *http.Server
}

// New wires a Server over an app context. The context's store stays owned by
// the caller.
func New(appCtx *app.Context, opts Options) *Server {
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[o] = struct{}{}
	}
	userID := opts.UserID
	if userID == "" {
		userID = "local"
	}
	s := &Server{
		appCtx:     appCtx,
		tasks:      app.NewTaskApp(appCtx),
		reasoning:  app.NewReasoningApp(appCtx),
		bridge:     app.NewBridgeApp(appCtx),
		reflection: app.NewReflectionApp(appCtx),
		userID:     userID,
		version:    opts.Version,
		origins:    origins,
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background; listen errors go to errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) user(r *http.Request) string {
	if u := r.Header.Get(UserHeader); u != "" {
		return u
	}
	return s.userID
}
