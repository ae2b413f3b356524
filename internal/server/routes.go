package server

import (
	"net/http"

	"github.com/josephgoksu/Wayline/internal/metrics"
)

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.Handle("GET /metrics", metrics.Handler())

	// Graph
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks/{id}/archive", s.handleArchiveTask)
	mux.HandleFunc("POST /api/edges", s.handleLink)
	mux.HandleFunc("GET /api/goal", s.handleGetGoal)
	mux.HandleFunc("PUT /api/goal", s.handleSetGoal)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/documents", s.handleAddDocument)

	// Reasoning and bridging
	mux.HandleFunc("POST /api/reasoning/start", s.handleStartReasoning)
	mux.HandleFunc("GET /api/sessions/current", s.handleCurrentSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/gaps", s.handleDetectGaps)
	mux.HandleFunc("POST /api/candidates/accept", s.handleAccept)

	// Reflections
	mux.HandleFunc("GET /api/reflections", s.handleListReflections)
	mux.HandleFunc("POST /api/reflections", s.handleSubmitReflection)
	mux.HandleFunc("POST /api/reflections/{id}/toggle", s.handleToggleReflection)

	return s.logMiddleware(s.corsMiddleware(mux))
}
