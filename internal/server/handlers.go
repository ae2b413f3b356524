package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/llm"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.appCtx.Store.Ping(); err != nil {
		writeAPIJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeAPIJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	_, textDown := s.appCtx.Text.(llm.Unavailable)
	writeAPIJSON(w, map[string]any{
		"version":      s.version,
		"user":         s.userID,
		"policy":       s.appCtx.Policy != nil,
		"ai_available": !textDown,
	})
}

// Graph

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	archived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))
	list, err := s.tasks.List(s.user(r), archived)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in app.CreateTaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := s.tasks.Create(s.user(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSONStatus(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(s.user(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, t)
}

func (s *Server) handleArchiveTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Archive(s.user(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, map[string]any{"success": true})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var in app.LinkInput
	if !decode(w, r, &in) {
		return
	}
	plan, err := s.tasks.Link(s.user(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSONStatus(w, http.StatusCreated, map[string]any{"order": plan.Order, "edges": plan.AddEdges})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.tasks.Goal(s.user(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, GoalResponse{Text: goal})
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.tasks.SetGoal(s.user(r), req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, GoalResponse(req))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.tasks.Documents(s.user(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, docs)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := s.tasks.AddDocument(s.user(r), req.Title, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSONStatus(w, http.StatusCreated, doc)
}

// Reasoning and bridging

func (s *Server) handleStartReasoning(w http.ResponseWriter, r *http.Request) {
	var req app.StartRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.reasoning.Start(r.Context(), s.user(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reasoning.Session(s.user(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, sess)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reasoning.Current(s.user(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, sess)
}

func (s *Server) handleDetectGaps(w http.ResponseWriter, r *http.Request) {
	res, err := s.bridge.DetectGaps(r.Context(), s.user(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req app.AcceptRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.bridge.Accept(r.Context(), s.user(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSONStatus(w, http.StatusCreated, res)
}

// Reflections

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	list, err := s.reflection.List(s.user(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, list)
}

func (s *Server) handleSubmitReflection(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitReflectionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.reflection.Submit(r.Context(), s.user(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSONStatus(w, http.StatusCreated, res)
}

func (s *Server) handleToggleReflection(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, fmt.Errorf("%w: active is required", app.ErrInvalidRequest))
		return
	}
	res, err := s.reflection.Toggle(r.Context(), s.user(r), r.PathValue("id"), *req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAPIJSON(w, res)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %w", app.ErrInvalidRequest, err))
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind app.ErrorKind) int {
	switch kind {
	case app.KindValidation, app.KindInvariant:
		return http.StatusBadRequest
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := app.Describe(err)
	status := statusFor(body.Kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		// Internal detail stays in the log.
		body.Message = "internal error"
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	writeAPIJSONStatus(w, status, ErrorResponse{Error: body})
}

func writeAPIJSON(w http.ResponseWriter, data any) {
	writeAPIJSONStatus(w, http.StatusOK, data)
}

func writeAPIJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
