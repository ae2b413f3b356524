package server

import "github.com/josephgoksu/Wayline/internal/app"

// GoalRequest is the payload for PUT /api/goal.
type GoalRequest struct {
	Text string `json:"text"`
}

// GoalResponse is the response for GET /api/goal.
type GoalResponse struct {
	Text string `json:"text"`
}

// DocumentRequest is the payload for POST /api/documents.
type DocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ToggleRequest is the payload for POST /api/reflections/{id}/toggle.
type ToggleRequest struct {
	Active *bool `json:"active"`
}

// ErrorResponse wraps every non-2xx body.
type ErrorResponse struct {
	Error app.ErrorBody `json:"error"`
}
