package app

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/task"
)

var (
	// ErrNoActiveGoal is returned when a session has neither a goal in the
	// request nor a stored goal.
	ErrNoActiveGoal = errors.New("no active goal")
	// ErrTaskSetTooLarge is returned when explicit task ids exceed the cap.
	ErrTaskSetTooLarge = errors.New("task set too large")
	// ErrInvalidRequest wraps malformed input.
	ErrInvalidRequest = errors.New("invalid request")
)

// PolicyError reports an acceptance batch denied by policy.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "denied by policy: " + strings.Join(e.Violations, "; ")
}

// ErrorKind classifies failures for the transport layers.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindInvariant  ErrorKind = "invariant"
	KindNotFound   ErrorKind = "not_found"
	KindExternal   ErrorKind = "external"
	KindInternal   ErrorKind = "internal"
)

// Kind maps err onto the error taxonomy.
func Kind(err error) ErrorKind {
	var (
		pe *PolicyError
		ve validator.ValidationErrors
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, task.ErrCycle):
		return KindInvariant
	case errors.Is(err, memory.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoActiveGoal),
		errors.Is(err, ErrTaskSetTooLarge),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidTask),
		errors.As(err, &pe),
		errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, llm.ErrNoProvider):
		return KindExternal
	}
	return KindInternal
}

// ErrorBody is the wire shape of a failure.
type ErrorBody struct {
	Code       string      `json:"code"`
	Kind       ErrorKind   `json:"kind"`
	Message    string      `json:"message"`
	Nodes      []string    `json:"nodes,omitempty"`
	Edges      []task.Edge `json:"edges,omitempty"`
	Violations []string    `json:"violations,omitempty"`
}

// Describe builds the wire body for err, carrying cycle and policy detail
// so callers can adjust and retry.
func Describe(err error) ErrorBody {
	body := ErrorBody{Kind: Kind(err), Message: err.Error()}

	var (
		ce *task.CycleError
		pe *PolicyError
	)
	switch {
	case errors.As(err, &ce):
		body.Code = "cycle_detected"
		body.Nodes = ce.Nodes
		body.Edges = ce.Edges
	case errors.As(err, &pe):
		body.Code = "policy_denied"
		body.Violations = pe.Violations
	case errors.Is(err, ErrNoActiveGoal):
		body.Code = "no_active_goal"
	case errors.Is(err, ErrTaskSetTooLarge):
		body.Code = "task_set_too_large"
	case body.Kind == KindNotFound:
		body.Code = "not_found"
	case body.Kind == KindValidation:
		body.Code = "invalid_request"
	case body.Kind == KindExternal:
		body.Code = "external_failure"
	default:
		body.Code = "internal_error"
	}
	return body
}
