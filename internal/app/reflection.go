package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/telemetry"
)

// SubmitReflectionRequest records a new reflection.
type SubmitReflectionRequest struct {
	Text    string   `json:"text" validate:"required,max=2000"`
	TaskIDs []string `json:"task_ids"`
}

// SubmitReflectionResult carries the interpreted intent and the effects.
type SubmitReflectionResult struct {
	Reflection reflection.Reflection `json:"reflection"`
	Intent     *reflection.Intent    `json:"intent"`
	reflection.Outcome
}

// ToggleReflectionResult carries the recomputed effects of a toggle.
type ToggleReflectionResult struct {
	ReflectionID string `json:"reflection_id"`
	Active       bool   `json:"active"`
	reflection.Outcome
}

// ReflectionView is a reflection with its cached intent.
type ReflectionView struct {
	reflection.Reflection
	Intent *reflection.Intent `json:"intent,omitempty"`
}

// ReflectionList is the listing response.
type ReflectionList struct {
	Reflections []ReflectionView    `json:"reflections"`
	Effects     []reflection.Effect `json:"effects"`
}

// ReflectionApp interprets reflections and applies their effects.
// This is THE implementation - CLI, HTTP and MCP all call these methods.
type ReflectionApp struct {
	ctx      *Context
	adjuster *reflection.Adjuster
}

// NewReflectionApp creates a new reflection application service.
func NewReflectionApp(ctx *Context) *ReflectionApp {
	interp := reflection.NewInterpreter(ctx.Text, ctx.Store, ctx.Cfg.Reflection.RetryDelay)
	return &ReflectionApp{
		ctx:      ctx,
		adjuster: reflection.NewAdjuster(ctx.Store, interp, ctx.Cfg.Reflection.BlockFloor),
	}
}

// Submit stores a reflection, classifies it (or reuses a cached reading of
// the same text) and recomputes effects. Classification failure yields an
// inert, degraded intent rather than an error.
func (a *ReflectionApp) Submit(ctx context.Context, userID string, req SubmitReflectionRequest) (*SubmitReflectionResult, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	r := reflection.NewReflection(userID, req.Text)
	if err := a.ctx.Store.SaveReflection(&r); err != nil {
		return nil, err
	}
	out, err := a.adjuster.ApplyNew(ctx, userID, []string{r.ID}, req.TaskIDs)
	if err != nil {
		return nil, err
	}
	in, err := a.ctx.Store.LookupIntent(r.ID)
	if err != nil {
		return nil, err
	}
	return &SubmitReflectionResult{Reflection: r, Intent: in, Outcome: *out}, nil
}

// Toggle switches a reflection on or off. It only reads cached intents and
// never calls the text service.
func (a *ReflectionApp) Toggle(ctx context.Context, userID, reflectionID string, active bool) (*ToggleReflectionResult, error) {
	if _, err := a.owned(userID, reflectionID); err != nil {
		return nil, err
	}
	out, err := a.adjuster.Toggle(ctx, userID, reflectionID, active)
	if err != nil {
		return nil, err
	}
	a.ctx.track(telemetry.EventReflectionToggled, telemetry.Properties{
		"active":  active,
		"effects": len(out.Effects),
	})
	return &ToggleReflectionResult{ReflectionID: reflectionID, Active: active, Outcome: *out}, nil
}

// List returns the user's reflections with their intents and the current
// effect set.
func (a *ReflectionApp) List(userID string) (*ReflectionList, error) {
	refls, err := a.ctx.Store.ListReflections(userID)
	if err != nil {
		return nil, err
	}
	out := &ReflectionList{Reflections: make([]ReflectionView, 0, len(refls))}
	for _, r := range refls {
		in, err := a.ctx.Store.LookupIntent(r.ID)
		if err != nil {
			return nil, err
		}
		out.Reflections = append(out.Reflections, ReflectionView{Reflection: r, Intent: in})
	}
	if out.Effects, err = a.ctx.Store.ListTaskEffects(userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ReflectionApp) owned(userID, id string) (*reflection.Reflection, error) {
	r, err := a.ctx.Store.GetReflection(id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("reflection %s: %w", id, memory.ErrNotFound)
	}
	return r, nil
}
