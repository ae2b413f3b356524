package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/Wayline/internal/llm"
)

// Progress is what a selector sees before each step.
type Progress struct {
	Goal      string
	Tasks     int
	Step      int
	MaxSteps  int
	Ran       []ToolName
	Remaining []ToolName
}

// Decision is a selector's choice for the next step.
type Decision struct {
	Tool    ToolName
	Thought string
	Finish  bool
}

// Selector picks the next tool or decides to synthesize.
type Selector interface {
	Next(ctx context.Context, p Progress) Decision
}

// DeterministicSelector runs every tool once in AllTools order.
type DeterministicSelector struct{}

func (DeterministicSelector) Next(_ context.Context, p Progress) Decision {
	if len(p.Remaining) == 0 {
		return Decision{Finish: true, Thought: "all analysis tools have run"}
	}
	t := p.Remaining[0]
	return Decision{Tool: t, Thought: descriptions[t]}
}

const finishTool = "finish"

// LLMSelector lets the text service choose among the remaining tools at
// low temperature. Any failure or invalid choice defers to the
// deterministic order.
type LLMSelector struct {
	text     llm.TextService
	fallback DeterministicSelector
}

// NewLLMSelector creates an LLMSelector.
func NewLLMSelector(text llm.TextService) *LLMSelector {
	return &LLMSelector{text: text}
}

func (s *LLMSelector) Next(ctx context.Context, p Progress) Decision {
	if len(p.Remaining) == 0 {
		return s.fallback.Next(ctx, p)
	}

	infos := make([]*schema.ToolInfo, 0, len(p.Remaining)+1)
	for _, t := range p.Remaining {
		infos = append(infos, &schema.ToolInfo{Name: string(t), Desc: descriptions[t]})
	}
	infos = append(infos, &schema.ToolInfo{Name: finishTool, Desc: "Stop analysing and synthesize the plan now."})

	ran := make([]string, len(p.Ran))
	for i, t := range p.Ran {
		ran[i] = string(t)
	}
	resp, err := s.text.Complete(ctx, llm.Request{
		Operation:   "select_tool",
		System:      "You plan the analysis of a task list. Call exactly one tool.",
		Prompt:      fmt.Sprintf("Goal: %s\nTasks: %d\nStep %d of %d.\nAlready ran: %s\nChoose the next tool, or finish if the plan can be ordered confidently.", p.Goal, p.Tasks, p.Step, p.MaxSteps, strings.Join(ran, ", ")),
		Temperature: 0.01,
		Tools:       infos,
	})
	if err != nil {
		slog.Debug("tool selection failed, using default order", "error", err)
		return s.fallback.Next(ctx, p)
	}
	if len(resp.ToolCalls) == 0 {
		return s.fallback.Next(ctx, p)
	}

	choice := resp.ToolCalls[0].Name
	thought := strings.TrimSpace(resp.Content)
	if choice == finishTool {
		if thought == "" {
			thought = "analysis judged sufficient"
		}
		return Decision{Finish: true, Thought: thought}
	}
	for _, t := range p.Remaining {
		if string(t) == choice {
			if thought == "" {
				thought = descriptions[t]
			}
			return Decision{Tool: t, Thought: thought}
		}
	}
	slog.Debug("selector chose an unavailable tool", "tool", choice)
	return s.fallback.Next(ctx, p)
}
