package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/josephgoksu/Wayline/internal/app"
)

// NewServer registers every wayline tool on a new MCP server.
func NewServer(appCtx *app.Context, userID, version string) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    "wayline-mcp",
		Version: version,
	}
	opts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			slog.Info("mcp connection established")
		},
	}
	server := mcpsdk.NewServer(impl, opts)
	h := NewHandlers(appCtx, userID)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolStartReasoning,
		Description: "Order the user's tasks toward a goal. Returns the plan, parallel waves, per-task confidence and a session_id. goal_text falls back to the stored goal; task_ids defaults to all active tasks.",
	}, wrap(h.StartReasoning))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolGetSession,
		Description: "Fetch a reasoning session with its full trace. Omit session_id for the current session.",
	}, wrap(h.GetSession))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolDetectGaps,
		Description: "Find missing steps in a completed session's plan and propose bridging tasks. Returns an analysis_id and candidate ids. Omit session_id for the current session.",
	}, wrap(h.DetectGaps))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolAcceptCandidates,
		Description: "Insert chosen candidates from an analysis into the task graph, optionally editing text or estimated_effort first. Rejected with cycle_detected or policy_denied without writing anything.",
	}, wrap(h.AcceptCandidates))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolSubmitReflection,
		Description: "Record a free-text reflection (a constraint, opportunity or lesson) and apply its effect on task priorities.",
	}, wrap(h.SubmitReflection))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolToggleReflection,
		Description: "Activate or deactivate a reflection and recompute task effects from the cached classification.",
	}, wrap(h.ToggleReflection))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolListTasks,
		Description: "List the user's tasks and dependency edges.",
	}, wrap(h.ListTasks))

	return server
}

// Run serves the tools over stdio until the client disconnects.
func Run(ctx context.Context, server *mcpsdk.Server) error {
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// wrap adapts a handler to the SDK signature. Failures are reported as
// IsError results, never as protocol errors.
func wrap[P any](fn func(context.Context, P) *ToolResult) mcpsdk.ToolHandlerFor[P, any] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[P]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(fn(ctx, params.Arguments)), nil
	}
}

func toCallResult(r *ToolResult) *mcpsdk.CallToolResultFor[any] {
	if r.Error != "" {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: r.Error}},
			IsError: true,
		}
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: r.Content}},
	}
}
