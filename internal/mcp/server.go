package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is reported to MCP clients.
const ServerName = "triage-mcp"

// NewServer builds an MCP server with every triage tool registered.
func NewServer(gw Gateway, version string, logger *slog.Logger) *mcpsdk.Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			logger.Info("MCP connection established")
		},
	})
	RegisterTools(server, NewHandlers(gw))
	return server
}

// Run serves over stdio until the client disconnects or ctx ends.
func Run(ctx context.Context, server *mcpsdk.Server) error {
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// RegisterTools adds the triage tools to server.
func RegisterTools(server *mcpsdk.Server, h *Handlers) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolSubmit,
		Description: "Submit a software problem statement. Starts the five-stage planning pipeline (project manager, architect, security, tester, reviewer) and returns the task ID.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[SubmitParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Submit(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolStatus,
		Description: "Show a task's progress: current stage, per-stage status, whether it awaits approval, and recent activity. task_id accepts a unique prefix.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Status(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolStageOutput,
		Description: "Read the latest output of one stage (project_manager, architect, security, tester, reviewer).",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[StageOutputParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.StageOutput(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name: ToolDecide,
		Description: `Approve or reject the output of the stage awaiting approval.
- approved=true: accept and start the next stage (or finish the plan after reviewer)
- approved=false: re-run the stage; feedback is required`,
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[DecideParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Decide(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolPause,
		Description: "Pause a task. A stage already generating finishes, but nothing new is scheduled until resumed.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[PauseParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Pause(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolResume,
		Description: "Resume a paused task from its current stage.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ResumeParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Resume(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolResult,
		Description: "Return the consolidated project plan. Before completion the plan contains only the stages produced so far.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toCallResult(h.Result(ctx, params.Arguments))
	})
}

// toCallResult reports tool errors in the result, not as protocol errors,
// so the calling model can see them and correct its input.
func toCallResult(res *ToolResult) (*mcpsdk.CallToolResultFor[any], error) {
	if res.Error != "" {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Error}},
			IsError: true,
		}, nil
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
	}, nil
}
