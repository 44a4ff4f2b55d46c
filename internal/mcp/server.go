// Package mcp provides the stdio MCP server exposing task tools to agents.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/vsotask/internal/buildinfo"
	"github.com/go-ports/vsotask/internal/host"
	"github.com/go-ports/vsotask/internal/models"
	"github.com/go-ports/vsotask/internal/procrun"
	"github.com/go-ports/vsotask/internal/service"
	"github.com/go-ports/vsotask/internal/taskctx"
)

// maxOutput caps the captured output returned per stream.
const maxOutput = 64 * 1024

const execDescription = `Run a command and wait for it to exit. Returns the exit code and the captured output.

With rc_fail (default true) an exit code above zero is reported as an error.
With stderr_fail (default true) the command's stderr is returned separately; otherwise it is merged into stdout.`

const runDescription = `Run a task script under the script engine. The task context (a JSON object, usually with "inputs" and "variables") is sent on the script's stdin, and each input is exported as INPUT_<NAME>. Logging commands (##vso[...]) in the script's output are interpreted.` //nolint:lll

const historyDescription = `List recorded runs, newest first.`

// NewServer creates and registers all task tools on a new MCP server.
// It is separate from Serve so that tests can obtain a fully configured
// server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("vsotask", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context, home string) error {
	svc, err := service.New(home)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

// registerTools wires all MCP tools into the server.
func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("task_exec",
		mcp.WithDescription(execDescription),
		mcp.WithArray("args",
			mcp.Description("Program followed by its arguments."),
			mcp.WithStringItems(),
			mcp.Required(),
		),
		mcp.WithBoolean("rc_fail",
			mcp.Description("Report an exit code above zero as an error (default true)."),
		),
		mcp.WithBoolean("stderr_fail",
			mcp.Description("Keep stderr separate from stdout (default true)."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExec(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("task_run",
		mcp.WithDescription(runDescription),
		mcp.WithString("script",
			mcp.Description("Path of the task script."),
			mcp.Required(),
		),
		mcp.WithString("context",
			mcp.Description("Task context as a JSON document."),
		),
		mcp.WithString("engine",
			mcp.Description("Script engine name or path. Defaults to the configured engine, then python3, then python."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRun(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("task_history",
		mcp.WithDescription(historyDescription),
		mcp.WithNumber("limit",
			mcp.Description("Max runs (default 10)"),
		),
		mcp.WithString("kind",
			mcp.Description("Filter by run kind."),
			mcp.Enum(models.ValidKinds...),
		),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleHistory(svc, req)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleExec(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetStringSlice("args", nil)
	if len(args) == 0 {
		return mcp.NewToolResultError("args must name a program"), nil
	}
	opts := procrun.Options{
		RCFail:     req.GetBool("rc_fail", true),
		StderrFail: req.GetBool("stderr_fail", true),
	}

	var stdout, stderr bytes.Buffer
	r := &procrun.Runner{Stdout: &stdout, Stderr: &stderr}
	code, err := svc.Exec(ctx, r, args, opts)

	var ee *procrun.ExitError
	if err != nil && !errors.As(err, &ee) && ctx.Err() == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := map[string]any{
		"exit_code": code,
		"stdout":    truncate(stdout.String(), maxOutput),
		"stderr":    truncate(stderr.String(), maxOutput),
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return jsonResult(out)
}

func handleRun(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script := req.GetString("script", "")
	if script == "" {
		return mcp.NewToolResultError("script is required"), nil
	}

	tctx := &taskctx.Context{}
	if doc := req.GetString("context", ""); doc != "" {
		var err error
		if tctx, err = taskctx.Parse([]byte(doc)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	var out bytes.Buffer
	res, err := svc.RunScript(ctx, script, tctx, host.Options{
		Engine: req.GetString("engine", ""),
		Output: &out,
	})
	if res == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]any{
		"exit_code": res.ExitCode,
		"status":    res.Status,
		"message":   res.Message,
		"variables": res.Variables,
		"issues":    nonNilIssues(res.Issues),
		"output":    truncate(out.String(), maxOutput),
	}
	if err != nil {
		body["error"] = err.Error()
	}
	return jsonResult(body)
}

func handleHistory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	runs, err := svc.History(limit, req.GetString("kind", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	clean := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		clean = append(clean, map[string]any{
			"id":          r.ID,
			"kind":        r.Kind,
			"command":     r.Command,
			"exit_code":   r.ExitCode,
			"status":      r.Status,
			"message":     r.Message,
			"started_at":  r.StartedAt.Format(time.RFC3339),
			"duration_ms": r.Duration.Milliseconds(),
		})
	}
	return jsonResult(clean)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// truncate keeps at most the last maxLen bytes of s.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return "…" + s[len(s)-maxLen:]
}

func nonNilIssues(issues []host.Issue) []host.Issue {
	if issues == nil {
		return make([]host.Issue, 0)
	}
	return issues
}
