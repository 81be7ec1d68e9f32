// Package mcpserver exposes the tool registry over the Model Context
// Protocol so external agents can drive the same operations as the chat.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/tools"
)

// proofSourceArg carries the image for proof tools. It is stripped before
// dispatch and passed through tools.Env instead.
const proofSourceArg = "proof_source"

var proofTools = map[string]bool{
	string(tools.CompleteHabit):          true,
	string(tools.CompleteHabitFromImage): true,
}

// Dispatcher is satisfied by *tools.Registry.
type Dispatcher interface {
	Specs() []oracle.ToolSpec
	Dispatch(ctx context.Context, name string, args map[string]any, env tools.Env) tools.Result
}

const instructions = "Habit accountability tools. Completing a habit requires proof: pass an image URL, data URI or local path as proof_source."

func New(d Dispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		constants.AppName,
		constants.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, spec := range d.Specs() {
		s.AddTool(Definition(spec), handler(d, spec.Name))
	}
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(d Dispatcher) error {
	logger.Info("MCP server starting on stdio")
	return server.ServeStdio(New(d))
}

// Definition converts a registry spec to an MCP tool.
func Definition(spec oracle.ToolSpec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
	for _, p := range spec.Params {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required && !p.Nullable {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case oracle.TypeInteger, oracle.TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case oracle.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	if proofTools[spec.Name] {
		opts = append(opts, mcp.WithString(proofSourceArg,
			mcp.Required(),
			mcp.Description("Proof image: http(s) URL, data URI or local file path"),
		))
	}
	return mcp.NewTool(spec.Name, opts...)
}

func handler(d Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		for k, v := range req.GetArguments() {
			args[k] = v
		}
		var env tools.Env
		if proofTools[name] {
			env.ProofSource, _ = args[proofSourceArg].(string)
			delete(args, proofSourceArg)
		}

		res := d.Dispatch(ctx, name, args, env)
		body, err := json.Marshal(res.Payload())
		if err != nil {
			return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
		}
		if !res.Success() {
			return mcp.NewToolResultError(string(body)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
