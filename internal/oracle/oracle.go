// Package oracle defines the conversation contract with a tool-calling
// language model.
package oracle

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation. Assistant messages may carry
// tool calls; tool messages carry their results.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

type ToolResult struct {
	CallID  string
	Name    string
	Payload map[string]any
}

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Nullable    bool
}

// ToolSpec is the catalog entry the model sees for a tool.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Response is either final text or, when ToolCalls is non-empty, a request
// to run tools.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

type Oracle interface {
	Respond(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Respond(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }
