package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/tools"
)

type recorder struct {
	name string
	args map[string]any
	env  tools.Env
	res  tools.Result
}

func (r *recorder) Specs() []oracle.ToolSpec {
	return []oracle.ToolSpec{
		{Name: string(tools.CompleteHabit), Description: "complete", Params: []oracle.Param{{Name: "habit_title", Type: oracle.TypeString, Required: true}}},
		{Name: string(tools.GetStrikes), Description: "strikes", Params: []oracle.Param{{Name: "days", Type: oracle.TypeInteger}}},
	}
}

func (r *recorder) Dispatch(_ context.Context, name string, args map[string]any, env tools.Env) tools.Result {
	r.name, r.args, r.env = name, args, env
	return r.res
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestDefinition(t *testing.T) {
	r := &recorder{}
	specs := r.Specs()

	complete := Definition(specs[0])
	assert.Equal(t, "complete_habit", complete.Name)
	assert.Contains(t, complete.InputSchema.Properties, "habit_title")
	assert.Contains(t, complete.InputSchema.Properties, proofSourceArg)
	assert.ElementsMatch(t, []string{"habit_title", proofSourceArg}, complete.InputSchema.Required)

	strikes := Definition(specs[1])
	assert.NotContains(t, strikes.InputSchema.Properties, proofSourceArg)
	assert.Empty(t, strikes.InputSchema.Required)
}

func TestHandlerPassesProofSource(t *testing.T) {
	r := &recorder{res: tools.OK(map[string]any{"message": "done"})}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"habit_title": "Run", proofSourceArg: "/tmp/run.jpg"}

	out, err := handler(r, string(tools.CompleteHabit))(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, map[string]any{"habit_title": "Run"}, r.args)
	assert.Equal(t, "/tmp/run.jpg", r.env.ProofSource)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &payload))
	assert.Equal(t, true, payload["success"])
}

func TestHandlerFailure(t *testing.T) {
	r := &recorder{res: tools.Fail(&tools.UnknownToolError{Name: "nope"})}
	out, err := handler(r, "nope")(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, resultText(t, out), "unknown tool: nope")
}
