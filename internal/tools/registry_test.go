package tools

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/oracle"
)

func echoRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{
		Name: "echo",
		Params: []oracle.Param{
			{Name: "text", Type: oracle.TypeString, Required: true},
			{Name: "times", Type: oracle.TypeInteger},
			{Name: "ratio", Type: oracle.TypeNumber},
			{Name: "loud", Type: oracle.TypeBoolean},
			{Name: "suffix", Type: oracle.TypeString, Required: true, Nullable: true},
		},
		Handler: func(_ context.Context, c Call) Result {
			n, _ := c.Args.Int("times")
			return OK(map[string]any{"text": c.Args.String("text"), "times": n, "suffix": c.Args.OptString("suffix")})
		},
	}))
	require.NoError(t, r.Register(Tool{
		Name:    "boom",
		Handler: func(context.Context, Call) Result { panic("kaboom") },
	}))
	return r
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := echoRegistry(t)
	err := r.Register(Tool{Name: "echo", Handler: func(context.Context, Call) Result { return OK(nil) }})
	assert.Error(t, err)
	assert.Error(t, r.Register(Tool{Name: "nohandler"}))
}

func TestLookupUnknown(t *testing.T) {
	_, err := echoRegistry(t).Lookup("nope")
	var unknown *UnknownToolError
	require.True(t, stderrors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Name)
}

func TestDispatch(t *testing.T) {
	r := echoRegistry(t)
	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		success bool
		kind    string
	}{
		{"valid", "echo", map[string]any{"text": "hi", "times": float64(3), "suffix": nil}, true, ""},
		{"integer from int", "echo", map[string]any{"text": "hi", "times": 2, "suffix": "!"}, true, ""},
		{"unknown tool", "nope", nil, false, "unknown_tool"},
		{"missing required", "echo", map[string]any{"suffix": "!"}, false, "validation"},
		{"required nullable absent", "echo", map[string]any{"text": "hi"}, false, "validation"},
		{"wrong type", "echo", map[string]any{"text": 5, "suffix": nil}, false, "validation"},
		{"fractional integer", "echo", map[string]any{"text": "hi", "times": 1.5, "suffix": nil}, false, "validation"},
		{"bool as string", "echo", map[string]any{"text": "hi", "loud": "yes", "suffix": nil}, false, "validation"},
		{"unknown key", "echo", map[string]any{"text": "hi", "suffix": nil, "extra": 1}, false, "validation"},
		{"panic recovered", "boom", nil, false, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Dispatch(context.Background(), tt.tool, tt.args, Env{})
			p := res.Payload()
			assert.Equal(t, tt.success, p["success"])
			if !tt.success {
				assert.Equal(t, tt.kind, p["error_type"])
				assert.NotEmpty(t, p["error"])
			}
		})
	}
}

func TestDispatchCoercesArgs(t *testing.T) {
	res := echoRegistry(t).Dispatch(context.Background(), "echo", map[string]any{"text": "hi", "times": float64(3), "suffix": nil}, Env{})
	require.True(t, res.Success())
	assert.Equal(t, 3, res.Data["times"])
	assert.Nil(t, res.Data["suffix"])
}

func TestFailKeepsKindAndExtra(t *testing.T) {
	res := Fail(errors.New(errors.KindNotFound, "missing"), map[string]any{"hint": "add it"})
	p := res.Payload()
	assert.Equal(t, false, p["success"])
	assert.Equal(t, "missing", p["error"])
	assert.Equal(t, "not_found", p["error_type"])
	assert.Equal(t, "add it", p["hint"])

	plain := Fail(stderrors.New("disk full")).Payload()
	assert.Equal(t, "internal", plain["error_type"])
	assert.Equal(t, "disk full", plain["error"])
}

func TestSpecsInRegistrationOrder(t *testing.T) {
	specs := echoRegistry(t).Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "echo", specs[0].Name)
	assert.Equal(t, "boom", specs[1].Name)
}
