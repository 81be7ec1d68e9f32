// Package tools is the static catalog of operations the oracle may call.
package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/oracle"
)

type Name string

const (
	AddHabit               Name = "add_habit"
	RemoveHabit            Name = "remove_habit"
	CompleteHabit          Name = "complete_habit"
	CompleteHabitFromImage Name = "complete_habit_from_image"
	SetHabitSchedule       Name = "set_habit_schedule"
	GetCurrentTime         Name = "get_current_time"
	GetStrikes             Name = "get_strikes"
	GetDatabaseSchema      Name = "get_database_schema"
	QueryDatabase          Name = "query_database"
)

// UnknownToolError is returned for a name that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Env carries per-message context that is not part of a tool's arguments.
type Env struct {
	// ProofSource is the image attached to the current user message.
	ProofSource string
	UserMessage string
}

type Call struct {
	Args Args
	Env  Env
}

type Handler func(ctx context.Context, call Call) Result

type Tool struct {
	Name        Name
	Description string
	Params      []oracle.Param
	Handler     Handler
}

func (t Tool) Spec() oracle.ToolSpec {
	return oracle.ToolSpec{Name: string(t.Name), Description: t.Description, Params: t.Params}
}

type Registry struct {
	tools map[Name]Tool
	order []Name
}

func NewRegistry() *Registry {
	return &Registry{tools: map[Name]Tool{}}
}

func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool needs a name and a handler")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	seen := map[string]bool{}
	for _, p := range t.Params {
		if seen[p.Name] {
			return fmt.Errorf("tool %s declares parameter %s twice", t.Name, p.Name)
		}
		seen[p.Name] = true
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup resolves name to a tool or an *UnknownToolError.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[Name(name)]
	if !ok {
		return Tool{}, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Specs lists the catalog in registration order.
func (r *Registry) Specs() []oracle.ToolSpec {
	specs := make([]oracle.ToolSpec, 0, len(r.order))
	for _, n := range r.order {
		specs = append(specs, r.tools[n].Spec())
	}
	return specs
}

func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Dispatch validates args and runs the named tool. It always returns a
// Result; unknown names, bad arguments and handler panics become failures.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any, env Env) (res Result) {
	t, err := r.Lookup(name)
	if err != nil {
		logger.Warn("Oracle requested unknown tool", "tool", name)
		return Fail(errors.Wrap(errors.KindUnknownTool, err, ""))
	}
	validated, err := Validate(t.Params, args)
	if err != nil {
		return Fail(err)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Tool panicked", "tool", name, "panic", p)
			res = Fail(errors.Newf(errors.KindInternal, "tool %s failed: %v", name, p))
		}
	}()
	logger.Debug("Dispatching tool", "tool", name)
	res = t.Handler(ctx, Call{Args: validated, Env: env})
	if res.Err != nil {
		logger.Info("Tool reported failure", "tool", name, "kind", res.Err.Kind, "error", res.Err.Error())
	}
	return res
}

// Validate checks args against params: unknown keys and missing required
// parameters are rejected, and values must match the declared type. JSON
// numbers are accepted for integers when they are whole.
func Validate(params []oracle.Param, args map[string]any) (Args, error) {
	declared := map[string]oracle.Param{}
	for _, p := range params {
		declared[p.Name] = p
	}
	var unknown []string
	for k := range args {
		if _, ok := declared[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Newf(errors.KindValidation, "unknown parameter(s): %v", unknown)
	}

	out := Args{}
	for _, p := range params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required && !(present && p.Nullable) {
				return nil, errors.Newf(errors.KindValidation, "missing required parameter %q", p.Name)
			}
			continue
		}
		coerced, ok := coerce(p.Type, v)
		if !ok {
			return nil, errors.Newf(errors.KindValidation, "parameter %q must be %s, got %T", p.Name, p.Type, v)
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func coerce(t oracle.ParamType, v any) (any, bool) {
	switch t {
	case oracle.TypeString:
		s, ok := v.(string)
		return s, ok
	case oracle.TypeBoolean:
		b, ok := v.(bool)
		return b, ok
	case oracle.TypeInteger:
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			if n == math.Trunc(n) {
				return int(n), true
			}
		}
		return nil, false
	case oracle.TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return nil, false
	}
	return nil, false
}

// Args holds validated arguments. Accessors return zero values for absent
// keys.
type Args map[string]any

func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// OptString returns nil when key was absent or null.
func (a Args) OptString(key string) *string {
	s, ok := a[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

func (a Args) Int(key string) (int, bool) {
	n, ok := a[key].(int)
	return n, ok
}
