// Package orchestrator runs the multi-round conversation between the
// oracle and the tool registry.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/tools"
)

// ErrRoundLimit is returned when MaxRounds oracle calls did not produce a
// final answer.
var ErrRoundLimit = stderrors.New("tool round limit reached")

const fallbackReply = "I'm not sure how to help with that."

type State int

const (
	Gathering State = iota
	Executing
	Done
)

func (s State) String() string {
	switch s {
	case Gathering:
		return "gathering"
	case Executing:
		return "executing"
	default:
		return "done"
	}
}

// Dispatcher is the tool surface. *tools.Registry satisfies it.
type Dispatcher interface {
	Specs() []oracle.ToolSpec
	Dispatch(ctx context.Context, name string, args map[string]any, env tools.Env) tools.Result
}

// ContextSource produces the baseline preamble for a new user message.
type ContextSource interface {
	Baseline(ctx context.Context) string
}

type Options struct {
	System string
	// MaxRounds caps oracle calls per message; zero means unlimited.
	MaxRounds int
	// Observe, when set, is told of every state transition.
	Observe func(State, int)
}

type Orchestrator struct {
	oracle   oracle.Oracle
	tools    Dispatcher
	baseline ContextSource
	opts     Options
}

func New(o oracle.Oracle, d Dispatcher, baseline ContextSource, opts Options) *Orchestrator {
	if opts.System == "" {
		opts.System = SystemPrompt
	}
	return &Orchestrator{oracle: o, tools: d, baseline: baseline, opts: opts}
}

func (o *Orchestrator) enter(s State, round int) {
	logger.Debug("Orchestrator state", "state", s, "round", round)
	if o.opts.Observe != nil {
		o.opts.Observe(s, round)
	}
}

// Run answers text given the prior history. The returned history extends
// history with only the user message and the final answer.
func (o *Orchestrator) Run(ctx context.Context, history []oracle.Message, text string, env tools.Env) (string, []oracle.Message, error) {
	messages := make([]oracle.Message, 0, len(history)+2)
	messages = append(messages, history...)
	if o.baseline != nil {
		if pre := o.baseline.Baseline(ctx); pre != "" {
			messages = append(messages, oracle.Message{Role: oracle.RoleSystem, Content: pre})
		}
	}
	user := oracle.Message{Role: oracle.RoleUser, Content: text}
	messages = append(messages, user)
	if env.UserMessage == "" {
		env.UserMessage = text
	}

	specs := o.tools.Specs()
	for round := 1; ; round++ {
		if o.opts.MaxRounds > 0 && round > o.opts.MaxRounds {
			return "", history, fmt.Errorf("%w after %d rounds", ErrRoundLimit, o.opts.MaxRounds)
		}
		o.enter(Gathering, round)
		resp, err := o.oracle.Respond(ctx, oracle.Request{System: o.opts.System, Messages: messages, Tools: specs})
		if err != nil {
			return "", history, err
		}

		if len(resp.ToolCalls) == 0 {
			o.enter(Done, round)
			answer := resp.Text
			if answer == "" {
				answer = fallbackReply
			}
			out := append(append([]oracle.Message{}, history...), user, oracle.Message{Role: oracle.RoleAssistant, Content: answer})
			return answer, out, nil
		}

		o.enter(Executing, round)
		messages = append(messages, oracle.Message{Role: oracle.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
		results := make([]oracle.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			logger.Info("Calling tool", "tool", call.Name, "round", round)
			res := o.tools.Dispatch(ctx, call.Name, call.Args, env)
			results = append(results, oracle.ToolResult{CallID: call.ID, Name: call.Name, Payload: res.Payload()})
		}
		messages = append(messages, oracle.Message{Role: oracle.RoleTool, ToolResults: results})
	}
}
