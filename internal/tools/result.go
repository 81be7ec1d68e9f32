package tools

import (
	"github.com/julianstephens/habitenforcer/internal/errors"
)

// Result is a tool's structured outcome. Err is nil on success.
type Result struct {
	Data map[string]any
	Err  *errors.Error
}

func OK(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Data: data}
}

// Fail converts err into a failed result; extra fields are kept in the
// payload next to the error.
func Fail(err error, extra ...map[string]any) Result {
	e, ok := err.(*errors.Error)
	if !ok {
		e = &errors.Error{Kind: errors.KindOf(err), Msg: errors.Message(err)}
	}
	data := map[string]any{}
	for _, m := range extra {
		for k, v := range m {
			data[k] = v
		}
	}
	return Result{Data: data, Err: e}
}

// Failf is Fail with a validation message.
func Failf(kind errors.Kind, format string, args ...any) Result {
	return Fail(errors.Newf(kind, format, args...))
}

func (r Result) Success() bool { return r.Err == nil }

// Payload is the JSON object returned to the oracle.
func (r Result) Payload() map[string]any {
	p := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		p[k] = v
	}
	p["success"] = r.Err == nil
	if r.Err != nil {
		p["error"] = errors.Message(r.Err)
		p["error_type"] = string(r.Err.Kind)
	}
	return p
}
