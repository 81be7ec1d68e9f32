// Package notify delivers user-facing messages. Delivery is best effort:
// a failed send is logged and reported as false, never as an error.
package notify

import (
	"context"

	"github.com/julianstephens/habitenforcer/internal/logger"
)

// Sink sends one message and reports whether it was delivered.
type Sink interface {
	Send(ctx context.Context, message string) bool
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, message string) bool

func (f Func) Send(ctx context.Context, message string) bool { return f(ctx, message) }

// Multi fans a message out to every sink and succeeds if any did.
type Multi []Sink

func (m Multi) Send(ctx context.Context, message string) bool {
	ok := false
	for _, s := range m {
		if s == nil {
			continue
		}
		if s.Send(ctx, message) {
			ok = true
		}
	}
	return ok
}

// LogSink writes messages to the application log.
type LogSink struct{}

func (LogSink) Send(_ context.Context, message string) bool {
	logger.Info("Notification", "message", message)
	return true
}

// Discard drops every message.
type Discard struct{}

func (Discard) Send(context.Context, string) bool { return false }
