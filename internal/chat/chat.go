// Package chat turns a user message, optional media and a conversation into
// a reply.
package chat

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/session"
	"github.com/julianstephens/habitenforcer/internal/tools"
)

// Runner is satisfied by *orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, history []oracle.Message, text string, env tools.Env) (string, []oracle.Message, error)
}

type Service struct {
	runner   Runner
	sessions *session.Store
}

func NewService(r Runner, sessions *session.Store) *Service {
	return &Service{runner: r, sessions: sessions}
}

// MediaNote is appended to user text that arrives with attachments.
func MediaNote(n int) string {
	return fmt.Sprintf("\n[User attached %d image(s) as proof]", n)
}

// Process answers text against an explicit history. Failures are reported
// in the reply and recorded in the returned history.
func (s *Service) Process(ctx context.Context, history []oracle.Message, text string, mediaURLs []string) (string, []oracle.Message) {
	env := tools.Env{UserMessage: text}
	if len(mediaURLs) > 0 {
		env.ProofSource = mediaURLs[0]
		text += MediaNote(len(mediaURLs))
		logger.Info("Message includes media", "count", len(mediaURLs))
	}

	reply, updated, err := s.runner.Run(ctx, history, text, env)
	if err != nil {
		logger.Error("Failed to process chat message", "error", err)
		reply = "❌ Error: " + err.Error()
		updated = append(append([]oracle.Message{}, history...),
			oracle.Message{Role: oracle.RoleUser, Content: text},
			oracle.Message{Role: oracle.RoleAssistant, Content: reply})
	}
	return reply, updated
}

// Reply answers text in the caller's session. Messages from one caller are
// answered one at a time, each seeing every turn saved before it.
func (s *Service) Reply(ctx context.Context, key, text string, mediaURLs []string) string {
	var reply string
	s.sessions.Update(key, func(history []oracle.Message) []oracle.Message {
		logger.Debug("Session loaded", "key", key, "messages", len(history))
		var updated []oracle.Message
		reply, updated = s.Process(ctx, history, text, mediaURLs)
		return updated
	})
	return reply
}

func (s *Service) Reset(key string) { s.sessions.Reset(key) }

func (s *Service) Sessions() *session.Store { return s.sessions }
