package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/logger"
)

const (
	emptyMessageReply = "I didn't receive any message. Please send a text message."
	apologyReply      = "❌ Sorry, I encountered an error processing your message. Please try again."
)

var errTwilioNotConfigured = stderrors.New("twilio client not configured")

type inbound struct {
	From  string
	Body  string
	Media []string
}

func parseInbound(r *http.Request) (inbound, error) {
	if err := r.ParseForm(); err != nil {
		return inbound{}, fmt.Errorf("invalid form body: %w", err)
	}
	in := inbound{From: r.PostForm.Get("From"), Body: strings.TrimSpace(r.PostForm.Get("Body"))}
	if in.From == "" {
		return inbound{}, stderrors.New("missing 'From' field")
	}
	n, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	for i := 0; i < n; i++ {
		if u := r.PostForm.Get(fmt.Sprintf("MediaUrl%d", i)); u != "" {
			in.Media = append(in.Media, u)
		}
	}
	return in, nil
}

func (s *Server) send(ctx context.Context, to, body string) (string, error) {
	if s.WhatsApp == nil {
		return "", errTwilioNotConfigured
	}
	return s.WhatsApp.SendTo(ctx, to, body)
}

func (s *Server) respond(ctx context.Context, in inbound) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	reply := emptyMessageReply
	if in.Body != "" || len(in.Media) > 0 {
		reply = s.Chat.Reply(ctx, in.From, in.Body, in.Media)
	}
	return s.send(ctx, in.From, reply)
}

// handleWhatsApp answers a Twilio inbound message. Twilio retries non-2xx
// responses, so once the sender has been told about a failure the webhook
// still reports 200.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	in, err := parseInbound(r)
	if err != nil {
		logger.Warn("Rejected WhatsApp webhook", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.Info("WhatsApp message received", "from", in.From, "media", len(in.Media))

	sid, err := s.respond(r.Context(), in)
	if err == nil {
		jsonOK(w, map[string]any{"status": "success", "message_sid": sid})
		return
	}

	logger.Error("Failed to process WhatsApp message", "from", in.From, "error", err)
	if _, notifyErr := s.send(r.Context(), in.From, apologyReply); notifyErr != nil {
		logger.Error("Failed to notify WhatsApp sender", "from", in.From, "error", notifyErr)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{"status": "error", "message": "Processing failed, user notified"})
}
