package server

import (
	"net/http"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/oracle"
)

// wireMessage is the client-visible form of a history entry. Tool traffic
// never reaches stored history, so role and content are enough.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []wireMessage `json:"conversation_history"`
	MediaURLs           []string      `json:"media_urls"`
}

type chatResponse struct {
	Response            string        `json:"response"`
	ConversationHistory []wireMessage `json:"conversation_history"`
}

func fromWire(in []wireMessage) []oracle.Message {
	out := make([]oracle.Message, 0, len(in))
	for _, m := range in {
		role := oracle.Role(m.Role)
		switch role {
		case oracle.RoleUser, oracle.RoleAssistant, oracle.RoleSystem:
			out = append(out, oracle.Message{Role: role, Content: m.Content})
		}
	}
	return out
}

func toWire(in []oracle.Message) []wireMessage {
	out := make([]wireMessage, 0, len(in))
	for _, m := range in {
		if m.Role == oracle.RoleTool {
			continue
		}
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.MediaURLs) == 0 {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	reply, history := s.Chat.Process(r.Context(), fromWire(req.ConversationHistory), req.Message, req.MediaURLs)
	jsonOK(w, chatResponse{Response: reply, ConversationHistory: toWire(history)})
}

func (s *Server) handleNewConversation(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]any{
		"conversation_history": []wireMessage{},
		"message":              "New conversation created",
	})
}
