// Package server exposes the HTTP API and the Twilio WhatsApp webhook.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/julianstephens/habitenforcer/internal/chat"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/habits"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/strikes"
)

// Messenger sends a reply to one WhatsApp address. *notify.WhatsApp
// satisfies it.
type Messenger interface {
	SendTo(ctx context.Context, to, body string) (string, error)
}

type Deps struct {
	Habits  *habits.Service
	Strikes *strikes.Engine
	Chat    *chat.Service
	// WhatsApp may be nil when Twilio is not configured.
	WhatsApp Messenger
}

type Server struct {
	Deps
	mux *http.ServeMux
}

func New(d Deps) *Server {
	s := &Server{Deps: d, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /chat/message", s.handleChatMessage)
	s.mux.HandleFunc("POST /chat/conversation", s.handleNewConversation)

	s.mux.HandleFunc("POST /habits", s.handleAddHabit)
	s.mux.HandleFunc("POST /habits/remove", s.handleRemoveHabit)
	s.mux.HandleFunc("POST /habits/complete", s.handleCompleteHabit)
	s.mux.HandleFunc("POST /habits/schedule", s.handleSetSchedule)
	s.mux.HandleFunc("GET /habits/today", s.handleToday)
	s.mux.HandleFunc("GET /habits/summary/today", s.handleSummary)

	s.mux.HandleFunc("GET /strikes", s.handleStrikes)

	s.mux.HandleFunc("POST /whatsapp", s.handleWhatsApp)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]any{"status": "ok", "message": "Server is alive"})
}

func jsonOK(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"detail": msg})
}

// fail maps an error kind to a status code.
func fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindValidation:
		code = http.StatusBadRequest
	case errors.KindNotFound:
		code = http.StatusNotFound
	}
	if code == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	jsonError(w, errors.Message(err), code)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
