package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/strikes"
)

type addHabitRequest struct {
	Title        string `json:"title"`
	StartTime    string `json:"start_time"`
	DeadlineTime string `json:"deadline_time"`
}

type titleRequest struct {
	Title     string `json:"title"`
	ProofPath string `json:"proof_path"`
}

type scheduleRequest struct {
	Title        string  `json:"title"`
	StartTime    *string `json:"start_time"`
	DeadlineTime *string `json:"deadline_time"`
}

func (s *Server) handleAddHabit(w http.ResponseWriter, r *http.Request) {
	var req addHabitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.StartTime == "" || req.DeadlineTime == "" {
		jsonError(w, "Both start_time and deadline_time are required", http.StatusBadRequest)
		return
	}
	h, err := s.Habits.Add(req.Title, req.StartTime, req.DeadlineTime)
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Habit '%s' added successfully", h.Title),
		"data":    h,
	})
}

func (s *Server) handleRemoveHabit(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decode(w, r, &req) {
		return
	}
	h, err := s.Habits.Remove(r.Context(), req.Title)
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Habit '%s' removed successfully", h.Title),
		"data":    h,
	})
}

func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decode(w, r, &req) {
		return
	}
	h, rec, err := s.Habits.Complete(r.Context(), req.Title, req.ProofPath)
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"status":    "success",
		"habit":     h.Title,
		"completed": true,
		"proof":     rec.ProofPath,
		"data":      rec,
	})
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	h, err := s.Habits.SetSchedule(r.Context(), req.Title, req.StartTime, req.DeadlineTime)
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"status":        "success",
		"habit":         h.Title,
		"start_time":    h.StartTime,
		"deadline_time": h.DeadlineTime,
	})
}

func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	date, list, err := s.Habits.Today()
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{"status": "success", "date": date, "habits": list})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.Habits.Summary()
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"status":           "success",
		"date":             sum.Date,
		"total_habits":     sum.TotalHabits,
		"completed":        sum.Completed,
		"missed":           sum.Missed,
		"completion_rate":  sum.CompletionRate,
		"completed_habits": sum.CompletedHabits,
		"missed_habits":    sum.MissedHabits,
	})
}

func (s *Server) handleStrikes(w http.ResponseWriter, r *http.Request) {
	f := strikes.Filter{HabitID: r.URL.Query().Get("habit_id")}
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			fail(w, errors.Newf(errors.KindValidation, "days must be a positive integer, got %q", v))
			return
		}
		f.Days = days
	}
	sum, err := s.Strikes.Summary(f)
	if err != nil {
		fail(w, err)
		return
	}
	jsonOK(w, sum)
}
