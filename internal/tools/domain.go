package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/habits"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/proof"
	"github.com/julianstephens/habitenforcer/internal/storage"
	"github.com/julianstephens/habitenforcer/internal/strikes"
)

// ImageLoader fetches the proof image named by a source reference.
type ImageLoader interface {
	Load(ctx context.Context, source string) (proof.Image, error)
}

type Deps struct {
	Store    storage.Provider
	Clock    clock.Clock
	Habits   *habits.Service
	Strikes  *strikes.Engine
	Verifier *proof.Verifier
	Images   ImageLoader
}

const (
	proofRequired  = "PROOF REQUIRED. You must provide a screenshot or photo as evidence. No excuses."
	noImage        = "No image provided. Cannot complete habit without proof."
	noHabitsToScan = "No habits found to match against. Add some habits first."
)

// Default builds the registry of every domain tool.
func Default(d Deps) *Registry {
	h := &handlers{Deps: d}
	r := NewRegistry()
	r.MustRegister(Tool{
		Name:        AddHabit,
		Description: "Add a new habit to track. MUST include start time (when to begin) and deadline time (when it must be completed by).",
		Params: []oracle.Param{
			{Name: "title", Type: oracle.TypeString, Description: "The name/title of the habit to add", Required: true},
			{Name: "start_time", Type: oracle.TypeString, Description: "Start time in HH:MM (24-hour), e.g. '07:00'", Required: true},
			{Name: "deadline_time", Type: oracle.TypeString, Description: "Deadline in HH:MM (24-hour), e.g. '20:00'", Required: true},
		},
		Handler: h.addHabit,
	})
	r.MustRegister(Tool{
		Name:        RemoveHabit,
		Description: "Remove/delete an existing habit",
		Params: []oracle.Param{
			{Name: "title", Type: oracle.TypeString, Description: "The name/title of the habit to remove", Required: true},
		},
		Handler: h.removeHabit,
	})
	r.MustRegister(Tool{
		Name:        CompleteHabit,
		Description: "Mark a habit as completed for today. REQUIRES visual proof: the user must attach a screenshot or photo.",
		Params: []oracle.Param{
			{Name: "title", Type: oracle.TypeString, Description: "The name/title of the habit to mark complete", Required: true},
			{Name: "proof_provided", Type: oracle.TypeBoolean, Description: "Whether the user attached an image to their message", Required: true},
		},
		Handler: h.completeHabit,
	})
	r.MustRegister(Tool{
		Name:        CompleteHabitFromImage,
		Description: "Analyze the attached image, identify ALL habits it proves, verify each and mark them complete. Use when the user sends an image without naming the habit.",
		Params: []oracle.Param{
			{Name: "user_message", Type: oracle.TypeString, Description: "Any text the user sent with the image (may be empty)", Required: true},
		},
		Handler: h.completeFromImage,
	})
	r.MustRegister(Tool{
		Name:        SetHabitSchedule,
		Description: "Update the start and/or deadline time of a habit.",
		Params: []oracle.Param{
			{Name: "title", Type: oracle.TypeString, Description: "The name/title of the habit to schedule", Required: true},
			{Name: "start_time", Type: oracle.TypeString, Description: "New start time in HH:MM (24-hour), or null to keep", Nullable: true},
			{Name: "deadline_time", Type: oracle.TypeString, Description: "New deadline in HH:MM (24-hour), or null to keep", Nullable: true},
		},
		Handler: h.setSchedule,
	})
	r.MustRegister(Tool{
		Name:        GetCurrentTime,
		Description: "Get the current date and time with timezone information.",
		Handler:     h.currentTime,
	})
	r.MustRegister(Tool{
		Name:        GetStrikes,
		Description: "Get strike count and history, optionally for one habit or the last N days.",
		Params: []oracle.Param{
			{Name: "habit_id", Type: oracle.TypeString, Description: "Habit ID to filter by, or null for all habits", Nullable: true},
			{Name: "days", Type: oracle.TypeInteger, Description: "Days to look back including today, or null for all time", Nullable: true},
		},
		Handler: h.strikes,
	})
	r.MustRegister(Tool{
		Name:        GetDatabaseSchema,
		Description: "Get the database schema: tables, columns, types and relationships. Use before query_database.",
		Handler:     h.schema,
	})
	r.MustRegister(Tool{
		Name:        QueryDatabase,
		Description: "Run a read-only SELECT query, e.g. 'SELECT title, deadline_time FROM habits'. At most 200 rows are returned.",
		Params: []oracle.Param{
			{Name: "query", Type: oracle.TypeString, Description: "A single SELECT statement", Required: true},
		},
		Handler: h.query,
	})
	return r
}

type handlers struct {
	Deps
}

func (h *handlers) addHabit(_ context.Context, c Call) Result {
	start, deadline := c.Args.String("start_time"), c.Args.String("deadline_time")
	habit, err := h.Habits.Add(c.Args.String("title"), start, deadline)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"message":       fmt.Sprintf("Habit '%s' added successfully with start time %s and deadline %s", habit.Title, start, deadline),
		"habit_id":      habit.ID,
		"start_time":    start,
		"deadline_time": deadline,
	})
}

func (h *handlers) removeHabit(ctx context.Context, c Call) Result {
	habit, err := h.Habits.Remove(ctx, c.Args.String("title"))
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"message":     fmt.Sprintf("Habit '%s' removed successfully", habit.Title),
		"habit_id":    habit.ID,
		"habit_title": habit.Title,
	})
}

func (h *handlers) loadProof(ctx context.Context, source string) (proof.Image, error) {
	if h.Images == nil {
		return proof.Image{}, errors.New(errors.KindConfiguration, "proof image loading not configured")
	}
	img, err := h.Images.Load(ctx, source)
	if err != nil {
		return proof.Image{}, errors.Wrap(errors.KindExternalService, err, "")
	}
	return img, nil
}

func (h *handlers) completeHabit(ctx context.Context, c Call) Result {
	if !c.Args.Bool("proof_provided") || c.Env.ProofSource == "" {
		return Failf(errors.KindValidation, proofRequired)
	}
	habit, err := h.Habits.Find(ctx, c.Args.String("title"))
	if err != nil {
		return Fail(err)
	}
	img, err := h.loadProof(ctx, c.Env.ProofSource)
	if err != nil {
		return Fail(err)
	}
	verdict := h.Verifier.Verify(ctx, proof.Request{Image: img, HabitTitle: habit.Title, Deadline: habit.DeadlineTime})
	if !verdict.Verified {
		return Fail(errors.New(errors.KindValidation, "PROOF REJECTED. "+verdict.Reasoning),
			map[string]any{"confidence": verdict.Confidence})
	}
	if _, err := h.Habits.CompleteByID(habit.ID, c.Env.ProofSource); err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"message": fmt.Sprintf("Completed habit '%s' - proof verified", habit.Title),
		"verification": map[string]any{
			"confidence": verdict.Confidence,
			"reasoning":  verdict.Reasoning,
		},
	})
}

type habitOutcome struct {
	Habit      string           `json:"habit"`
	Confidence proof.Confidence `json:"confidence"`
	Reason     string           `json:"reason"`
}

// completeFromImage verifies each habit the image matches on its own. Some
// may complete while others are rejected.
func (h *handlers) completeFromImage(ctx context.Context, c Call) Result {
	if c.Env.ProofSource == "" {
		return Failf(errors.KindValidation, noImage)
	}
	_, today, err := h.Habits.Today()
	if err != nil {
		return Fail(err)
	}
	if len(today) == 0 {
		return Failf(errors.KindNotFound, noHabitsToScan)
	}
	img, err := h.loadProof(ctx, c.Env.ProofSource)
	if err != nil {
		return Fail(err)
	}

	titles := make([]string, 0, len(today))
	for _, hs := range today {
		titles = append(titles, hs.Title)
	}
	message := c.Args.String("user_message")
	analysis, err := h.Verifier.Analyze(ctx, img, message, titles)
	if err != nil {
		return Fail(errors.Wrap(errors.KindExternalService, err, ""))
	}
	if len(analysis.MatchedHabitTitles) == 0 {
		return Fail(errors.New(errors.KindNotFound, "No habits matched from the image. Available habits: "+strings.Join(titles, ", ")),
			map[string]any{"identified_habit": analysis.HabitIdentified, "confidence": analysis.Confidence})
	}

	extra := fmt.Sprintf("User said: '%s'. Image shows: %s. Note: This image may prove multiple habits.", message, analysis.KeyDetails)
	completed := []habitOutcome{}
	failed := []habitOutcome{}
	for _, title := range analysis.MatchedHabitTitles {
		hs, ok := habits.FindByTitle(today, title)
		if !ok {
			logger.Warn("Matched habit not found", "title", title)
			failed = append(failed, habitOutcome{Habit: title, Reason: "Habit not found in database", Confidence: "n/a"})
			continue
		}
		verdict := h.Verifier.Verify(ctx, proof.Request{Image: img, HabitTitle: hs.Title, Deadline: hs.DeadlineTime, Context: extra})
		if !verdict.Verified {
			failed = append(failed, habitOutcome{Habit: hs.Title, Reason: verdict.Reasoning, Confidence: verdict.Confidence})
			continue
		}
		if _, err := h.Habits.CompleteByID(hs.ID, c.Env.ProofSource); err != nil {
			failed = append(failed, habitOutcome{Habit: hs.Title, Reason: errors.Message(err), Confidence: verdict.Confidence})
			continue
		}
		completed = append(completed, habitOutcome{Habit: hs.Title, Reason: verdict.Reasoning, Confidence: verdict.Confidence})
	}

	summary := map[string]any{
		"identified":            analysis.HabitIdentified,
		"total_habits_detected": len(analysis.MatchedHabitTitles),
		"details":               analysis.KeyDetails,
		"multiple_habits":       analysis.MultipleHabitsDetected,
		"analysis_confidence":   analysis.Confidence,
	}
	if len(completed) == 0 {
		return Fail(errors.New(errors.KindValidation, "All habit verifications failed"),
			map[string]any{"failed_verifications": failed, "analysis": summary})
	}
	return OK(map[string]any{
		"message":              fmt.Sprintf("Completed %d habit(s) from image", len(completed)),
		"completed_habits":     completed,
		"failed_verifications": failed,
		"analysis":             summary,
	})
}

func (h *handlers) setSchedule(ctx context.Context, c Call) Result {
	habit, err := h.Habits.SetSchedule(ctx, c.Args.String("title"), c.Args.OptString("start_time"), c.Args.OptString("deadline_time"))
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"message":       fmt.Sprintf("Schedule updated for habit '%s'", habit.Title),
		"habit":         habit.Title,
		"start_time":    habit.StartTime,
		"deadline_time": habit.DeadlineTime,
	})
}

// CurrentTime is the get_current_time payload.
func CurrentTime(now time.Time) map[string]any {
	return map[string]any{
		"current_time": now.Format(constants.StoredTimeFormat),
		"current_date": now.Format(constants.DateFormat),
		"day_of_week":  now.Weekday().String(),
		"timezone":     now.Format("MST"),
		"iso_format":   now.Format(time.RFC3339),
	}
}

func (h *handlers) currentTime(context.Context, Call) Result {
	return OK(CurrentTime(h.Clock.Now()))
}

func (h *handlers) strikes(_ context.Context, c Call) Result {
	f := strikes.Filter{HabitID: c.Args.String("habit_id")}
	if days, ok := c.Args.Int("days"); ok {
		if days <= 0 {
			return Failf(errors.KindValidation, "days must be positive, got %d", days)
		}
		f.Days = days
	}
	sum, err := h.Strikes.Summary(f)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"total_strikes":       sum.Total,
		"strike_count":        sum.Total,
		"habits_with_strikes": sum.ByHabit,
		"all_strikes":         sum.Strikes,
	})
}

func (h *handlers) schema(context.Context, Call) Result {
	s, err := h.Store.DescribeSchema()
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{"tables": s.Tables, "relationships": s.Relationships})
}

func (h *handlers) query(_ context.Context, c Call) Result {
	q := c.Args.String("query")
	logger.Info("Executing read-only query", "query", q)
	res, err := h.Store.QueryReadOnly(q)
	if stderrors.Is(err, storage.ErrUnsafeQuery) {
		return Fail(errors.Wrap(errors.KindValidation, err, "Query rejected"))
	}
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{"data": res.Rows, "columns": res.Columns, "count": res.Count, "truncated": res.Truncated})
}
