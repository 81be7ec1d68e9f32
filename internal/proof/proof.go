// Package proof verifies photo evidence of habit completion.
package proof

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Verdict is the verifier's decision on one habit.
type Verdict struct {
	Verified   bool       `json:"verified"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

type Image struct {
	Data     []byte
	MIMEType string
	Source   string
}

// Analysis describes which habits an image appears to prove.
type Analysis struct {
	MatchedHabitTitles     []string   `json:"matched_habit_titles"`
	HabitIdentified        string     `json:"habit_identified"`
	ActivityType           string     `json:"activity_type"`
	KeyDetails             string     `json:"key_details"`
	Confidence             Confidence `json:"confidence"`
	MultipleHabitsDetected bool       `json:"multiple_habits_detected"`
}

// Vision is the image model behind verification.
type Vision interface {
	Verify(ctx context.Context, img Image, habitTitle, extraContext string) (Verdict, error)
	Analyze(ctx context.Context, img Image, userMessage string, habitTitles []string) (Analysis, error)
}

type Request struct {
	Image      Image
	HabitTitle string
	// Deadline is the habit's stored deadline (HH:MM:SS); empty skips the
	// grace check.
	Deadline string
	Context  string
}

type Verifier struct {
	vision Vision
	clock  clock.Clock
	grace  time.Duration
}

func NewVerifier(v Vision, c clock.Clock, grace time.Duration) *Verifier {
	if grace <= 0 {
		grace = constants.DefaultGracePeriodMin * time.Minute
	}
	return &Verifier{vision: v, clock: c, grace: grace}
}

func (v *Verifier) Grace() time.Duration { return v.grace }

// CheckGrace rejects proof arriving after deadline plus grace. The bound is
// inclusive. ok is true when the proof is on time.
func CheckGrace(now clock.TimeOfDay, deadline string, grace time.Duration) (Verdict, bool, error) {
	d, err := clock.ParseTimeOfDay(deadline)
	if err != nil {
		return Verdict{}, false, err
	}
	if now <= d+clock.TimeOfDay(grace/time.Second) {
		return Verdict{}, true, nil
	}
	return Verdict{
		Verified:   false,
		Confidence: ConfidenceHigh,
		Reasoning: fmt.Sprintf("Proof submitted too late. Deadline was %s, current time is %s (%d-minute grace period expired).",
			d, now, int(grace/time.Minute)),
	}, false, nil
}

// Verify applies the grace check and then asks the vision model. It never
// fails: errors become an unverified, low-confidence verdict.
func (v *Verifier) Verify(ctx context.Context, req Request) Verdict {
	if req.Deadline != "" {
		now := clock.Of(v.clock.Now())
		late, ok, err := CheckGrace(now, req.Deadline, v.grace)
		if err != nil {
			return failed(err)
		}
		if !ok {
			logger.Warn("Proof submitted too late", "habit", req.HabitTitle, "deadline", req.Deadline, "now", now)
			return late
		}
	}
	if v.vision == nil {
		return failed(fmt.Errorf("vision model not configured"))
	}
	verdict, err := v.vision.Verify(ctx, req.Image, req.HabitTitle, req.Context)
	if err != nil {
		logger.Error("Proof verification failed", "habit", req.HabitTitle, "error", err)
		return failed(err)
	}
	logger.Info("Proof verified", "habit", req.HabitTitle, "verified", verdict.Verified, "confidence", verdict.Confidence)
	return verdict
}

// Analyze asks the vision model which of habitTitles the image proves.
func (v *Verifier) Analyze(ctx context.Context, img Image, userMessage string, habitTitles []string) (Analysis, error) {
	if v.vision == nil {
		return Analysis{}, fmt.Errorf("vision model not configured")
	}
	a, err := v.vision.Analyze(ctx, img, userMessage, habitTitles)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to analyze image: %w", err)
	}
	logger.Info("Image analysed", "matched", a.MatchedHabitTitles, "confidence", a.Confidence)
	return a, nil
}

func failed(err error) Verdict {
	return Verdict{Verified: false, Confidence: ConfidenceLow, Reasoning: "Verification failed: " + err.Error()}
}
