package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/habits"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/strikes"
	"github.com/julianstephens/habitenforcer/internal/tools"
)

// Baseline gathers the current time, today's habits and the recent strike
// count.
type Baseline struct {
	Clock   clock.Clock
	Habits  *habits.Service
	Strikes *strikes.Engine
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func (b Baseline) Baseline(context.Context) string {
	now := b.Clock.Now()
	t := tools.CurrentTime(now)

	var sb strings.Builder
	sb.WriteString("\nBASELINE CONTEXT (auto-gathered):\n\n")
	fmt.Fprintf(&sb, "Current Time: %s %s\n", t["current_time"], t["timezone"])
	fmt.Fprintf(&sb, "Current Date: %s (%s)\n\n", t["current_date"], t["day_of_week"])

	_, today, err := b.Habits.Today()
	if err != nil {
		logger.Error("Failed to gather habits for baseline context", "error", err)
	}
	fmt.Fprintf(&sb, "Today's Habits (%d total):\n", len(today))
	for _, h := range today {
		status := "○ NOT COMPLETED"
		if h.Completed {
			status = "✓ COMPLETED"
		}
		fmt.Fprintf(&sb, "\n- %s | Start: %s | Deadline: %s | Status: %s", h.Title, orNA(h.StartTime), orNA(h.DeadlineTime), status)
	}

	if b.Strikes != nil {
		sum, err := b.Strikes.Summary(strikes.Filter{Days: constants.StrikeSummaryDays})
		if err != nil {
			logger.Error("Failed to gather strikes for baseline context", "error", err)
		} else {
			fmt.Fprintf(&sb, "\n\nRecent Strikes (last %d days): %d", constants.StrikeSummaryDays, sum.Total)
		}
	}
	return sb.String()
}
