package habits

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/cli"
)

type HabitCmd struct {
	Add      HabitAddCmd      `cmd:"" help:"Add a new habit."`
	List     HabitListCmd     `cmd:"" help:"List habits with today's status." default:"1"`
	Remove   HabitRemoveCmd   `cmd:"" help:"Remove a habit."`
	Complete HabitCompleteCmd `cmd:"" help:"Mark a habit completed today."`
	Schedule HabitScheduleCmd `cmd:"" help:"Change a habit's start or deadline time."`
	Summary  HabitSummaryCmd  `cmd:"" help:"Show today's completion summary."`
}

type HabitAddCmd struct {
	Title    string `arg:"" help:"Habit title."`
	Start    string `help:"Start time (HH:MM, 24-hour)." required:""`
	Deadline string `help:"Deadline time (HH:MM, 24-hour)." required:""`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	h, err := a.Habits.Add(c.Title, c.Start, c.Deadline)
	if err != nil {
		return err
	}
	fmt.Printf("Added habit: %s (%s - %s)\n", h.Title, cli.FormatTime(h.StartTime), cli.FormatTime(h.DeadlineTime))
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	date, habits, err := a.Habits.Today()
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found. Add one with 'habit add'.")
		return nil
	}

	fmt.Printf("Habits for %s:\n\n", date)
	for _, h := range habits {
		line := fmt.Sprintf("  [%s] %-30s %s - %s", cli.CheckMark(h.Completed), h.Title,
			cli.FormatTime(h.StartTime), cli.FormatTime(h.DeadlineTime))
		if h.IsPunishment {
			line += fmt.Sprintf("  (punishment, expires %s)", h.ExpiresOn)
		}
		fmt.Println(line)
	}
	return nil
}

type HabitRemoveCmd struct {
	Habit []string `arg:"" help:"Habit title or description."`
}

func (c *HabitRemoveCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	h, err := a.Habits.Remove(ctx.Ctx(), strings.Join(c.Habit, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Removed habit: %s\n", h.Title)
	return nil
}

type HabitCompleteCmd struct {
	Habit []string `arg:"" help:"Habit title or description."`
	Proof string   `help:"Path of the proof image to record."`
}

// Run records the completion directly. Verified completion goes through
// chat, where the image is checked by the vision model.
func (c *HabitCompleteCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	h, rec, err := a.Habits.Complete(ctx.Ctx(), strings.Join(c.Habit, " "), c.Proof)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Marked '%s' completed for %s\n", h.Title, rec.Date)
	return nil
}

type HabitScheduleCmd struct {
	Habit    []string `arg:"" help:"Habit title or description."`
	Start    *string  `help:"New start time (HH:MM, 24-hour)."`
	Deadline *string  `help:"New deadline time (HH:MM, 24-hour)."`
}

func (c *HabitScheduleCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	h, err := a.Habits.SetSchedule(ctx.Ctx(), strings.Join(c.Habit, " "), c.Start, c.Deadline)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s: %s - %s\n", h.Title, cli.FormatTime(h.StartTime), cli.FormatTime(h.DeadlineTime))
	return nil
}

type HabitSummaryCmd struct{}

func (c *HabitSummaryCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	s, err := a.Habits.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("Summary for %s\n", s.Date)
	fmt.Printf("  Completed: %d/%d (%.2f%%)\n", s.Completed, s.TotalHabits, s.CompletionRate)
	if len(s.CompletedHabits) > 0 {
		fmt.Printf("  Done:   %s\n", strings.Join(s.CompletedHabits, ", "))
	}
	if len(s.MissedHabits) > 0 {
		fmt.Printf("  Missed: %s\n", strings.Join(s.MissedHabits, ", "))
	}
	return nil
}
