package strikes

import (
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/constants"
	engine "github.com/julianstephens/habitenforcer/internal/strikes"
)

type StrikesCmd struct {
	Days  int    `help:"Only include the last N days (0 = all time)." default:"7"`
	Habit string `help:"Only include strikes for this habit title or description."`
}

func (c *StrikesCmd) Run(ctx *cli.Context) error {
	if c.Days < 0 {
		return fmt.Errorf("--days must not be negative")
	}
	a, err := ctx.App()
	if err != nil {
		return err
	}

	f := engine.Filter{Days: c.Days}
	if c.Habit != "" {
		h, err := a.Habits.Find(ctx.Ctx(), c.Habit)
		if err != nil {
			return err
		}
		f.HabitID = h.ID
	}
	s, err := a.Strikes.Summary(f)
	if err != nil {
		return err
	}

	window := "all time"
	if c.Days > 0 {
		window = "last " + cli.Plural(c.Days, "day")
	}
	fmt.Printf("%s (%s)\n", cli.Plural(s.Total, "strike"), window)
	if s.Total == 0 {
		return nil
	}

	fmt.Println()
	for _, h := range s.ByHabit {
		fmt.Printf("  %-30s %d\n", h.Title, h.Count)
	}
	fmt.Println()
	for _, e := range s.Strikes {
		line := fmt.Sprintf("  %s  %-16s %s", e.Date, e.Reason, e.CreatedAt.In(a.Clock.Now().Location()).Format(constants.TimeFormat))
		if e.Notes != "" {
			line += "  " + e.Notes
		}
		fmt.Println(line)
	}
	return nil
}
