package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/app"
	"github.com/julianstephens/habitenforcer/internal/config"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

type Context struct {
	Context context.Context
	Config  *config.Config
	Store   storage.Provider

	app *app.App
}

// App wires the application on first use. Commands that only touch the
// store never pay for the Gemini or Twilio clients.
func (c *Context) App() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg := config.Config{}
	if c.Config != nil {
		cfg = *c.Config
	}
	a, err := app.New(c.ctx(), cfg, c.Store)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *Context) ctx() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

// Ctx returns the command's context.
func (c *Context) Ctx() context.Context { return c.ctx() }

// FormatTime renders a stored HH:MM:SS time as HH:MM, or "-" when unset.
func FormatTime(s string) string {
	if s == "" {
		return "-"
	}
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// CheckMark renders a completion flag.
func CheckMark(done bool) string {
	if done {
		return "✓"
	}
	return " "
}

func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
