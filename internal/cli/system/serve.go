package system

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/mcpserver"
)

type ServeCmd struct {
	Addr        string `help:"HTTP listen address." env:"HABITENFORCER_ADDR" default:"${default_addr}"`
	NoScheduler bool   `name:"no-scheduler" help:"Serve HTTP only; skip reminder, deadline and cleanup jobs."`
}

// Run serves the HTTP API and runs the scheduler until interrupted. Either
// one failing stops the other.
func (c *ServeCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx.Ctx(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := a.CatchUpCleanup(); err != nil {
		logger.Warn("Startup cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("Removed expired punishment habits on startup", "count", n)
	}

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return a.Server().ListenAndServe(gctx, c.Addr)
	})
	if !c.NoScheduler {
		s, err := a.Scheduler()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return s.Run(gctx)
		})
	}

	fmt.Printf("%s %s listening on %s\n", constants.AppName, constants.Version, c.Addr)
	return g.Wait()
}

type CheckCmd struct{}

// Run performs one reminder pass followed by one missed-deadline pass.
func (c *CheckCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Check(ctx.Ctx()); err != nil {
		return err
	}
	fmt.Println("✓ Check complete")
	return nil
}

type CleanupCmd struct{}

func (c *CleanupCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	n, err := a.Cleanup(ctx.Ctx())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Removed %s\n", cli.Plural(n, "expired punishment habit"))
	return nil
}

type MCPCmd struct{}

func (c *MCPCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	return mcpserver.Serve(a.Tools)
}

// interruptible is used by commands that block on user input.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
