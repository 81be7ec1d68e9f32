package system

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/tui"
	"github.com/julianstephens/habitenforcer/internal/utils"
)

type ChatCmd struct {
	Message []string `arg:"" optional:"" help:"Message to send. Opens the interactive chat when omitted."`
	Image   string   `short:"i" help:"Image file or URL attached as proof."`
}

func (c *ChatCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	var media []string
	if c.Image != "" {
		src, err := imageSource(c.Image)
		if err != nil {
			return err
		}
		media = append(media, src)
	}

	key := sessionKey()
	text := strings.TrimSpace(strings.Join(c.Message, " "))
	if text == "" && len(media) == 0 {
		return tui.Run(ctx.Ctx(), a.Chat, key)
	}

	runCtx, cancel := interruptible(ctx.Ctx())
	defer cancel()
	fmt.Println(a.Chat.Reply(runCtx, key, text, media))
	return nil
}

// imageSource resolves local paths to absolute ones and passes URLs through.
func imageSource(s string) (string, error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:") {
		return s, nil
	}
	p, err := utils.ExpandHome(s)
	if err != nil {
		return "", err
	}
	p, err = filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path: %w", err)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("image not readable: %w", err)
	}
	return p, nil
}

func sessionKey() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
