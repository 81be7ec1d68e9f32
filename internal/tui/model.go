// Package tui is the interactive terminal chat.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

// Replier is satisfied by *chat.Service.
type Replier interface {
	Reply(ctx context.Context, key, text string, mediaURLs []string) string
	Reset(key string)
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleNote
)

type entry struct {
	role role
	text string
}

// replyMsg carries the assistant's answer back into the update loop.
type replyMsg struct{ text string }

const (
	imageCommand = "/image"
	newCommand   = "/new"
	inputHeight  = 3
)

const welcome = "Tell me what you did, attach proof with `/image <path>`, or ask about your habits and strikes. `/new` starts over."

type Model struct {
	ctx     context.Context
	replier Replier
	key     string

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries []entry
	image   string
	waiting bool
	ready   bool
	width   int
}

func NewModel(ctx context.Context, r Replier, key string) Model {
	ta := textarea.New()
	ta.Placeholder = "Message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = assistantStyle

	return Model{
		ctx:      ctx,
		replier:  r,
		key:      key,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		entries:  []entry{{role: roleNote, text: welcome}},
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Run blocks until the user quits.
func Run(ctx context.Context, r Replier, key string) error {
	p := tea.NewProgram(NewModel(ctx, r, key), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}

func (m Model) send(text, image string) tea.Cmd {
	r, ctx, key := m.replier, m.ctx, m.key
	var media []string
	if image != "" {
		media = []string{image}
	}
	return func() tea.Msg {
		return replyMsg{text: r.Reply(ctx, key, text, media)}
	}
}

// command handles slash commands. ok is false for ordinary messages.
func (m *Model) command(text string) (ok bool) {
	switch {
	case text == newCommand:
		m.replier.Reset(m.key)
		m.entries = []entry{{role: roleNote, text: "New conversation started."}}
		m.image = ""
		return true
	case text == imageCommand || strings.HasPrefix(text, imageCommand+" "):
		path := strings.TrimSpace(strings.TrimPrefix(text, imageCommand))
		if path == "" {
			m.entries = append(m.entries, entry{role: roleNote, text: "Usage: /image <path or URL>"})
			return true
		}
		m.image = path
		m.entries = append(m.entries, entry{role: roleNote, text: fmt.Sprintf("Attached %s to your next message.", path)})
		return true
	}
	return false
}

func (m *Model) resize(width, height int) {
	m.width = width
	frameW, frameH := docStyle.GetFrameSize()
	m.input.SetWidth(width - frameW)
	helpHeight := 1
	if m.help.ShowAll {
		helpHeight = 3
	}
	// title, spacer, input, help
	vpHeight := height - frameH - 1 - 1 - inputHeight - helpHeight - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width - frameW
	m.viewport.Height = vpHeight
	m.renderer = nil
	m.ready = true
}

func (m *Model) markdown(s string) string {
	if m.renderer == nil {
		wrap := m.viewport.Width - 4
		if wrap < 20 {
			wrap = 20
		}
		r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(wrap))
		if err != nil {
			return s
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You") + "\n" + e.text)
		case roleAssistant:
			label := assistantStyle.Render(constants.AppName)
			if strings.HasPrefix(e.text, "❌") {
				b.WriteString(label + "\n" + dangerStyle.Render(e.text))
			} else {
				b.WriteString(label + "\n" + m.markdown(e.text))
			}
		case roleNote:
			b.WriteString(noteStyle.Render(e.text))
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}
