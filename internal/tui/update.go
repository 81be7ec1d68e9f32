package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		m.entries = append(m.entries, entry{role: roleAssistant, text: msg.text})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.New):
			if m.waiting {
				return m, nil
			}
			m.command(newCommand)
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keys.Send):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" && m.image == "" {
		return m, nil
	}
	m.input.Reset()

	if m.command(text) {
		m.refresh()
		return m, nil
	}

	image := m.image
	m.image = ""
	shown := text
	if image != "" {
		shown += "\n" + noteStyle.Render("📎 "+image)
	}
	m.entries = append(m.entries, entry{role: roleUser, text: strings.TrimSpace(shown)})
	m.waiting = true
	m.refresh()
	return m, tea.Batch(m.send(text, image), m.spinner.Tick)
}
