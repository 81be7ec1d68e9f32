package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	status := ""
	if m.waiting {
		status = m.spinner.View() + " thinking..."
	} else if m.image != "" {
		status = noteStyle.Render("📎 " + m.image)
	}

	title := titleStyle.Render(constants.AppName + " chat")
	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		status,
		m.input.View(),
		m.help.View(m.keys),
	))
}
