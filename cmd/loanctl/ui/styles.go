package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/redmonkez12/loan-advisor-api/internal/contact"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	statusStyles = map[contact.Status]lipgloss.Style{
		contact.StatusNew:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		contact.StatusRead:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		contact.StatusReplied: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)
