package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/redmonkez12/loan-advisor-api/internal/contact"
)

const previewLen = 60

// PrintMessages writes one block per message, newest first as returned by the store.
func PrintMessages(w io.Writer, messages []contact.Message) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Contact messages (%d)", len(messages))))

	if len(messages) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("  no messages"))
		return
	}

	for _, m := range messages {
		fmt.Fprintf(w, "  %s  %s\n", renderStatus(m.Status), m.ID)
		fmt.Fprintf(w, "    From:     %s <%s>\n", m.Name, m.Email)
		fmt.Fprintf(w, "    Received: %s\n", m.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(w, "    %s\n", subtleStyle.Render(preview(m.Message)))
		fmt.Fprintln(w)
	}
}

// PrintUpdated confirms a status change.
func PrintUpdated(w io.Writer, m *contact.Message) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Message %s marked as %s", m.ID, m.Status)))
}

// PrintSuccess prints a short success line.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+msg))
}

// Confirm asks a yes/no question in the terminal.
func Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeCatppuccin()).Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func renderStatus(s contact.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("%-7s", s))
}

// preview flattens the message to one line and cuts it at previewLen runes
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen-1]) + "…"
}
