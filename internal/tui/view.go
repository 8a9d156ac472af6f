package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fdtrace/internal/model"
	"fdtrace/internal/trace"
	"fdtrace/internal/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	writeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	readStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")) // Sky Blue/Cyan

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	detailStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))
)

func (m AppModel) View() string {
	if m.Loading {
		return "\n  Replaying trace... please wait.\n"
	}
	if m.Err != nil {
		return fmt.Sprintf("\n  Error: %v\n", m.Err)
	}

	var b strings.Builder
	s := m.Result.Stats
	b.WriteString(titleStyle.Render("fdtrace"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d events · %d files · %d written · %d diagnostics",
		s.Events, s.Files, s.Written, len(m.Result.Diagnostics))))
	b.WriteString("\n\n")

	if m.ShowDiagnostics {
		b.WriteString(detailStyle.Render(m.DiagViewport.View()))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("↑/↓ scroll • d/esc back • q quit"))
		return b.String()
	}

	// Rows that fit between header (2) and footer (2)
	height := m.WindowSize.Height - 4
	if height < 5 {
		height = 5
	}
	start := 0
	if m.Cursor >= height {
		start = m.Cursor - height + 1
	}
	end := min(start+height, len(m.rows))

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  (nothing to show)"))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		line := m.renderRow(m.rows[i])
		if i == m.Cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.InputMode {
		b.WriteString("Filter: ")
		b.WriteString(m.InputBuffer.View())
		return b.String()
	}

	footer := "↑/↓ move • enter toggle • w written only • / filter • d diagnostics • q quit"
	if m.Filter != "" {
		footer = fmt.Sprintf("filter %q (esc clears) • ", m.Filter) + footer
	}
	if m.OnlyWritten {
		footer = "[written only] " + footer
	}
	b.WriteString(dimStyle.Render(footer))
	return b.String()
}

func (m AppModel) renderRow(r row) string {
	indent := strings.Repeat("  ", r.Depth)
	name := trace.Sanitize(r.Name)

	switch n := r.Node.(type) {
	case *tree.Directory:
		icon := model.IconDir
		if m.expanded[r.Path] || m.Filter != "" {
			icon = model.IconDirOpen
		}
		label := fmt.Sprintf("%s%s %s/ (%d)", indent, icon, name, n.Files())
		if n.Tainted() {
			return writeStyle.Render(label + " " + model.IconTainted)
		}
		return label
	case *tree.File:
		if r.Name == tree.SelfEntry {
			name += " " + model.IconConflict
		}
		if n.Perm == model.PermWrite {
			return writeStyle.Render(fmt.Sprintf("%s%s %s", indent, model.IconWrite, name))
		}
		return readStyle.Render(fmt.Sprintf("%s%s %s", indent, model.IconRead, name))
	}
	return indent + name
}

// Run starts the interactive browser.
func Run(load LoadFunc) error {
	m := InitialModel(load)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
