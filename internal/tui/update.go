package tui

import (
	"strings"

	"fdtrace/internal/model"
	"fdtrace/internal/trace"
	"fdtrace/internal/tree"

	tea "github.com/charmbracelet/bubbletea"
)

// MsgTraceReady indicates that the analysis has completed.
type MsgTraceReady trace.Result

// MsgError indicates an error occurred.
type MsgError error

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.DiagViewport.Width = msg.Width - 4
		m.DiagViewport.Height = msg.Height / 3
		return m, nil

	case MsgTraceReady:
		m.Loading = false
		m.Result = trace.Result(msg)
		// Open the first level so there is something to look at
		for _, e := range m.Result.Tree.Root().Entries() {
			m.expanded["/"+e.Name] = true
		}
		m.DiagViewport.SetContent(diagnosticsText(m.Result))
		m.refresh()
		return m, nil

	case MsgError:
		m.Err = msg
		m.Loading = false
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.Filter = m.InputBuffer.Value()
				m.refresh()
				return m, nil
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				m.Filter = ""
				m.refresh()
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowDiagnostics {
			switch msg.String() {
			case "d", "esc":
				m.ShowDiagnostics = false
				return m, nil
			case "ctrl+c", "q":
				return m, tea.Quit
			}
			m.DiagViewport, cmd = m.DiagViewport.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.Filter != "" {
				m.Filter = ""
				m.InputBuffer.SetValue("")
				m.refresh()
			}
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
			}
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			m.Cursor = max(len(m.rows)-1, 0)
		case "enter", " ", "right", "l", "left", "h":
			m.toggle(msg.String())
		case "w":
			m.OnlyWritten = !m.OnlyWritten
			m.refresh()
		case "d":
			m.ShowDiagnostics = true
		case "/":
			m.InputMode = true
			m.InputBuffer.SetValue(m.Filter)
			m.InputBuffer.Focus()
			return m, nil
		}
	}

	return m, cmd
}

// toggle expands or collapses the directory under the cursor. "left"
// collapses, "right" expands, anything else flips.
func (m *AppModel) toggle(key string) {
	if m.Cursor >= len(m.rows) {
		return
	}
	r := m.rows[m.Cursor]
	if _, ok := r.Node.(*tree.Directory); !ok {
		return
	}
	switch key {
	case "left", "h":
		m.expanded[r.Path] = false
	case "right", "l":
		m.expanded[r.Path] = true
	default:
		m.expanded[r.Path] = !m.expanded[r.Path]
	}
	m.refresh()
}

// refresh rebuilds the visible rows after the tree, the filter or the
// expansion state changed.
func (m *AppModel) refresh() {
	m.rows = visibleRows(m.Result.Tree, m.expanded, m.Filter, m.OnlyWritten)
	if m.Cursor >= len(m.rows) {
		m.Cursor = max(len(m.rows)-1, 0)
	}
}

func visibleRows(t *tree.Tree, expanded map[string]bool, filter string, onlyWritten bool) []row {
	if t == nil {
		return nil
	}
	filter = strings.ToLower(filter)

	// With a filter, show matches and every directory leading to one
	var keep map[string]bool
	if filter != "" {
		keep = make(map[string]bool)
		t.Walk(func(path, name string, n tree.Node, depth int) bool {
			if strings.Contains(strings.ToLower(name), filter) {
				for p := path; p != ""; p = parentOf(p) {
					keep[p] = true
				}
			}
			return true
		})
	}

	var rows []row
	t.Walk(func(path, name string, n tree.Node, depth int) bool {
		if keep != nil && !keep[path] {
			return false
		}
		if onlyWritten && !written(n) {
			return false
		}
		rows = append(rows, row{Path: path, Name: name, Depth: depth, Node: n})
		if keep != nil {
			return true
		}
		return expanded[path]
	})
	return rows
}

func written(n tree.Node) bool {
	switch n := n.(type) {
	case *tree.File:
		return n.Perm == model.PermWrite
	case *tree.Directory:
		return n.Tainted()
	}
	return false
}

func parentOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return ""
	}
	return path[:i]
}

func diagnosticsText(res trace.Result) string {
	if len(res.Diagnostics) == 0 {
		return "No diagnostics."
	}
	var b strings.Builder
	for _, d := range res.Diagnostics {
		b.WriteString(trace.Sanitize(d.String()))
		b.WriteString("\n")
	}
	return b.String()
}

// InitTraceCmd runs the analysis in the background.
func InitTraceCmd(load LoadFunc) tea.Cmd {
	return func() tea.Msg {
		res, err := load()
		if err != nil {
			return MsgError(err)
		}
		return MsgTraceReady(res)
	}
}
