package tui

import (
	"fdtrace/internal/trace"
	"fdtrace/internal/tree"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// LoadFunc produces the analysis the TUI displays.
type LoadFunc func() (trace.Result, error)

// row is one visible line of the tree.
type row struct {
	Path  string
	Name  string
	Depth int
	Node  tree.Node
}

// AppModel holds the TUI state.
type AppModel struct {
	// Data
	Result  trace.Result
	Loading bool
	Err     error
	load    LoadFunc

	// Tree State
	rows     []row
	expanded map[string]bool
	Cursor   int

	// UI State
	WindowSize      tea.WindowSizeMsg
	ShowDiagnostics bool
	OnlyWritten     bool

	// Filter State
	InputMode   bool
	InputBuffer textinput.Model
	Filter      string

	// Components
	DiagViewport viewport.Model
}

// InitialModel returns the initial state.
func InitialModel(load LoadFunc) AppModel {
	ti := textinput.New()
	ti.Placeholder = "path fragment..."
	ti.CharLimit = 256
	ti.Width = 30

	return AppModel{
		Loading:      true,
		load:         load,
		InputBuffer:  ti,
		expanded:     map[string]bool{"": true},
		DiagViewport: viewport.New(80, 10),
	}
}

// Init starts loading the analysis.
func (m AppModel) Init() tea.Cmd {
	return InitTraceCmd(m.load)
}
