package trace

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"fdtrace/internal/model"
	"fdtrace/internal/tree"
)

// ReportOptions controls GenerateReport.
type ReportOptions struct {
	Verbose   bool   // Add diagnostics, the observation log and ignored syscalls
	Color     bool   // Style with ANSI colours
	TracePath string // Source trace, used to quote lines around diagnostics
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	writeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true) // Orange
	readStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))             // Sky Blue
	dirStyle         = lipgloss.NewStyle().Bold(true)
	connectorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type painter bool

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

// GenerateReport renders a Result as a human-readable report.
func GenerateReport(res Result, opts ReportOptions) string {
	var b strings.Builder
	p := painter(opts.Color)

	b.WriteString(p.paint(reportTitleStyle, "File access report"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Events:       %d\n", res.Stats.Events)
	fmt.Fprintf(&b, "Files:        %d (%d written)\n", res.Stats.Files, res.Stats.Written)
	fmt.Fprintf(&b, "Pipe ends:    %d\n", res.Stats.Pipes)
	fmt.Fprintf(&b, "Sockets:      %d\n", res.Stats.Sockets)
	fmt.Fprintf(&b, "Diagnostics:  %d\n", len(res.Diagnostics))
	b.WriteString("\n")

	RenderTree(&b, res.Tree, opts.Color)

	if !opts.Verbose {
		return b.String()
	}

	if len(res.Diagnostics) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(reportTitleStyle, "Diagnostics"))
		b.WriteString("\n")

		kinds := make([]string, 0, len(res.Stats.Diagnostics))
		for k := range res.Stats.Diagnostics {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-12s %d\n", k, res.Stats.Diagnostics[k])
		}
		b.WriteString("\n")

		var contexts map[int]model.LineContext
		if opts.TracePath != "" {
			lines := make([]int, len(res.Diagnostics))
			for i, d := range res.Diagnostics {
				lines[i] = d.Line
			}
			contexts = model.GetLineContexts(opts.TracePath, lines, 1)
		}

		for _, d := range res.Diagnostics {
			fmt.Fprintf(&b, "  %s %s\n", p.paint(warnStyle, model.IconDiagnosed), Sanitize(d.String()))
			for _, l := range contexts[d.Line].Lines {
				marker := " "
				if l.Target {
					marker = ">"
				}
				fmt.Fprintf(&b, "      %s %5d | %s\n", marker, l.Number, Sanitize(l.Text))
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(p.paint(reportTitleStyle, "Observations"))
	b.WriteString("\n")
	for _, o := range res.Observations {
		fmt.Fprintf(&b, "  %5d  %-5s %3d  %s\n", o.Line, o.Action, o.FD, Sanitize(o.Resource))
	}

	if len(res.Ignored) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(reportTitleStyle, "Ignored syscalls"))
		b.WriteString("\n  ")
		b.WriteString(strings.Join(res.Ignored, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderTree draws the tree with box connectors, one node per line:
//
//	/ [W] (3 files)
//	├── etc (1 file)
//	│   └── hosts r
//	└── tmp [W] (2 files)
func RenderTree(b *strings.Builder, t *tree.Tree, color bool) {
	p := painter(color)
	root := t.Root()
	b.WriteString(p.paint(dirStyle, "/"))
	b.WriteString(dirSuffix(p, root))
	b.WriteString("\n")
	renderDir(b, p, root, "")
}

func renderDir(b *strings.Builder, p painter, d *tree.Directory, prefix string) {
	entries := d.Entries()
	for i, e := range entries {
		connector, next := "├── ", "│   "
		if i == len(entries)-1 {
			connector, next = "└── ", "    "
		}
		b.WriteString(prefix)
		b.WriteString(p.paint(connectorStyle, connector))

		name := Sanitize(e.Name)
		switch n := e.Node.(type) {
		case *tree.File:
			if n.Perm == model.PermWrite {
				b.WriteString(p.paint(writeStyle, name))
				b.WriteString(" w")
			} else {
				b.WriteString(p.paint(readStyle, name))
				b.WriteString(" r")
			}
			b.WriteString("\n")
		case *tree.Directory:
			b.WriteString(p.paint(dirStyle, name))
			b.WriteString(dirSuffix(p, n))
			b.WriteString("\n")
			renderDir(b, p, n, prefix+p.paint(connectorStyle, next))
		}
	}
}

func dirSuffix(p painter, d *tree.Directory) string {
	var s string
	if d.Tainted() {
		s = " " + p.paint(writeStyle, "[W]")
	}
	if d.Files() == 1 {
		return s + " (1 file)"
	}
	return s + fmt.Sprintf(" (%d files)", d.Files())
}

// Sanitize makes trace text safe to print to a terminal by replacing
// control characters with visible escapes. Tabs are kept.
func Sanitize(s string) string {
	clean := true
	for _, r := range s {
		if r != '\t' && (unicode.IsControl(r) || r == unicode.ReplacementChar) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r == unicode.ReplacementChar:
			fmt.Fprintf(&b, `\x%02x`, s[i])
		case r != '\t' && unicode.IsControl(r):
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
