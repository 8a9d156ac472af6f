package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"fdtrace/internal/model"
	"fdtrace/internal/trace"
	"fdtrace/internal/tree"
)

func sampleResult() trace.Result {
	t := tree.New()
	t.Insert("/etc/hosts", model.PermRead)
	t.Insert("/etc/ssl/certs.pem", model.PermRead)
	t.Insert("/tmp/out.log", model.PermWrite)
	return trace.Result{
		Tree:        t,
		Diagnostics: []trace.Diagnostic{{Line: 4, Kind: "not_open", Message: "close: fd 7 is not open"}},
	}
}

func ready(t *testing.T) AppModel {
	t.Helper()
	m := InitialModel(func() (trace.Result, error) { return sampleResult(), nil })
	next, _ := m.Update(InitTraceCmd(m.load)())
	return next.(AppModel)
}

func press(m AppModel, keys ...string) AppModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(AppModel)
	}
	return m
}

func paths(m AppModel) string {
	var out []string
	for _, r := range m.rows {
		out = append(out, r.Path)
	}
	return strings.Join(out, " ")
}

func TestTraceReadyExpandsFirstLevel(t *testing.T) {
	m := ready(t)
	if m.Loading {
		t.Fatal("still loading")
	}
	if got := paths(m); got != "/etc /etc/hosts /etc/ssl /tmp /tmp/out.log" {
		t.Fatalf("rows = %s", got)
	}
}

func TestToggleDirectory(t *testing.T) {
	m := ready(t)
	m = press(m, "j", "j", "enter") // /etc/ssl
	if got := paths(m); !strings.Contains(got, "/etc/ssl/certs.pem") {
		t.Fatalf("ssl not expanded: %s", got)
	}
	m = press(m, "g", "enter") // collapse /etc
	if got := paths(m); got != "/etc /tmp /tmp/out.log" {
		t.Fatalf("rows = %s", got)
	}
}

func TestOnlyWritten(t *testing.T) {
	m := press(ready(t), "w")
	if got := paths(m); got != "/tmp /tmp/out.log" {
		t.Fatalf("rows = %s", got)
	}
}

func TestFilter(t *testing.T) {
	m := press(ready(t), "/", "c", "e", "r", "t", "enter")
	if m.Filter != "cert" {
		t.Fatalf("filter = %q", m.Filter)
	}
	if got := paths(m); got != "/etc /etc/ssl /etc/ssl/certs.pem" {
		t.Fatalf("rows = %s", got)
	}
	m = press(m, "esc")
	if m.Filter != "" || !strings.Contains(paths(m), "/tmp") {
		t.Fatalf("esc did not clear filter: %s", paths(m))
	}
}

func TestDiagnosticsPane(t *testing.T) {
	m := press(ready(t), "d")
	if !m.ShowDiagnostics {
		t.Fatal("diagnostics not shown")
	}
	if !strings.Contains(m.View(), "fd 7 is not open") {
		t.Fatalf("view missing diagnostic:\n%s", m.View())
	}
	m = press(m, "esc")
	if m.ShowDiagnostics {
		t.Fatal("esc should close diagnostics")
	}
}

func TestLoadError(t *testing.T) {
	m := InitialModel(func() (trace.Result, error) { return trace.Result{}, errors.New("boom") })
	next, _ := m.Update(InitTraceCmd(m.load)())
	if !strings.Contains(next.View(), "boom") {
		t.Fatalf("view = %q", next.View())
	}
}
