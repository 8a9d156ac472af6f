package trace

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Tracer defines how a tracing tool is invoked.
type Tracer interface {
	// TraceCommand returns the argv that traces argv, writing the trace to out.
	TraceCommand(out string, argv []string) []string
	Name() string
}

// StraceTracer implements Tracer for strace.
type StraceTracer struct {
	Path        string // Binary, "strace" if empty
	StringLimit int    // -s, longest string argument printed
}

func (s *StraceTracer) TraceCommand(out string, argv []string) []string {
	bin := s.Path
	if bin == "" {
		bin = "strace"
	}
	cmd := []string{bin, "-o", out}
	if s.StringLimit > 0 {
		// Limits printed buffers such as read and write data; paths are
		// printed in full regardless
		cmd = append(cmd, "-s", strconv.Itoa(s.StringLimit))
	}
	cmd = append(cmd, "--")
	return append(cmd, argv...)
}

func (s *StraceTracer) Name() string {
	return "strace"
}

// DetectTracer picks a Tracer for the configured binary. Only strace's
// output format is understood, so anything else is run as strace.
func DetectTracer(path string, stringLimit int) Tracer {
	if path != "" && !strings.Contains(filepath.Base(path), "strace") {
		path = ""
	}
	return &StraceTracer{Path: path, StringLimit: stringLimit}
}
