package trace

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fdtrace/internal/model"
)

// Parser handles the parsing of strace output.
type Parser struct {
	re  *regexp.Regexp
	log *zap.Logger

	// Counters, valid once the events channel is closed.
	Lines    int
	Skipped  int
	Unparsed int
}

// NewParser creates a new Parser for strace's default output format.
func NewParser(logger *zap.Logger) *Parser {
	// Matches the head of a call up to its opening parenthesis:
	//   openat(
	//   [pid  1234] openat(
	//   1234  openat(                 (strace -f -o)
	//   12:01:02.345678 openat(       (strace -t / -tt)
	//        0.000123 openat(          (strace -r, right-aligned)
	return &Parser{
		re:  regexp.MustCompile(`^\s*(?:\[pid\s+(\d+)\]\s+|(\d+)\s+)?(?:\d+(?::\d+)*(?:\.\d+)?\s+)?([A-Za-z_][A-Za-z0-9_]*)\(`),
		log: logger.Named("parser"),
	}
}

// Parse reads the trace stream and returns a channel of Events.
// It runs asynchronously; the error channel carries at most one read error.
func (p *Parser) Parse(r io.Reader) (chan model.Event, chan error) {
	events := make(chan model.Event)
	errs := make(chan error, 1) // Buffered so the reader never blocks on it

	go func() {
		defer close(events)
		defer close(errs)

		scanner := bufio.NewScanner(r)
		// Long string arguments with -s make for long lines
		buf := make([]byte, 0, 1024*1024)
		scanner.Buffer(buf, 10*1024*1024)

		for scanner.Scan() {
			p.Lines++
			line := scanner.Text()

			if skipLine(line) {
				p.Skipped++
				continue
			}

			ev, ok := p.ParseLine(line)
			if !ok {
				p.Unparsed++
				p.log.Debug("unparsed trace line", zap.Int("line", p.Lines), zap.String("text", line))
				continue
			}
			ev.Line = p.Lines
			events <- ev
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return events, errs
}

// Collect drains Parse into a slice.
func (p *Parser) Collect(r io.Reader) ([]model.Event, error) {
	events, errs := p.Parse(r)

	var all []model.Event
	for ev := range events {
		all = append(all, ev)
	}
	return all, <-errs
}

// skipLine reports lines that carry no call: blanks, exit and signal
// banners, and the halves of calls interrupted by another process.
func skipLine(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "+++") || strings.HasPrefix(s, "---") {
		return true
	}
	return strings.Contains(s, "<unfinished ...>") || strings.Contains(s, "<... ")
}

// ParseLine splits one strace line into syscall, arguments and return
// value. Line is left zero.
func (p *Parser) ParseLine(line string) (model.Event, bool) {
	m := p.re.FindStringSubmatchIndex(line)
	if m == nil {
		return model.Event{}, false
	}

	var ev model.Event
	for _, g := range []int{1, 2} {
		if m[2*g] >= 0 {
			ev.PID, _ = strconv.Atoi(line[m[2*g]:m[2*g+1]])
		}
	}
	ev.Syscall = line[m[6]:m[7]]

	args, rest, ok := splitArgs(line[m[1]:])
	if !ok {
		return model.Event{}, false
	}
	ev.Args = args

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "=") {
		return model.Event{}, false
	}
	ret := strings.Fields(rest[1:])
	if len(ret) == 0 {
		return model.Event{}, false
	}
	ev.Ret = ret[0]
	return ev, true
}

// splitArgs consumes an argument list whose opening parenthesis has already
// been read. Commas split arguments unless they sit inside a quoted string
// or nested parentheses; brackets and braces are not tracked, so a pipe's
// "[3, 4]" comes out as "[3" and "4]".
func splitArgs(s string) (args []string, rest string, ok bool) {
	depth := 0
	inQuote := false
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}

		switch c {
		case '"':
			inQuote = true
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
				continue
			}
			if arg := strings.TrimSpace(s[start:i]); arg != "" || len(args) > 0 {
				args = append(args, arg)
			}
			return args, s[i+1:], true
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return nil, "", false
}
