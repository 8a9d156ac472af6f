package trace

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"fdtrace/internal/model"
)

// atFDCWD is the only openat dirfd we can resolve without tracking cwd
// changes per descriptor.
const atFDCWD = "AT_FDCWD"

// Tracker replays syscall events against a descriptor table.
//
// A description is either live in the table or in the closed list, never
// both. Descriptors still open when the trace ends are moved over by
// CloseAll, which models the implicit close at process exit.
type Tracker struct {
	cwd     string
	obs     Observer
	open    map[int]model.Description
	closed  []model.Description
	ignored map[string]int
	calls   int
}

// NewTracker returns a tracker with the three standard streams open.
// Relative paths are resolved against cwd. obs may be nil.
func NewTracker(cwd string, obs Observer) *Tracker {
	if obs == nil {
		obs = Observers(nil)
	}
	if cwd == "" {
		cwd = "/"
	}
	return &Tracker{
		cwd: cwd,
		obs: obs,
		open: map[int]model.Description{
			0: model.StdStream{Stream: model.Stdin},
			1: model.StdStream{Stream: model.Stdout},
			2: model.StdStream{Stream: model.Stderr},
		},
		ignored: make(map[string]int),
	}
}

// Process applies one event. The returned error is never fatal unless it
// matches ErrUnsupported; the table is left as far as the event got.
func (t *Tracker) Process(ev model.Event) error {
	t.calls++

	switch ev.Syscall {
	case "open", "openat":
		return t.processOpen(ev)
	case "close":
		return t.processClose(ev)
	case "read":
		return t.processAccess(ev, model.ActionRead)
	case "write":
		return t.processAccess(ev, model.ActionWrite)
	case "pipe", "pipe2":
		return t.processPipe(ev)
	case "socket":
		return t.processSocket(ev)
	}

	t.ignored[ev.Syscall]++
	return nil
}

func (t *Tracker) processOpen(ev model.Event) error {
	args := ev.Args
	cwd := t.cwd
	if ev.Syscall == "openat" {
		if len(args) < 3 {
			return &ShapeError{Syscall: ev.Syscall, Want: 3, Got: len(args)}
		}
		dirfd, dir := undecorate(args[0])
		if dirfd != atFDCWD {
			return &UnsupportedError{Syscall: ev.Syscall, Reason: "dirfd " + strings.TrimSpace(args[0]) + " is not " + atFDCWD}
		}
		// strace -y prints the process's working directory as AT_FDCWD</home/u>
		if strings.HasPrefix(dir, "/") {
			cwd = dir
		}
		args = args[1:]
	} else if len(args) < 2 {
		return &ShapeError{Syscall: ev.Syscall, Want: 2, Got: len(args)}
	}

	fd, err := parseInt(ev.Syscall, "return value", ev.Ret)
	if err != nil {
		return err
	}
	if fd < 0 {
		return nil
	}

	return t.register(ev, fd, model.RegularFile{
		Path:  CanonicalPath(args[0], cwd),
		Flags: strings.TrimSpace(args[1]),
	})
}

func (t *Tracker) processClose(ev model.Event) error {
	if len(ev.Args) < 1 {
		return &ShapeError{Syscall: ev.Syscall, Want: 1, Got: 0}
	}
	fd, err := parseInt(ev.Syscall, "fd", ev.Args[0])
	if err != nil {
		return err
	}
	ret, err := parseInt(ev.Syscall, "return value", ev.Ret)
	if err != nil {
		return err
	}
	if ret != 0 {
		return nil
	}

	desc, ok := t.open[fd]
	if !ok {
		return &ConsistencyError{Syscall: ev.Syscall, FD: fd, Kind: ErrNotOpen}
	}
	delete(t.open, fd)
	t.closed = append(t.closed, desc)
	t.observe(ev.Line, model.ActionClose, fd, desc)
	return nil
}

// processAccess only observes. Permission stays what the open flags said.
func (t *Tracker) processAccess(ev model.Event, action model.Action) error {
	if len(ev.Args) < 1 {
		return &ShapeError{Syscall: ev.Syscall, Want: 1, Got: 0}
	}
	fd, err := parseInt(ev.Syscall, "fd", ev.Args[0])
	if err != nil {
		return err
	}
	desc, ok := t.open[fd]
	if !ok {
		return &ConsistencyError{Syscall: ev.Syscall, FD: fd, Kind: ErrNotOpen}
	}
	t.observe(ev.Line, action, fd, desc)
	return nil
}

func (t *Tracker) processPipe(ev model.Event) error {
	if len(ev.Args) < 2 {
		return &ShapeError{Syscall: ev.Syscall, Want: 2, Got: len(ev.Args)}
	}
	ret, err := parseInt(ev.Syscall, "return value", ev.Ret)
	if err != nil {
		return err
	}
	if ret < 0 {
		return nil
	}
	rfd, err := parseInt(ev.Syscall, "read fd", strings.TrimLeft(strings.TrimSpace(ev.Args[0]), "["))
	if err != nil {
		return err
	}
	wfd, err := parseInt(ev.Syscall, "write fd", strings.TrimRight(strings.TrimSpace(ev.Args[1]), "]"))
	if err != nil {
		return err
	}

	return errors.Join(
		t.register(ev, rfd, model.PipeEnd{Flags: "O_RDONLY"}),
		t.register(ev, wfd, model.PipeEnd{Flags: "O_WRONLY"}),
	)
}

func (t *Tracker) processSocket(ev model.Event) error {
	if len(ev.Args) < 3 {
		return &ShapeError{Syscall: ev.Syscall, Want: 3, Got: len(ev.Args)}
	}
	fd, err := parseInt(ev.Syscall, "return value", ev.Ret)
	if err != nil {
		return err
	}
	if fd < 0 {
		return nil
	}
	return t.register(ev, fd, model.Socket{})
}

// register puts desc at fd. A live description at fd is moved to the
// closed list and reported as a conflict; desc is registered regardless.
func (t *Tracker) register(ev model.Event, fd int, desc model.Description) error {
	var err error
	if prev, ok := t.open[fd]; ok {
		t.closed = append(t.closed, prev)
		err = &ConsistencyError{Syscall: ev.Syscall, FD: fd, Kind: ErrConflict, Prev: prev.Name()}
	}
	t.open[fd] = desc
	t.observe(ev.Line, model.ActionOpen, fd, desc)
	return err
}

func (t *Tracker) observe(line int, action model.Action, fd int, desc model.Description) {
	t.obs.Observe(model.Observation{
		Line:     line,
		Action:   action,
		FD:       fd,
		Resource: desc.Name(),
	})
}

// CloseAll flushes every open descriptor into the closed list in fd order.
func (t *Tracker) CloseAll() {
	for _, fd := range t.OpenFDs() {
		t.closed = append(t.closed, t.open[fd])
		delete(t.open, fd)
	}
}

// OpenFDs returns the live descriptor ids in ascending order.
func (t *Tracker) OpenFDs() []int {
	fds := make([]int, 0, len(t.open))
	for fd := range t.open {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}

// Lookup returns the live description at fd.
func (t *Tracker) Lookup(fd int) (model.Description, bool) {
	d, ok := t.open[fd]
	return d, ok
}

// Closed returns the descriptions that have left the table, in close order.
func (t *Tracker) Closed() []model.Description {
	return t.closed
}

// Ignored returns the syscalls the tracker does not model, sorted.
func (t *Tracker) Ignored() []string {
	names := make([]string, 0, len(t.ignored))
	for name := range t.ignored {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calls is the number of events processed.
func (t *Tracker) Calls() int { return t.calls }

// undecorate splits an strace -y token such as "3</etc/passwd>" or
// "AT_FDCWD</home/u>" into the bare token and the path in angle brackets.
func undecorate(raw string) (token, path string) {
	s := strings.TrimSpace(raw)
	i := strings.IndexByte(s, '<')
	if i <= 0 || !strings.HasSuffix(s, ">") {
		return s, ""
	}
	return s[:i], s[i+1 : len(s)-1]
}

// parseInt reads a decimal descriptor or return value. Only the first
// token counts, so "-1 ENOENT (...)" reads as -1, and strace -y decorations
// such as "3</etc/passwd>" are stripped.
func parseInt(syscall, field, raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	if i := strings.IndexByte(s, '<'); i > 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldError{Syscall: syscall, Field: field, Value: raw, Err: err}
	}
	return n, nil
}
