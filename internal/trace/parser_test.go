package trace

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"fdtrace/internal/model"
)

func TestParseLine(t *testing.T) {
	p := NewParser(zap.NewNop())

	tests := []struct {
		line string
		want model.Event
	}{
		{
			`openat(AT_FDCWD, "/etc/ld.so.cache", O_RDONLY|O_CLOEXEC) = 3`,
			model.Event{Syscall: "openat", Args: []string{"AT_FDCWD", `"/etc/ld.so.cache"`, "O_RDONLY|O_CLOEXEC"}, Ret: "3"},
		},
		{
			`openat(AT_FDCWD, "/nope", O_RDONLY) = -1 ENOENT (No such file or directory)`,
			model.Event{Syscall: "openat", Args: []string{"AT_FDCWD", `"/nope"`, "O_RDONLY"}, Ret: "-1"},
		},
		{
			`write(1, "a, b) = c\n", 10) = 10`,
			model.Event{Syscall: "write", Args: []string{"1", `"a, b) = c\n"`, "10"}, Ret: "10"},
		},
		{
			`pipe2([3, 4], O_CLOEXEC) = 0`,
			model.Event{Syscall: "pipe2", Args: []string{"[3", "4]", "O_CLOEXEC"}, Ret: "0"},
		},
		{
			`[pid  4242] close(3) = 0`,
			model.Event{PID: 4242, Syscall: "close", Args: []string{"3"}, Ret: "0"},
		},
		{
			`4242  close(3)                          = 0`,
			model.Event{PID: 4242, Syscall: "close", Args: []string{"3"}, Ret: "0"},
		},
		{
			`12:01:02.345678 getpid() = 99`,
			model.Event{Syscall: "getpid", Ret: "99"},
		},
		{
			`     0.000123 openat(AT_FDCWD, "/etc/hosts", O_RDONLY) = 3`,
			model.Event{Syscall: "openat", Args: []string{"AT_FDCWD", `"/etc/hosts"`, "O_RDONLY"}, Ret: "3"},
		},
		{
			`4242       0.000045 close(3) = 0`,
			model.Event{PID: 4242, Syscall: "close", Args: []string{"3"}, Ret: "0"},
		},
		{
			`fstat(3, {st_mode=S_IFCHR|0620, st_rdev=makedev(0x88, 0x1), ...}) = 0`,
			model.Event{Syscall: "fstat", Args: []string{"3", "{st_mode=S_IFCHR|0620", "st_rdev=makedev(0x88, 0x1)", "...}"}, Ret: "0"},
		},
		{
			`read(3, "\177ELF\2\1\1"..., 832) = 832`,
			model.Event{Syscall: "read", Args: []string{"3", `"\177ELF\2\1\1"...`, "832"}, Ret: "832"},
		},
		{
			`exit_group(0) = ?`,
			model.Event{Syscall: "exit_group", Args: []string{"0"}, Ret: "?"},
		},
	}

	for _, tt := range tests {
		got, ok := p.ParseLine(tt.line)
		if !ok {
			t.Errorf("ParseLine(%q) failed", tt.line)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseLine(%q)\n got %#v\nwant %#v", tt.line, got, tt.want)
		}
	}
}

func TestParseLineRejects(t *testing.T) {
	p := NewParser(zap.NewNop())
	for _, line := range []string{
		"strace: Process 1234 attached",
		`openat(AT_FDCWD, "/etc"`,
		`close(3)`,
	} {
		if ev, ok := p.ParseLine(line); ok {
			t.Errorf("ParseLine(%q) = %#v, want failure", line, ev)
		}
	}
}

func TestParseStream(t *testing.T) {
	input := strings.Join([]string{
		`execve("/bin/true", ["true"], 0x7ffd /* 20 vars */) = 0`,
		``,
		`openat(AT_FDCWD, "/etc/ld.so.cache", O_RDONLY|O_CLOEXEC) = 3`,
		`--- SIGCHLD {si_signo=SIGCHLD, si_code=CLD_EXITED} ---`,
		`[pid 7] read(3, <unfinished ...>`,
		`[pid 7] <... read resumed>"", 10) = 0`,
		`strace: Process 7 detached`,
		`close(3) = 0`,
		`+++ exited with 0 +++`,
	}, "\n")

	p := NewParser(zap.NewNop())
	events, err := p.Collect(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, ev := range events {
		got = append(got, ev.Syscall)
	}
	if !reflect.DeepEqual(got, []string{"execve", "openat", "close"}) {
		t.Fatalf("syscalls = %v", got)
	}
	if events[1].Line != 3 || events[2].Line != 8 {
		t.Fatalf("line numbers = %d, %d", events[1].Line, events[2].Line)
	}
	if p.Lines != 9 || p.Skipped != 5 || p.Unparsed != 1 {
		t.Fatalf("counters lines=%d skipped=%d unparsed=%d", p.Lines, p.Skipped, p.Unparsed)
	}
}
