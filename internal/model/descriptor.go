package model

import "strings"

// Perm classifies how a file was opened.
type Perm int

const (
	PermRead Perm = iota
	PermWrite
)

func (p Perm) String() string {
	if p == PermWrite {
		return "Write"
	}
	return "Read"
}

// MarshalText renders the permission as "Read" or "Write".
func (p Perm) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePerm derives a permission from an open-flags string such as
// "O_WRONLY|O_CREAT|O_TRUNC". Anything without a write access mode is Read.
func ParsePerm(flags string) Perm {
	for _, f := range strings.Split(flags, "|") {
		switch strings.TrimSpace(f) {
		case "O_WRONLY", "O_RDWR":
			return PermWrite
		}
	}
	return PermRead
}

// Stream identifies one of the three standard streams.
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	}
	return "stream"
}

// Description is what a live descriptor id refers to.
// The concrete types are RegularFile, StdStream, PipeEnd, Socket and Other.
type Description interface {
	// Name is the resource name used in observations.
	Name() string
	description()
}

// RegularFile is a descriptor opened on a filesystem path.
type RegularFile struct {
	Path  string // Absolute, canonical
	Flags string // Raw open flags text
}

func (f RegularFile) Name() string { return f.Path }

// Perm is fixed at open time from the flags.
func (f RegularFile) Perm() Perm { return ParsePerm(f.Flags) }

// StdStream is one of the descriptors every process starts with.
type StdStream struct {
	Stream Stream
}

func (s StdStream) Name() string { return "<" + s.Stream.String() + ">" }

// PipeEnd is one end of a pipe; Flags is O_RDONLY for the read end and
// O_WRONLY for the write end.
type PipeEnd struct {
	Flags string
}

func (PipeEnd) Name() string { return "<pipe>" }

// Socket is an opaque socket descriptor.
type Socket struct{}

func (Socket) Name() string { return "<socket>" }

// Other covers descriptors we know exist but do not classify.
type Other struct{}

func (Other) Name() string { return "<unknown>" }

func (RegularFile) description() {}
func (StdStream) description()   {}
func (PipeEnd) description()     {}
func (Socket) description()      {}
func (Other) description()       {}

// Kind returns a short label for a description, used in JSON and stats.
func Kind(d Description) string {
	switch d.(type) {
	case RegularFile:
		return "file"
	case StdStream:
		return "stdio"
	case PipeEnd:
		return "pipe"
	case Socket:
		return "socket"
	case Other:
		return "other"
	}
	return "other"
}
