package model

// Event represents a single parsed line of syscall trace output.
type Event struct {
	Line    int      // Line number in the trace (1-based)
	PID     int      // Process ID prefix, 0 when the trace has none
	Syscall string   // e.g. "openat"
	Args    []string // Raw comma-split arguments, quotes and escapes intact
	Ret     string   // Raw return value, e.g. "3", "-1", "?"
}

// Action is the kind of a descriptor observation.
type Action string

const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
	ActionRead  Action = "READ"
	ActionWrite Action = "WRITE"
)

// Observation records one descriptor fact derived from an event.
type Observation struct {
	Line     int    `json:"line"`
	Action   Action `json:"action"`
	FD       int    `json:"fd"`
	Resource string `json:"resource"` // Canonical path or a placeholder like "<pipe>"
}

func (o Observation) String() string {
	return string(o.Action) + "\t" + o.Resource
}
