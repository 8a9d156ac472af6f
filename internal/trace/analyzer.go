package trace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fdtrace/internal/model"
	"fdtrace/internal/tree"
)

// Diagnostic is a recoverable problem found on one trace line.
type Diagnostic struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// Descriptor is a closed description flattened for output.
type Descriptor struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Flags string `json:"flags,omitempty"`
	Perm  string `json:"perm,omitempty"`
}

// Stats summarises a replay.
type Stats struct {
	Events      int            `json:"events"`
	Files       int            `json:"files"`
	Written     int            `json:"written"`
	Pipes       int            `json:"pipe_ends"`
	Sockets     int            `json:"sockets"`
	Diagnostics map[string]int `json:"diagnostics"`
}

// Result contains the processed data from a trace.
type Result struct {
	Tree         *tree.Tree          `json:"tree"`
	Descriptors  []Descriptor        `json:"descriptors"`
	Observations []model.Observation `json:"observations,omitempty"`
	Diagnostics  []Diagnostic        `json:"diagnostics"`
	Ignored      []string            `json:"ignored_syscalls"`
	Stats        Stats               `json:"stats"`
}

// Analyzer replays trace events through a Tracker and aggregates the
// descriptors it closes into a tree.
type Analyzer struct {
	cwd     string
	log     *zap.Logger
	metrics *Metrics
}

// NewAnalyzer returns an analyzer resolving relative paths against cwd.
// metrics may be nil.
func NewAnalyzer(cwd string, logger *zap.Logger, metrics *Metrics) *Analyzer {
	return &Analyzer{
		cwd:     cwd,
		log:     logger.Named("analyzer"),
		metrics: metrics,
	}
}

// Analyze replays events in order. Only an unsupported trace aborts; every
// other error becomes a Diagnostic and replay moves on to the next event.
func (a *Analyzer) Analyze(events []model.Event) (Result, error) {
	r := a.newReplay()
	for _, ev := range events {
		if err := r.step(ev); err != nil {
			return Result{}, err
		}
	}
	return r.finish(), nil
}

// AnalyzeStream is Analyze over a channel, as produced by Parser.Parse.
func (a *Analyzer) AnalyzeStream(ctx context.Context, events <-chan model.Event) (Result, error) {
	r := a.newReplay()
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return r.finish(), nil
			}
			if err := r.step(ev); err != nil {
				return Result{}, err
			}
		}
	}
}

type replay struct {
	a       *Analyzer
	tracker *Tracker
	rec     *Recorder
	diags   []Diagnostic
	kinds   map[string]int
}

func (a *Analyzer) newReplay() *replay {
	rec := &Recorder{}
	obs := Observers{rec, NewLogObserver(a.log)}
	if a.metrics != nil {
		obs = append(obs, a.metrics)
	}
	return &replay{
		a:       a,
		tracker: NewTracker(a.cwd, obs),
		rec:     rec,
		kinds:   make(map[string]int),
	}
}

func (r *replay) step(ev model.Event) error {
	if r.a.metrics != nil {
		r.a.metrics.Events.Inc()
	}

	err := r.tracker.Process(ev)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupported) {
		r.a.log.Error("unsupported trace", zap.Int("line", ev.Line), zap.Error(err))
		return fmt.Errorf("line %d: %w", ev.Line, err)
	}

	kind := ErrorKind(err)
	r.a.log.Warn("replay", zap.Int("line", ev.Line), zap.String("kind", kind), zap.Error(err))
	r.diags = append(r.diags, Diagnostic{Line: ev.Line, Kind: kind, Message: err.Error()})
	r.kinds[kind]++
	if r.a.metrics != nil {
		r.a.metrics.Diagnostics.WithLabelValues(kind).Inc()
	}
	return nil
}

func (r *replay) finish() Result {
	r.tracker.CloseAll()
	closed := r.tracker.Closed()

	res := Result{
		Tree:         tree.Build(closed),
		Observations: r.rec.Observations,
		Diagnostics:  r.diags,
		Ignored:      r.tracker.Ignored(),
		Stats: Stats{
			Events:      r.tracker.Calls(),
			Diagnostics: r.kinds,
		},
	}

	for _, d := range closed {
		out := Descriptor{Kind: model.Kind(d), Name: d.Name()}
		switch d := d.(type) {
		case model.RegularFile:
			out.Flags = d.Flags
			out.Perm = d.Perm().String()
		case model.PipeEnd:
			out.Flags = d.Flags
			res.Stats.Pipes++
		case model.Socket:
			res.Stats.Sockets++
		case model.StdStream, model.Other:
		}
		res.Descriptors = append(res.Descriptors, out)
	}

	// Count distinct files as the tree sees them
	res.Tree.Walk(func(_ string, _ string, n tree.Node, _ int) bool {
		if f, ok := n.(*tree.File); ok {
			res.Stats.Files++
			if f.Perm == model.PermWrite {
				res.Stats.Written++
			}
		}
		return true
	})
	if r.a.metrics != nil {
		r.a.metrics.Files.WithLabelValues("read").Set(float64(res.Stats.Files - res.Stats.Written))
		r.a.metrics.Files.WithLabelValues("write").Set(float64(res.Stats.Written))
	}

	r.a.log.Info("replay finished",
		zap.Int("events", res.Stats.Events),
		zap.Int("files", res.Stats.Files),
		zap.Int("diagnostics", len(res.Diagnostics)),
	)
	return res
}
