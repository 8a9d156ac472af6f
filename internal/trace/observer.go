package trace

import (
	"go.uber.org/zap"

	"fdtrace/internal/model"
)

// Observer receives descriptor observations in event order.
type Observer interface {
	Observe(obs model.Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(obs model.Observation)

func (f ObserverFunc) Observe(obs model.Observation) { f(obs) }

// Observers fans an observation out to several observers.
type Observers []Observer

func (list Observers) Observe(obs model.Observation) {
	for _, o := range list {
		o.Observe(obs)
	}
}

// LogObserver writes each observation to a zap logger at debug level.
type LogObserver struct {
	log *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{log: logger.Named("observe")}
}

func (l *LogObserver) Observe(obs model.Observation) {
	l.log.Debug(obs.String(),
		zap.Int("line", obs.Line),
		zap.Int("fd", obs.FD),
	)
}

// Recorder keeps every observation in memory.
type Recorder struct {
	Observations []model.Observation
}

func (r *Recorder) Observe(obs model.Observation) {
	r.Observations = append(r.Observations, obs)
}
