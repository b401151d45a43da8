package timer

import (
	"time"

	"github.com/rs/zerolog"
)

// Track returns a function that, when executed, logs the duration at debug level.
// Usage: defer timer.Track(log, "FunctionName")()
func Track(log zerolog.Logger, name string) func() {
	start := time.Now()
	return func() {
		log.Debug().Str("op", name).Dur("took", time.Since(start)).Msg("timing")
	}
}

// Stopwatch is useful for measuring multiple steps within one function.
type Stopwatch struct {
	log   zerolog.Logger
	start time.Time
	last  time.Time
}

// NewStopwatch starts the clock.
func NewStopwatch(log zerolog.Logger) *Stopwatch {
	now := time.Now()
	return &Stopwatch{log: log, start: now, last: now}
}

// Lap logs the time taken since the last Lap call.
func (s *Stopwatch) Lap(step string) time.Duration {
	now := time.Now()
	elapsed := now.Sub(s.last)
	s.last = now
	s.log.Debug().Str("step", step).Dur("took", elapsed).Dur("total", now.Sub(s.start)).Msg("timing")
	return elapsed
}

// Total logs the total time since the stopwatch started.
func (s *Stopwatch) Total(name string) time.Duration {
	total := time.Since(s.start)
	s.log.Debug().Str("op", name).Dur("total", total).Msg("timing")
	return total
}
