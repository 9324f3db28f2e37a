package pgmlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type counter struct {
	sum    float64
	max    float64
	intSum int
}

// Sink is the logger interface external component implementations see
// (spec.md §6's "Logger interface (called throughout)").
type Sink interface {
	Log(event Event)
	LogValue(event Event, v float64)
	LogCount(event Event, v int)
}

// Logger is the hierarchical counter/max/sum store from spec.md §3 and §5:
// event -> {sum, max, int-sum}. Callers obtain a private Child() for each
// thread/goroutine of work; the child accumulates without any locking, and
// Merge folds it back into the parent under a mutex when the unit of work
// finishes — mirroring "the child accumulates privately; on drop it
// acquires a mutex on the parent and merges".
type Logger struct {
	mu       sync.Mutex
	counters map[Event]*counter
	diag     zerolog.Logger
}

var _ Sink = (*Logger)(nil)

// New creates a root Logger that also emits human-readable diagnostic lines
// via zerolog, the way the teacher's analyses fmt.Printf progress messages —
// routed through a real structured-logging library per the ambient-stack
// rule rather than ad-hoc Printf calls.
func New() *Logger {
	return &Logger{
		counters: make(map[Event]*counter),
		diag:     zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
	}
}

// Child returns a new, independent Logger sharing this Logger's diagnostic
// sink configuration but with its own empty counters, safe to accumulate
// into without synchronizing with the parent until Merge is called.
func (l *Logger) Child() *Logger {
	return &Logger{
		counters: make(map[Event]*counter),
		diag:     l.diag,
	}
}

func (l *Logger) get(event Event) *counter {
	c, ok := l.counters[event]
	if !ok {
		c = &counter{}
		l.counters[event] = c
	}
	return c
}

// Log records a bare occurrence of event (sum += 1).
func (l *Logger) Log(event Event) { l.LogValue(event, 1) }

// LogValue accumulates a timing/measurement sample for event: sum += v,
// max = max(max, v).
func (l *Logger) LogValue(event Event, v float64) {
	c := l.get(event)
	c.sum += v
	if v > c.max {
		c.max = v
	}
}

// LogCount accumulates an integer counter sample for event.
func (l *Logger) LogCount(event Event, v int) {
	c := l.get(event)
	c.intSum += v
	if float64(v) > c.max {
		c.max = float64(v)
	}
}

// Sum returns the accumulated sum for event.
func (l *Logger) Sum(event Event) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.counters[event]; ok {
		return c.sum
	}
	return 0
}

// Max returns the accumulated max for event.
func (l *Logger) Max(event Event) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.counters[event]; ok {
		return c.max
	}
	return 0
}

// IntSum returns the accumulated integer sum for event.
func (l *Logger) IntSum(event Event) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.counters[event]; ok {
		return c.intSum
	}
	return 0
}

// Merge folds child's counters into l: sum and int-sum add, max takes the
// larger of the two. Callers must not use child after Merge (it models
// "on drop it acquires a mutex on the parent and merges").
func (l *Logger) Merge(child *Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for event, c := range child.counters {
		dst := l.get(event)
		dst.sum += c.sum
		dst.intSum += c.intSum
		if c.max > dst.max {
			dst.max = c.max
		}
	}
}

// Warn emits a human-readable diagnostic line at warn level, for the
// fallback-path moments the teacher prints at (gmin stepping, source
// stepping, iteration divergence).
func (l *Logger) Warn(msg string, kv map[string]any) {
	ev := l.diag.Warn()
	for k, v := range kv {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Info emits a human-readable diagnostic line at info level.
func (l *Logger) Info(msg string, kv map[string]any) {
	ev := l.diag.Info()
	for k, v := range kv {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
