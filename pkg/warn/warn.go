// Package warn carries rate-limited, human-readable warnings from the scan
// pipeline to whatever emits them.
package warn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultFirst is how many occurrences of a condition are reported verbatim
// before throttling starts.
const DefaultFirst = 5

// Sink receives warnings that passed rate limiting.
type Sink interface {
	Warn(msg string)
}

// SlogSink emits warnings through a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Warn(msg string) {
	s.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg)
}

// Discard drops every warning.
var Discard Sink = discard{}

type discard struct{}

func (discard) Warn(string) {}

// Collector keeps warnings in memory.
type Collector struct {
	mu       sync.Mutex
	messages []string
}

func (c *Collector) Warn(msg string) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Messages returns a copy of the collected warnings.
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of collected warnings.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Throttle decides whether the count-th occurrence of a condition should be
// reported. The first N occurrences are reported, after that only the
// occurrence that reaches the current threshold, and the threshold doubles
// each time it is crossed.
type Throttle struct {
	first int
	next  int
}

// NewThrottle returns a Throttle reporting the first n occurrences.
func NewThrottle(first int) *Throttle {
	if first < 1 {
		first = 1
	}
	return &Throttle{first: first, next: first * 2}
}

// ShouldEmit reports whether occurrence number count (1-based) is reported.
func (t *Throttle) ShouldEmit(count int) bool {
	if count <= t.first {
		return true
	}
	if count < t.next {
		return false
	}
	for t.next <= count {
		t.next *= 2
	}
	return true
}

// Counter pairs an occurrence count with a Throttle.
type Counter struct {
	Count    int
	throttle *Throttle
}

// NewCounter returns a Counter that reports the first n occurrences.
func NewCounter(first int) *Counter {
	return &Counter{throttle: NewThrottle(first)}
}

// Hit records one occurrence and emits msg through sink if the throttle allows.
// Suppressed occurrences are mentioned in the next emitted message.
func (c *Counter) Hit(sink Sink, format string, args ...any) {
	c.Count++
	if !c.throttle.ShouldEmit(c.Count) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c.Count > c.throttle.first {
		msg = fmt.Sprintf("%s (occurrence %d)", msg, c.Count)
	}
	sink.Warn(msg)
}

// Interval reports the first N occurrences, then every Mth.
type Interval struct {
	Count     int
	sometimes rate.Sometimes
}

// NewInterval returns an Interval reporting the first n occurrences and then
// one in every occurrences.
func NewInterval(first, every int) *Interval {
	return &Interval{sometimes: rate.Sometimes{First: first, Every: every}}
}

// Hit records one occurrence and emits msg if it falls on a reporting slot.
func (iv *Interval) Hit(sink Sink, format string, args ...any) {
	iv.Count++
	count := iv.Count
	iv.sometimes.Do(func() {
		msg := fmt.Sprintf(format, args...)
		if count > iv.sometimes.First {
			msg = fmt.Sprintf("%s (%d occurrences so far)", msg, count)
		}
		sink.Warn(msg)
	})
}
