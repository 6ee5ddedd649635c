package messages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives human-readable progress lines.
type Sink interface {
	Emit(level slog.Level, msg string)
}

// SinkFunc adapts a function to the [Sink] interface.
type SinkFunc func(level slog.Level, msg string)

// Emit implements [Sink].
func (f SinkFunc) Emit(level slog.Level, msg string) {
	f(level, msg)
}

// Discard is a [Sink] that drops every line.
var Discard Sink = SinkFunc(func(slog.Level, string) {})

// LogSink forwards lines to a [slog.Logger].
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a [LogSink]. A nil logger uses [slog.Default].
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSink{Logger: logger}
}

// Emit implements [Sink].
func (s *LogSink) Emit(level slog.Level, msg string) {
	s.Logger.Log(context.Background(), level, msg)
}

// WriterSink writes one line per message to an [io.Writer].
type WriterSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterSink creates a [WriterSink].
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Emit implements [Sink]. Write errors are ignored.
func (s *WriterSink) Emit(_ slog.Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintln(s.w, msg)
}

// Line is a single recorded message.
type Line struct {
	Msg   string
	Level slog.Level
}

// Recorder is a [Sink] that keeps every line in memory.
type Recorder struct {
	lines []Line
	mu    sync.Mutex
}

// Emit implements [Sink].
func (r *Recorder) Emit(level slog.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, Line{Level: level, Msg: msg})
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Line(nil), r.lines...)
}

// Messages returns the recorded message texts.
func (r *Recorder) Messages() []string {
	lines := r.Lines()

	msgs := make([]string, 0, len(lines))
	for _, l := range lines {
		msgs = append(msgs, l.Msg)
	}

	return msgs
}

// Tee returns a [Sink] that emits to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(level slog.Level, msg string) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(level, msg)
			}
		}
	})
}
