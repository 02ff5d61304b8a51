// Package nexuslog implements types.Logger on top of zerolog, giving the
// scheduler and CLI one structured, leveled logger with an optional task
// and host context baked in.
package nexuslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/nexus-automation/nexus/pkg/types"
)

// Logger wraps a zerolog.Logger to satisfy types.Logger.
type Logger struct {
	z zerolog.Logger
}

// Options configures a new Logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Pretty enables zerolog's human-readable console writer instead of
	// raw JSON lines; intended for interactive terminal use only.
	Pretty bool
	// Writer overrides the output destination; defaults to os.Stderr.
	Writer io.Writer
}

// New builds a Logger from Options.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	level := zerolog.InfoLevel
	switch opts.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

// With returns a child Logger annotated with play/task/host context,
// propagated onto every subsequent log line.
func (l *Logger) With(play, task, host string) *Logger {
	ctx := l.z.With()
	if play != "" {
		ctx = ctx.Str("play", play)
	}
	if task != "" {
		ctx = ctx.Str("task", task)
	}
	if host != "" {
		ctx = ctx.Str("host", host)
	}
	return &Logger{z: ctx.Logger()}
}

func withFields(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	return e
}

// Debug implements types.Logger.
func (l *Logger) Debug(msg string, fields ...interface{}) {
	withFields(l.z.Debug(), fields).Msg(msg)
}

// Info implements types.Logger.
func (l *Logger) Info(msg string, fields ...interface{}) {
	withFields(l.z.Info(), fields).Msg(msg)
}

// Warn implements types.Logger.
func (l *Logger) Warn(msg string, fields ...interface{}) {
	withFields(l.z.Warn(), fields).Msg(msg)
}

// Error implements types.Logger.
func (l *Logger) Error(msg string, fields ...interface{}) {
	withFields(l.z.Error(), fields).Msg(msg)
}

var _ types.Logger = (*Logger)(nil)

// EventCallback returns a types.EventCallback that logs each scheduler
// event at a level derived from its EventType.
func (l *Logger) EventCallback() types.EventCallback {
	return func(ev types.Event) {
		fields := []interface{}{"play", ev.Play, "task", ev.Task, "host", ev.Host}
		switch ev.Type {
		case types.EventTaskFailed, types.EventHostFailed, types.EventHostUnreachable, types.EventError:
			if ev.Error != nil {
				fields = append(fields, "error", ev.Error.Error())
			}
			l.Error(string(ev.Type), fields...)
		case types.EventHostSkipped:
			l.Debug(string(ev.Type), fields...)
		default:
			l.Info(string(ev.Type), fields...)
		}
	}
}
