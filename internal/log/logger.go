// Package log is the structured logging layer shared by the server, the
// snapshot worker and the command-line tools. Every record carries the
// component that emitted it (http, projection, worker, ...) so one stream
// can be filtered per subsystem.
package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger bound to a component. The component attribute is
// attached once; switching component replaces it instead of repeating it.
type Logger struct {
	*slog.Logger
	// base is the logger without the component attribute.
	base      *slog.Logger
	component string
}

// Config selects the handler and the component of a new Logger. Level is
// only used when Handler is nil.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig logs text at info level to stdout for the app component.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
}

// NewText creates a text logger for a component at the given level and makes
// it the process default, so packages logging through slog directly share
// its level.
func NewText(component string, level slog.Level) *Logger {
	l := New(Config{
		Level:     level,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})
	SetDefault(l)
	return l
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return bind(slog.New(handler), config.Component)
}

func bind(base *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// With returns a logger carrying args on every record, same component.
func (l *Logger) With(args ...any) *Logger {
	return bind(l.base.With(args...), l.component)
}

// WithComponent returns a logger for another component, keeping the other
// attributes added so far.
func (l *Logger) WithComponent(component string) *Logger {
	return bind(l.base, component)
}

// SetDefault makes logger the slog default, component attribute included.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

func (l *Logger) Component() string {
	return l.component
}
