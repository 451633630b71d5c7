package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with a component name that is attached to every entry.
type Logger struct {
	*slog.Logger
	// root carries every attribute except the component.
	root      *slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// Format is "text" or "json". Empty means text.
	Format string
	Output io.Writer
	// Handler, when set, replaces the handler built from Level, Format and Output.
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Format:    "text",
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.Format == "json" {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return newLogger(slog.New(handler), component)
}

func newLogger(root *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    root.With(FieldComponent, component),
		root:      root,
		component: component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.root.With(args...), l.component)
}

// WithFields returns a new logger carrying the given fields.
func (l *Logger) WithFields(fields LogFields) *Logger {
	return l.With(fields.ToSlice()...)
}

// WithComponent returns a logger for a sub-component that keeps the parent's
// other attributes.
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.root, component)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// SetDefault makes logger the process-wide slog default, so packages that log
// through slog directly share its handler and level.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
