package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/beamline-core/internal/infrastructure/config"
)

// Logger is the slog logger handed to every package through SetLogger.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds the logger for one run against beamline. Records carry
// service and version, plus beamline when it is not empty.
func New(cfg config.LoggingConfig, version, beamline string) *Logger {
	return newWithWriter(writerFor(cfg.Output), cfg, version, beamline)
}

func newWithWriter(w io.Writer, cfg config.LoggingConfig, version, beamline string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", "beamline"),
		slog.String("version", version),
	}
	if beamline != "" {
		attrs = append(attrs, slog.String("beamline", beamline))
	}
	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel accepts slog's level names plus "warning". Anything else is
// info.
func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// With returns a Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags records with the subsystem that wrote them, e.g. "mqtt"
// or "audit".
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the logger used before config.yaml has been read: JSON at
// info level on stdout, with no beamline.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev", "")
}
