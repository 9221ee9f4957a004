// Package logger builds the agent's slog loggers: colored text for
// terminals and pod logs, or JSON when LOG_FORMAT=json.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBold   = "\033[1m"
)

// levelStyle is the padded label and color of one severity.
type levelStyle struct {
	label string
	color string
}

var levelStyles = map[slog.Level]levelStyle{
	slog.LevelDebug: {"DEBUG", ansiCyan},
	slog.LevelInfo:  {"INFO ", ansiBlue},
	slog.LevelWarn:  {"WARN ", ansiYellow},
	slog.LevelError: {"ERROR", ansiRed + ansiBold},
}

// New returns a logger writing to stderr at level. stdout is left to
// command output.
//
// NO_COLOR or LOG_COLOR=false|0 turn colors off.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(&textHandler{
		out:   &lockedWriter{w: w},
		level: lvl,
		color: colorEnabled(),
	})
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(os.Getenv("LOG_COLOR")) {
	case "false", "0":
		return false
	}
	return true
}

// lockedWriter serializes whole lines from every handler sharing it.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) writeLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, s)
	return err
}

// textHandler renders one line per record:
//
//	2006-01-02 15:04:05 INFO  message key=value group.key=value
//
// Attributes bound through WithAttrs are rendered once, when bound, and
// prefixed with the groups open at that point.
type textHandler struct {
	out    *lockedWriter
	level  slog.Level
	color  bool
	bound  string
	prefix string
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	h.paint(&b, ansiGray, r.Time.Format(timeLayout))
	b.WriteByte(' ')

	style, ok := levelStyles[r.Level]
	if !ok {
		style = levelStyle{label: r.Level.String()}
	}
	h.paint(&b, style.color, style.label)
	b.WriteByte(' ')
	b.WriteString(r.Message)

	b.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	return h.out.writeLine(b.String())
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.bound)
	for _, a := range attrs {
		h.writeAttr(&b, h.prefix, a)
	}
	next := *h
	next.bound = b.String()
	return &next
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// writeAttr writes " prefix.key=value", flattening group values.
func (h *textHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, prefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	h.paint(b, ansiGray, prefix+a.Key+"="+a.Value.String())
}

func (h *textHandler) paint(b *strings.Builder, color, s string) {
	if h.color && color != "" {
		b.WriteString(color)
		b.WriteString(s)
		b.WriteString(ansiReset)
		return
	}
	b.WriteString(s)
}
