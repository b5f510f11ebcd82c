// Package logx provides the leveled, ANSI-colored logger used throughout
// Guillotine (spec.md §7: "a single line via a leveled logger
// (Verbose/Info/Debug/Warn/Error) with ANSI-colored severity").
//
// Grounded on the teacher's internal/logger/color_text_handler.go, which
// wraps slog.TextHandler to inject an ANSI color code per level. This
// extends that technique with one custom level, Verbose, one notch below
// slog's built-in Debug, since slog ships only Debug/Info/Warn/Error.
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LevelVerbose sits below slog.LevelDebug (-4), matching slog's convention
// of spacing built-in levels 4 apart so custom levels can be inserted.
const LevelVerbose = slog.LevelDebug - 4

// Logger wraps *slog.Logger with a Verbose helper; every other level is the
// embedded slog.Logger's method of the same name.
type Logger struct {
	*slog.Logger
}

// Verbose logs at LevelVerbose.
func (l *Logger) Verbose(msg string, args ...any) {
	l.Log(context.Background(), LevelVerbose, msg, args...)
}

// New builds a Logger writing colored text to w at the given minimum level.
func New(w io.Writer, minLevel slog.Level) *Logger {
	h := newColorTextHandler(w, &slog.HandlerOptions{Level: minLevel}, true)
	return &Logger{Logger: slog.New(h)}
}

// Default returns a Logger writing to stderr at Info level.
func Default() *Logger { return New(os.Stderr, slog.LevelInfo) }

// colorTextHandler wraps slog.TextHandler to add ANSI color codes per level,
// the same technique as the teacher's ColorTextHandler. The colored level
// label is written straight to w ahead of the TextHandler's line, since the
// TextHandler would quote and escape the codes if they were in the message.
type colorTextHandler struct {
	*slog.TextHandler
	w io.Writer
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *colorTextHandler {
	return &colorTextHandler{TextHandler: slog.NewTextHandler(w, opts), w: w}
}

func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var colorCode string
	levelName := r.Level.String()
	switch {
	case r.Level <= LevelVerbose:
		colorCode = "\033[90m" // Bright black / gray
		levelName = "VERBOSE"
	case r.Level <= slog.LevelDebug:
		colorCode = "\033[36m" // Cyan
	case r.Level <= slog.LevelInfo:
		colorCode = "\033[32m" // Green
	case r.Level <= slog.LevelWarn:
		colorCode = "\033[33m" // Yellow
	default:
		colorCode = "\033[31m" // Red
	}
	if _, err := io.WriteString(h.w, colorCode+levelName+"\033[0m  "); err != nil {
		return err
	}
	return h.TextHandler.Handle(ctx, r)
}
