package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	min   Level
	color bool
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger
}

// NewLogger creates a new Logger writing to stdout/stderr at info level.
// ANSI colours are only used when stdout is a terminal.
func NewLogger() *Logger {
	return NewLoggerLevel(LevelInfo)
}

// NewLoggerLevel creates a Logger that drops messages below min.
func NewLoggerLevel(min Level) *Logger {
	fd := os.Stdout.Fd()
	color := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return newLogger(os.Stdout, os.Stderr, min, color)
}

// NewWriterLogger logs everything to w without colours. Used by tests.
func NewWriterLogger(w io.Writer, min Level) *Logger {
	return newLogger(w, w, min, false)
}

func newLogger(out, errOut io.Writer, min Level, color bool) *Logger {
	flags := 0
	return &Logger{
		min:   min,
		color: color,
		info:  log.New(out, "", flags),
		warn:  log.New(out, "", flags),
		err:   log.New(errOut, "", flags),
		debug: log.New(out, "", flags),
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) tag(name, ansi string) string {
	if !l.color {
		return fmt.Sprintf("%-5s", name)
	}
	return fmt.Sprintf("\033[%sm%-5s\033[0m", ansi, name)
}

// emit is a no-op on a nil Logger so optional loggers need no guards.
func (l *Logger) emit(lvl Level, name, ansi, format string, args ...any) {
	if l == nil || lvl < l.min {
		return
	}
	var dst *log.Logger
	switch lvl {
	case LevelDebug:
		dst = l.debug
	case LevelWarn:
		dst = l.warn
	case LevelError:
		dst = l.err
	default:
		dst = l.info
	}
	dst.Printf("[%s] %s %s", l.timestamp(), l.tag(name, ansi), fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelInfo, "INFO", "32", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelWarn, "WARN", "33", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelError, "ERROR", "31", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.emit(LevelDebug, "DEBUG", "36", format, args...)
}
