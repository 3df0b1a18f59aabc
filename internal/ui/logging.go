package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger writes level-prefixed lines. Debug lines are dropped unless Debug
// is set.
type Logger struct {
	Debug bool

	mu  sync.Mutex
	out io.Writer
}

func NewLogger(debug bool) *Logger {
	return &Logger{Debug: debug, out: os.Stderr}
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(w io.Writer, debug bool) *Logger {
	return &Logger{Debug: debug, out: w}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{out: io.Discard}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.Debug {
		l.printf("[DEBUG] ", format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.printf("[INFO] ", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.printf("[WARN] ", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.printf("[ERROR] ", format, args...)
}

func (l *Logger) printf(prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, prefix+msg)
}
