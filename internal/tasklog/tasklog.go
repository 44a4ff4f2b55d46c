// Package tasklog writes the prefixed lines a task host reads from a task's
// standard output.
package tasklog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Line prefixes, each followed by a single space.
const (
	PrefixInfo    = "[INFO]"
	PrefixVerbose = "[VERBOSE]"
	PrefixWarning = "[WARNING]"
	PrefixError   = "[ERROR]"
)

// Logger writes one prefixed line per call. It is safe for concurrent use.
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Info writes "[INFO] msg".
func (l *Logger) Info(msg string) { l.line(PrefixInfo, msg) }

// Verbose writes "[VERBOSE] msg".
func (l *Logger) Verbose(msg string) { l.line(PrefixVerbose, msg) }

// Warning writes "[WARNING] msg".
func (l *Logger) Warning(msg string) { l.line(PrefixWarning, msg) }

// Error writes "[ERROR] msg".
func (l *Logger) Error(msg string) { l.line(PrefixError, msg) }

func (l *Logger) line(prefix, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Write errors are dropped, as with print.
	_, _ = fmt.Fprintln(l.w, prefix+" "+msg)
}

// Info writes "[INFO] msg" to standard output.
func Info(msg string) { New(os.Stdout).Info(msg) }

// Verbose writes "[VERBOSE] msg" to standard output.
func Verbose(msg string) { New(os.Stdout).Verbose(msg) }
