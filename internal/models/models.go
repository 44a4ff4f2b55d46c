// Package models defines the records kept about task runs.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run kinds.
const (
	KindExec   = "exec"
	KindScript = "script"
)

// ValidKinds lists the accepted run kinds.
var ValidKinds = []string{KindExec, KindScript}

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded execution of a command or task script.
type Run struct {
	ID        string
	Kind      string // one of ValidKinds
	Command   string // argv joined by spaces, or the script path
	ExitCode  int
	Status    string // "succeeded" | "failed"
	Message   string // optional; error or task.complete message
	StartedAt time.Time
	Duration  time.Duration
}

// NewRun returns a Run with a fresh ID, stamped with the current time.
func NewRun(kind string, args []string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Command:   strings.Join(args, " "),
		StartedAt: time.Now().UTC(),
	}
}

// Finish records the outcome of r. The run is failed when failed is set or
// code is non-zero.
func (r *Run) Finish(code int, failed bool, message string) {
	r.ExitCode = code
	r.Message = message
	r.Duration = time.Since(r.StartedAt)
	if failed || code != 0 {
		r.Status = StatusFailed
	} else {
		r.Status = StatusSucceeded
	}
}

// IsValidKind reports whether k is one of ValidKinds.
func IsValidKind(k string) bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}
