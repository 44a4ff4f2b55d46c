package models_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vsotask/internal/models"
)

func TestNewRun(t *testing.T) {
	c := qt.New(t)

	before := time.Now().UTC()
	r := models.NewRun(models.KindExec, []string{"make", "-j4", "all"})
	c.Assert(r.ID, qt.HasLen, 36)
	c.Assert(r.Kind, qt.Equals, models.KindExec)
	c.Assert(r.Command, qt.Equals, "make -j4 all")
	c.Assert(r.StartedAt.Before(before), qt.IsFalse)

	other := models.NewRun(models.KindExec, nil)
	c.Assert(other.ID, qt.Not(qt.Equals), r.ID)
	c.Assert(other.Command, qt.Equals, "")
}

func TestRun_Finish(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name       string
		code       int
		failed     bool
		wantStatus string
	}{
		{"zero exit", 0, false, models.StatusSucceeded},
		{"non-zero exit", 2, false, models.StatusFailed},
		{"failed flag with zero exit", 0, true, models.StatusFailed},
		{"signal", -1, false, models.StatusFailed},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			r := models.NewRun(models.KindScript, []string{"task.py"})
			r.Finish(tt.code, tt.failed, "msg")
			c.Assert(r.Status, qt.Equals, tt.wantStatus)
			c.Assert(r.ExitCode, qt.Equals, tt.code)
			c.Assert(r.Message, qt.Equals, "msg")
			c.Assert(r.Duration >= 0, qt.IsTrue)
		})
	}
}

func TestIsValidKind(t *testing.T) {
	c := qt.New(t)
	c.Assert(models.IsValidKind("exec"), qt.IsTrue)
	c.Assert(models.IsValidKind("script"), qt.IsTrue)
	c.Assert(models.IsValidKind(""), qt.IsFalse)
	c.Assert(models.IsValidKind("Exec"), qt.IsFalse)
}
