package history_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vsotask/internal/history"
	"github.com/go-ports/vsotask/internal/models"
)

// openTestDB opens a fresh SQLite database in a temp directory and registers
// t.Cleanup to close it.
func openTestDB(t *testing.T) *history.DB {
	t.Helper()
	d, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// newRunAt returns a finished run with a fixed ID and start time.
func newRunAt(id, kind string, code int, startedAt time.Time) *models.Run {
	return &models.Run{
		ID:        id,
		Kind:      kind,
		Command:   "make test",
		ExitCode:  code,
		Status:    map[bool]string{true: models.StatusSucceeded, false: models.StatusFailed}[code == 0],
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
	}
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_HappyPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)
	c.Assert(d, qt.IsNotNil)

	v, ok, err := d.GetMeta("schema_version")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "1")
}

func TestOpen_Reopen(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "history.db")
	d, err := history.Open(path)
	c.Assert(err, qt.IsNil)
	c.Assert(d.Insert(newRunAt("id-1", models.KindExec, 0, time.Now())), qt.IsNil)
	c.Assert(d.Close(), qt.IsNil)

	d, err = history.Open(path)
	c.Assert(err, qt.IsNil)
	defer d.Close()
	n, err := d.Count()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	c.Assert(d.Path(), qt.Equals, path)
}

// ---------------------------------------------------------------------------
// Insert / Get
// ---------------------------------------------------------------------------

func TestInsertAndGet_HappyPath(t *testing.T) {
	c := qt.New(t)

	d := openTestDB(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	r := newRunAt("abcdef-1234", models.KindScript, 3, start)
	r.Message = "return code: 3"
	c.Assert(d.Insert(r), qt.IsNil)

	c.Run("exact ID", func(c *qt.C) {
		got, err := d.Get("abcdef-1234")
		c.Assert(err, qt.IsNil)
		c.Assert(got.Kind, qt.Equals, models.KindScript)
		c.Assert(got.Command, qt.Equals, "make test")
		c.Assert(got.ExitCode, qt.Equals, 3)
		c.Assert(got.Status, qt.Equals, models.StatusFailed)
		c.Assert(got.Message, qt.Equals, "return code: 3")
		c.Assert(got.StartedAt.Equal(start), qt.IsTrue)
		c.Assert(got.Duration, qt.Equals, 1500*time.Millisecond)
	})

	c.Run("prefix", func(c *qt.C) {
		got, err := d.Get("abc")
		c.Assert(err, qt.IsNil)
		c.Assert(got.ID, qt.Equals, "abcdef-1234")
	})
}

func TestGet_FailurePath(t *testing.T) {
	c := qt.New(t)

	d := openTestDB(t)
	now := time.Now()
	c.Assert(d.Insert(newRunAt("aa-1", models.KindExec, 0, now)), qt.IsNil)
	c.Assert(d.Insert(newRunAt("aa-2", models.KindExec, 0, now)), qt.IsNil)

	_, err := d.Get("zz")
	c.Assert(errors.Is(err, history.ErrNotFound), qt.IsTrue)

	_, err = d.Get("aa")
	c.Assert(errors.Is(err, history.ErrAmbiguous), qt.IsTrue)

	c.Run("duplicate ID rejected", func(c *qt.C) {
		err := d.Insert(newRunAt("aa-1", models.KindExec, 0, now))
		c.Assert(err, qt.ErrorMatches, "history.Insert: .*")
	})
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestList_HappyPath(t *testing.T) {
	c := qt.New(t)

	d := openTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Assert(d.Insert(newRunAt("r1", models.KindExec, 0, base)), qt.IsNil)
	c.Assert(d.Insert(newRunAt("r2", models.KindScript, 1, base.Add(100*time.Millisecond))), qt.IsNil)
	c.Assert(d.Insert(newRunAt("r3", models.KindExec, 0, base.Add(time.Second))), qt.IsNil)

	ids := func(runs []*models.Run) []string {
		out := make([]string, 0, len(runs))
		for _, r := range runs {
			out = append(out, r.ID)
		}
		return out
	}

	c.Run("newest first", func(c *qt.C) {
		runs, err := d.List(0, "")
		c.Assert(err, qt.IsNil)
		c.Assert(ids(runs), qt.DeepEquals, []string{"r3", "r2", "r1"})
	})

	c.Run("limit", func(c *qt.C) {
		runs, err := d.List(2, "")
		c.Assert(err, qt.IsNil)
		c.Assert(ids(runs), qt.DeepEquals, []string{"r3", "r2"})
	})

	c.Run("kind filter", func(c *qt.C) {
		runs, err := d.List(10, models.KindExec)
		c.Assert(err, qt.IsNil)
		c.Assert(ids(runs), qt.DeepEquals, []string{"r3", "r1"})
	})

	c.Run("empty database", func(c *qt.C) {
		runs, err := openTestDB(t).List(10, "")
		c.Assert(err, qt.IsNil)
		c.Assert(runs, qt.HasLen, 0)
	})
}

// ---------------------------------------------------------------------------
// Prune
// ---------------------------------------------------------------------------

func TestPrune_HappyPath(t *testing.T) {
	c := qt.New(t)

	d := openTestDB(t)
	now := time.Now().UTC()
	c.Assert(d.Insert(newRunAt("old", models.KindExec, 0, now.AddDate(0, 0, -40))), qt.IsNil)
	c.Assert(d.Insert(newRunAt("new", models.KindExec, 0, now)), qt.IsNil)

	n, err := d.Prune(now.AddDate(0, 0, -30))
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	runs, err := d.List(0, "")
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 1)
	c.Assert(runs[0].ID, qt.Equals, "new")
}
