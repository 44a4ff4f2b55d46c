// Package service wires configuration, run history, redaction, the process
// runner and the script host together behind the operations the CLI and the
// MCP server expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/go-ports/vsotask/internal/config"
	"github.com/go-ports/vsotask/internal/history"
	"github.com/go-ports/vsotask/internal/host"
	"github.com/go-ports/vsotask/internal/models"
	"github.com/go-ports/vsotask/internal/procrun"
	"github.com/go-ports/vsotask/internal/redaction"
	"github.com/go-ports/vsotask/internal/taskctx"
)

// Service orchestrates all task operations.
type Service struct {
	Home   string
	Config *config.TaskConfig

	history        *history.DB
	ignorePatterns []*regexp.Regexp
	pruneOnce      sync.Once
	mu             sync.Mutex
}

// New initialises a Service rooted at home.
// If home is empty it is resolved via config.GetHome.
func New(home string) (*Service, error) {
	if home == "" {
		home = config.GetHome()
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create home: %w", err)
	}

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	hdb, err := history.Open(filepath.Join(home, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("service.New: open history: %w", err)
	}

	return &Service{
		Home:    home,
		Config:  cfg,
		history: hdb,
	}, nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	return s.history.Close()
}

// ExecOptions returns the configured default flags for Exec.
func (s *Service) ExecOptions() procrun.Options {
	return procrun.Options{
		RCFail:     s.Config.Exec.RCFail,
		StderrFail: s.Config.Exec.StderrFail,
	}
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Exec runs args through r and records the run. The return values are
// those of procrun.Runner.Run.
func (s *Service) Exec(ctx context.Context, r *procrun.Runner, args []string, opts procrun.Options) (int, error) {
	run := models.NewRun(models.KindExec, args)
	code, err := r.Run(ctx, args, opts)

	var ee *procrun.ExitError
	switch {
	case err == nil:
		run.Finish(code, false, "")
	case errors.As(err, &ee), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Finish(code, true, err.Error())
	default:
		// Nothing was spawned.
		return code, err
	}
	s.record(run)
	return code, err
}

// RunScript runs a task script through the script host and records the run.
// Empty opts.Engine falls back to the configured engine. A nil opts.Masker
// masks the context's declared secrets and the patterns in <home>/.taskignore.
func (s *Service) RunScript(ctx context.Context, script string, tctx *taskctx.Context, opts host.Options) (*host.Result, error) {
	if opts.Engine == "" {
		opts.Engine = s.Config.Engine
	}
	if opts.Masker == nil {
		opts.Masker = redaction.NewMasker(tctx.Secrets(), s.getIgnorePatterns())
	}

	run := models.NewRun(models.KindScript, []string{script})
	res, err := host.Run(ctx, script, tctx, opts)
	if res == nil {
		return nil, err
	}

	msg := res.Message
	if err != nil {
		msg = err.Error()
	}
	run.Finish(res.ExitCode, res.Status == host.StatusFailed, msg)
	s.record(run)
	return res, err
}

// History returns up to limit recorded runs, newest first.
func (s *Service) History(limit int, kind string) ([]*models.Run, error) {
	if kind != "" && !models.IsValidKind(kind) {
		return nil, fmt.Errorf("unknown run kind %q (want one of %v)", kind, models.ValidKinds)
	}
	return s.history.List(limit, kind)
}

// GetRun returns the recorded run whose ID starts with prefix.
func (s *Service) GetRun(prefix string) (*models.Run, error) {
	return s.history.Get(prefix)
}

// Prune deletes runs older than the configured retention.
// It does nothing when retain_days is 0.
func (s *Service) Prune() (int, error) {
	days := s.Config.History.RetainDays
	if days <= 0 {
		return 0, nil
	}
	return s.history.Prune(time.Now().AddDate(0, 0, -days))
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// record stores run when history is enabled. Failures are only logged.
func (s *Service) record(run *models.Run) {
	if !s.Config.History.Enabled {
		return
	}
	s.pruneOnce.Do(func() {
		if _, err := s.Prune(); err != nil {
			slog.Warn("history prune", "err", err)
		}
	})
	if err := s.history.Insert(run); err != nil {
		slog.Warn("history insert", "id", run.ID, "err", err)
	}
}

// getIgnorePatterns returns redaction patterns, lazily loaded from .taskignore.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadIgnore(filepath.Join(s.Home, ".taskignore"))
	if err != nil {
		slog.Warn("failed to load .taskignore", "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}
