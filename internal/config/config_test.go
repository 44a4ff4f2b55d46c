package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vsotask/internal/config"
)

func TestDefault_HappyPath(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	c.Assert(cfg, qt.IsNotNil)
	c.Assert(cfg.Engine, qt.Equals, "")
	c.Assert(cfg.Exec.RCFail, qt.IsTrue)
	c.Assert(cfg.Exec.StderrFail, qt.IsTrue)
	c.Assert(cfg.History.Enabled, qt.IsTrue)
	c.Assert(cfg.History.RetainDays, qt.Equals, 30)
}

func TestLoad_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("non-existent file returns defaults without error", func(c *qt.C) {
		cfg, err := config.Load("/nonexistent/config.yaml")
		c.Assert(err, qt.IsNil)
		c.Assert(cfg, qt.DeepEquals, config.Default())
	})

	tests := []struct {
		name string
		yaml string
		want func(*config.TaskConfig)
	}{
		{
			name: "engine override",
			yaml: "engine: /usr/bin/python3.12\n",
			want: func(cfg *config.TaskConfig) { cfg.Engine = "/usr/bin/python3.12" },
		},
		{
			name: "exec flags disabled",
			yaml: "exec:\n  rc_fail: false\n  stderr_fail: false\n",
			want: func(cfg *config.TaskConfig) {
				cfg.Exec.RCFail = false
				cfg.Exec.StderrFail = false
			},
		},
		{
			name: "partial exec section keeps other default",
			yaml: "exec:\n  stderr_fail: false\n",
			want: func(cfg *config.TaskConfig) { cfg.Exec.StderrFail = false },
		},
		{
			name: "history section",
			yaml: "history:\n  enabled: false\n  retain_days: 0\n",
			want: func(cfg *config.TaskConfig) {
				cfg.History.Enabled = false
				cfg.History.RetainDays = 0
			},
		},
		{
			name: "negative retain_days ignored",
			yaml: "history:\n  retain_days: -5\n",
			want: func(*config.TaskConfig) {},
		},
		{
			name: "wrongly typed values ignored",
			yaml: "exec:\n  rc_fail: \"no\"\nhistory: 3\n",
			want: func(*config.TaskConfig) {},
		},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			c.Assert(os.WriteFile(path, []byte(tt.yaml), 0o600), qt.IsNil)

			want := config.Default()
			tt.want(want)

			cfg, err := config.Load(path)
			c.Assert(err, qt.IsNil)
			c.Assert(cfg, qt.DeepEquals, want)
		})
	}
}

func TestLoad_FailurePath(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	c.Assert(os.WriteFile(path, []byte("exec: [unterminated\n"), 0o600), qt.IsNil)

	_, err := config.Load(path)
	c.Assert(err, qt.IsNotNil)
}

func TestResolveHome_EnvOverride(t *testing.T) {
	c := qt.New(t)

	tmp := t.TempDir()
	t.Setenv(config.HomeEnv, tmp)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "env")
	c.Assert(path, qt.Equals, tmp)
	c.Assert(config.GetHome(), qt.Equals, tmp)
}

func TestPersistedHome(t *testing.T) {
	c := qt.New(t)

	userHome := t.TempDir()
	t.Setenv("HOME", userHome)
	t.Setenv(config.HomeEnv, "")

	c.Run("default when nothing persisted", func(c *qt.C) {
		path, source := config.ResolveHome()
		c.Assert(source, qt.Equals, "default")
		c.Assert(path, qt.Equals, filepath.Join(userHome, ".vsotask"))
	})

	target := filepath.Join(userHome, "tasks")

	c.Run("set persists an absolute path", func(c *qt.C) {
		got, err := config.SetPersistedHome("~/tasks")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, target)

		path, source := config.ResolveHome()
		c.Assert(source, qt.Equals, "config")
		c.Assert(path, qt.Equals, target)
	})

	c.Run("clear removes the setting and the empty file", func(c *qt.C) {
		changed, err := config.ClearPersistedHome()
		c.Assert(err, qt.IsNil)
		c.Assert(changed, qt.IsTrue)

		_, err = os.Stat(filepath.Join(userHome, ".config", "vsotask", "config.yaml"))
		c.Assert(os.IsNotExist(err), qt.IsTrue)

		changed, err = config.ClearPersistedHome()
		c.Assert(err, qt.IsNil)
		c.Assert(changed, qt.IsFalse)
	})
}
