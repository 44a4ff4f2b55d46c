// Package config handles configuration loading and task home resolution.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// HomeEnv overrides the task home directory.
const HomeEnv = "VSOTASK_HOME"

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// ExecConfig holds the default flags for `vsotask exec`.
type ExecConfig struct {
	RCFail     bool `yaml:"rc_fail"`
	StderrFail bool `yaml:"stderr_fail"`
}

// HistoryConfig controls run recording.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	RetainDays int  `yaml:"retain_days"` // 0 keeps runs forever
}

// TaskConfig is the root per-home configuration.
type TaskConfig struct {
	Engine  string        `yaml:"engine"` // script engine name or path; "" tries python3, python
	Exec    ExecConfig    `yaml:"exec"`
	History HistoryConfig `yaml:"history"`
}

// Default returns a TaskConfig populated with sensible defaults.
func Default() *TaskConfig {
	return &TaskConfig{
		Exec: ExecConfig{
			RCFail:     true,
			StderrFail: true,
		},
		History: HistoryConfig{
			Enabled:    true,
			RetainDays: 30,
		},
	}
}

// Load reads a per-home config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*TaskConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if v, ok := raw["engine"].(string); ok {
		cfg.Engine = strings.TrimSpace(v)
	}

	if ex, ok := raw["exec"].(map[string]any); ok {
		if v, ok := ex["rc_fail"].(bool); ok {
			cfg.Exec.RCFail = v
		}
		if v, ok := ex["stderr_fail"].(bool); ok {
			cfg.Exec.StderrFail = v
		}
	}

	if h, ok := raw["history"].(map[string]any); ok {
		if v, ok := h["enabled"].(bool); ok {
			cfg.History.Enabled = v
		}
		if v, ok := h["retain_days"].(int); ok && v >= 0 {
			cfg.History.RetainDays = v
		}
	}

	return cfg, nil
}

// ---------------------------------------------------------------------------
// Task home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global vsotask config file.
// This file stores only home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vsotask", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the task home path and the source of the resolution.
// Priority: VSOTASK_HOME env → persisted global config → ~/.vsotask
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv(HomeEnv); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vsotask"), "default"
}

// GetHome returns the resolved task home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// GetPersistedHome reads home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["home"]; !ok {
		return false, nil
	}
	delete(raw, "home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
