// Package setup registers and unregisters the vsotask MCP server with
// supported coding agents (Claude Code, Cursor, Codex, OpenCode).
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerName is the key under which the server is registered.
const ServerName = "vsotask"

// Agents lists the supported agent names.
var Agents = []string{"claude-code", "cursor", "codex", "opencode"}

// Options selects where an agent's configuration lives.
type Options struct {
	// ConfigDir overrides the agent's dot directory (~/.claude, ~/.cursor, ~/.codex).
	ConfigDir string
	// Project targets the configuration in Dir instead of the user's home.
	Project bool
	// Dir is the project directory. Empty means the working directory.
	Dir string
	// Command is the executable agents launch. Empty means "vsotask".
	Command string
}

// Result describes what Install or Uninstall changed.
type Result struct {
	Changed bool
	Path    string
	Message string
}

// ---------------------------------------------------------------------------
// Install / Uninstall
// ---------------------------------------------------------------------------

// Install registers the MCP server with agent. Installing twice is a no-op.
func Install(agent string, opts Options) (Result, error) {
	t, err := resolve(agent, opts)
	if err != nil {
		return Result{}, err
	}
	changed, err := t.install(t.path, opts.command())
	if err != nil {
		return Result{}, fmt.Errorf("setup.Install %s: %w", agent, err)
	}
	if !changed {
		return Result{Path: t.path, Message: "Already installed"}, nil
	}
	return Result{Changed: true, Path: t.path, Message: "Installed: " + ServerName + " in " + t.path}, nil
}

// Uninstall removes the MCP server registration from agent.
func Uninstall(agent string, opts Options) (Result, error) {
	t, err := resolve(agent, opts)
	if err != nil {
		return Result{}, err
	}
	changed, err := t.uninstall(t.path)
	if err != nil {
		return Result{}, fmt.Errorf("setup.Uninstall %s: %w", agent, err)
	}
	if !changed {
		return Result{Path: t.path, Message: "Nothing to remove"}, nil
	}
	return Result{Changed: true, Path: t.path, Message: "Removed: " + ServerName + " from " + t.path}, nil
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

type target struct {
	path      string
	install   func(path, command string) (bool, error)
	uninstall func(path string) (bool, error)
}

func (o Options) command() string {
	if o.Command == "" {
		return "vsotask"
	}
	return o.Command
}

func (o Options) baseDir() string {
	if o.Dir != "" {
		return o.Dir
	}
	cwd, _ := os.Getwd()
	return cwd
}

func (o Options) dotDir(name string) string {
	if o.ConfigDir != "" {
		return o.ConfigDir
	}
	if o.Project {
		return filepath.Join(o.baseDir(), name)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, name)
}

func resolve(agent string, opts Options) (*target, error) {
	mcpServers := jsonSection{key: "mcpServers", entry: func(command string) any {
		return map[string]any{"command": command, "args": []any{"mcp"}, "type": "stdio"}
	}}
	opencode := jsonSection{key: "mcp", entry: func(command string) any {
		return map[string]any{"type": "local", "command": []any{command, "mcp"}}
	}}

	switch agent {
	case "claude-code":
		// Project scope (and an explicit ConfigDir) use .mcp.json beside the dot directory.
		path := filepath.Join(filepath.Dir(opts.dotDir(".claude")), ".mcp.json")
		if !opts.Project && opts.ConfigDir == "" {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, ".claude.json")
		}
		return &target{path: path, install: mcpServers.install, uninstall: mcpServers.uninstall}, nil
	case "cursor":
		path := filepath.Join(opts.dotDir(".cursor"), "mcp.json")
		return &target{path: path, install: mcpServers.install, uninstall: mcpServers.uninstall}, nil
	case "codex":
		path := filepath.Join(opts.dotDir(".codex"), "config.toml")
		return &target{path: path, install: installTOML, uninstall: uninstallTOML}, nil
	case "opencode":
		path := filepath.Join(opts.baseDir(), "opencode.json")
		if !opts.Project {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, ".config", "opencode", "opencode.json")
		}
		return &target{path: path, install: opencode.install, uninstall: opencode.uninstall}, nil
	}
	return nil, fmt.Errorf("unknown agent %q (want one of %s)", agent, strings.Join(Agents, ", "))
}

// ---------------------------------------------------------------------------
// JSON configs
// ---------------------------------------------------------------------------

// jsonSection edits one server map inside a JSON config file, keeping all
// other keys.
type jsonSection struct {
	key   string
	entry func(command string) any
}

func (s jsonSection) install(path, command string) (bool, error) {
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[s.key].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data[s.key] = servers
	}
	if _, exists := servers[ServerName]; exists {
		return false, nil
	}
	servers[ServerName] = s.entry(command)
	return true, writeJSON(path, data)
}

func (s jsonSection) uninstall(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[s.key].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, s.key)
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// readJSON returns an empty map for a missing or empty file. A file that is
// not a JSON object is an error so user configuration is never clobbered.
func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(strings.TrimSpace(string(data))) == 0) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- agent config files (MCP server entries) do not contain secrets
}

// ---------------------------------------------------------------------------
// TOML config (Codex)
// ---------------------------------------------------------------------------

// The table is edited as text so comments and layout elsewhere in the file
// survive; the TOML decoder only answers whether the table exists.

var tomlHeader = "[mcp_servers." + ServerName + "]"

func hasTOMLServer(data []byte) (bool, error) {
	var doc struct {
		MCPServers map[string]toml.Primitive `toml:"mcp_servers"`
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return false, err
	}
	_, ok := doc.MCPServers[ServerName]
	return ok, nil
}

// isServerHeader reports whether a trimmed table header line opens the
// server's table or one of its subtables.
func isServerHeader(header string) bool {
	if i := strings.Index(header, "]"); i >= 0 {
		header = header[:i]
	}
	name := strings.TrimSpace(strings.TrimLeft(header, "["))
	prefix := "mcp_servers." + ServerName
	return name == prefix || strings.HasPrefix(name, prefix+".")
}

func installTOML(path, command string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	has, err := hasTOMLServer(data)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	if has {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	var section strings.Builder
	section.WriteString("\n" + tomlHeader + "\n")
	if err := toml.NewEncoder(&section).Encode(map[string]any{
		"command": command,
		"args":    []string{"mcp"},
	}); err != nil {
		return false, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.WriteString(section.String())
	return err == nil, err
}

func uninstallTOML(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	has, err := hasTOMLServer(data)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	if !has {
		return false, nil
	}

	// Drop the table, and any of its subtables, up to the next other header.
	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inSection = isServerHeader(trimmed)
			if inSection {
				continue
			}
		}
		if !inSection {
			kept = append(kept, line)
		}
	}
	cleaned := strings.TrimRight(strings.Join(kept, "\n"), "\n")
	if still, err := hasTOMLServer([]byte(cleaned)); err != nil || still {
		return false, fmt.Errorf("%s: %s is not a plain %s table; remove it by hand", path, ServerName, tomlHeader)
	}
	if strings.TrimSpace(cleaned) == "" {
		return true, os.Remove(path)
	}
	return true, os.WriteFile(path, []byte(cleaned+"\n"), 0o644) // #nosec G306 -- agent TOML config is not a sensitive credential file
}
