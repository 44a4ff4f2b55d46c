// Package taskcmd parses the logging commands a task writes to its output:
//
//	##vso[area.action key=value;key=value]message
//
// For example:
//
//	##vso[task.setvariable variable=outDir]/tmp/out
//	##vso[task.issue type=warning;]disk almost full
package taskcmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Prefix starts every logging command line.
const Prefix = "##vso["

// MissingCommand names a command whose brackets held no name.
const MissingCommand = "missing.command"

// ErrBrackets is returned for a line without a well-formed [...] section.
var ErrBrackets = errors.New("invalid command brackets")

// Command is one parsed logging command.
type Command struct {
	Name       string
	Properties map[string]string
	Message    string
}

// IsCommand reports whether line is a logging command.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, Prefix)
}

// Parse decodes a logging command line. The brackets must enclose at least
// two characters. Properties are ';'-separated key=value pairs; empty
// segments are skipped and a segment without '=' or with an empty key is
// an error.
func Parse(line string) (*Command, error) {
	lb := strings.IndexByte(line, '[')
	rb := strings.IndexByte(line, ']')
	if lb < 0 || rb < 0 || rb-lb < 3 {
		return nil, ErrBrackets
	}

	info := strings.TrimSpace(line[lb+1 : rb])
	name, rest, _ := strings.Cut(info, " ")
	if name == "" {
		name = MissingCommand
	}

	props := make(map[string]string)
	for _, seg := range strings.Split(strings.TrimSpace(rest), ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid property: %s", seg)
		}
		props[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return &Command{Name: name, Properties: props, Message: line[rb+1:]}, nil
}

// String renders the command back to its line form. Keys are sorted and
// properties with empty values are omitted.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(Prefix)
	name := c.Name
	if name == "" {
		name = MissingCommand
	}
	b.WriteString(name)

	keys := make([]string, 0, len(c.Properties))
	for k, v := range c.Properties {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		b.WriteByte(' ')
		for _, k := range keys {
			b.WriteString(k + "=" + c.Properties[k] + ";")
		}
	}
	b.WriteByte(']')
	b.WriteString(c.Message)
	return b.String()
}

// Property returns the named property, or "" when absent.
func (c *Command) Property(key string) string {
	return c.Properties[key]
}
