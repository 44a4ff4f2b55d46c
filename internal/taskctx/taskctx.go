// Package taskctx captures the task context a script receives on standard input.
package taskctx

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/yalp/jsonpath"
)

// ErrParse is returned when the last non-blank input line is not valid JSON.
var ErrParse = errors.New("task context: invalid JSON")

// maxLineSize bounds a single context line. Contexts carry every job
// variable, so the default bufio limit of 64 KiB is too small.
const maxLineSize = 16 << 20

// Context is the JSON value captured from the last non-blank input line.
// It is never mutated after Capture returns.
type Context struct {
	raw   json.RawMessage
	value any
}

// Capture reads r to EOF and keeps the parse of the last non-blank line.
// Earlier lines are discarded whether or not they parse. An input without
// any non-blank line yields an unset Context and no error.
func Capture(r io.Reader) (*Context, error) {
	var last []byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		last = append(last[:0], line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("taskctx.Capture: %w", err)
	}
	if last == nil {
		return &Context{}, nil
	}
	return Parse(last)
}

// Parse decodes a single JSON document into a Context.
func Parse(data []byte) (*Context, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Context{raw: raw, value: v}, nil
}

// Present reports whether a value was captured.
func (c *Context) Present() bool { return c != nil && c.raw != nil }

// Value returns the decoded JSON value, or nil when nothing was captured.
func (c *Context) Value() any {
	if c == nil {
		return nil
	}
	return c.value
}

// Raw returns the captured line as it was read.
func (c *Context) Raw() json.RawMessage {
	if c == nil {
		return nil
	}
	return c.raw
}

// Lookup evaluates a JSONPath expression such as "$.inputs.script" against
// the captured value.
func (c *Context) Lookup(path string) (any, error) {
	if !c.Present() {
		return nil, fmt.Errorf("taskctx.Lookup %q: no context captured", path)
	}
	v, err := jsonpath.Read(c.value, path)
	if err != nil {
		return nil, fmt.Errorf("taskctx.Lookup %q: %w", path, err)
	}
	return v, nil
}

// Inputs returns the "inputs" object as strings.
func (c *Context) Inputs() map[string]string { return c.stringMap("inputs") }

// Variables returns the "variables" object as strings.
func (c *Context) Variables() map[string]string { return c.stringMap("variables") }

// Secrets returns the values of the variables named in the "secrets" array,
// sorted. Names without a matching variable are skipped.
func (c *Context) Secrets() []string {
	obj, ok := c.Value().(map[string]any)
	if !ok {
		return nil
	}
	names, _ := obj["secrets"].([]any)
	if len(names) == 0 {
		return nil
	}
	vars := c.Variables()
	var out []string
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		if v := vars[name]; v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Context) stringMap(key string) map[string]string {
	obj, ok := c.Value().(map[string]any)
	if !ok {
		return nil
	}
	src, ok := obj[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if s, ok := scalarString(v); ok {
			out[k] = s
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
