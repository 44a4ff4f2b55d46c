// Package checkers provides quicktest checkers shared by the test suites.
package checkers

import (
	"encoding/json"
	"fmt"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker that decodes the JSON document got
// ([]byte or string), evaluates path against it and compares the result
// with want using qt.DeepEquals. Numbers decode as float64.
//
//	c.Assert(data, checkers.JSONPathEquals("$.mcpServers.vsotask.command"), "vsotask")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

type jsonPathChecker struct {
	path string
}

func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got", "want"}
}

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var data []byte
	switch v := got.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return qt.BadCheckf("got must be []byte or string, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	note("path", c.path)

	v, err := jsonpath.Read(doc, c.path)
	if err != nil {
		return fmt.Errorf("path not found: %w", err)
	}
	return qt.DeepEquals.Check(v, args, note)
}
