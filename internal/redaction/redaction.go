// Package redaction masks secrets in lines forwarded from a task's output.
package redaction

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Mask replaces every redacted span.
const Mask = "***"

// builtinPatterns catch well-known credential formats even when the task
// context does not declare them secret.
var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[a-zA-Z0-9]+`),                     // GitHub PATs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                     // AWS access key IDs
	regexp.MustCompile(`xoxb-[a-zA-Z0-9-]+`),                   // Slack bot tokens
	regexp.MustCompile(`-----BEGIN (?:RSA )?PRIVATE KEY-----`), // Private keys
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+`), // JWT tokens
}

// Masker redacts secret values and patterns from text.
// The zero value applies only the built-in patterns.
type Masker struct {
	secrets []string
	extra   []*regexp.Regexp
}

// NewMasker returns a Masker for the given literal secret values and extra
// patterns. Empty secrets are ignored. Longer secrets are masked first so a
// secret that contains another is not partially revealed.
func NewMasker(secrets []string, extra []*regexp.Regexp) *Masker {
	vals := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			vals = append(vals, s)
		}
	}
	sort.SliceStable(vals, func(i, j int) bool { return len(vals[i]) > len(vals[j]) })
	return &Masker{secrets: vals, extra: extra}
}

// Redact applies literal secrets, then built-in patterns, then extra patterns.
func (m *Masker) Redact(text string) string {
	if m == nil {
		m = &Masker{}
	}
	for _, s := range m.secrets {
		text = strings.ReplaceAll(text, s, Mask)
	}
	for _, re := range builtinPatterns {
		text = re.ReplaceAllString(text, Mask)
	}
	for _, re := range m.extra {
		text = re.ReplaceAllString(text, Mask)
	}
	return text
}

// LoadIgnore reads a .taskignore file and compiles each non-blank,
// non-comment line as a regular expression.
// Returns nil (no error) if the file does not exist.
func LoadIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
