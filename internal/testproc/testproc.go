// Package testproc lets tests re-execute their own binary as a scripted
// child process, so process tests do not depend on a shell being installed.
//
// A test package opts in with:
//
//	func TestMain(m *testing.M) { testproc.Main(m) }
package testproc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

const marker = "__testproc"

// ScriptEnv, when set to "1", makes the binary interpret its first argument
// as a Script. It lets the test binary stand in for an engine that is named
// by path alone.
const ScriptEnv = "TESTPROC_SCRIPT"

// Main runs the helper when the binary was launched through Command or
// Engine, and the tests otherwise.
func Main(m *testing.M) {
	if len(os.Args) > 2 && os.Args[1] == marker {
		os.Exit(helper(os.Args[2], os.Args[3:]))
	}
	if os.Getenv(ScriptEnv) == "1" && len(os.Args) == 2 {
		os.Exit(Script(os.Args[1]))
	}
	os.Exit(m.Run())
}

// Command returns an argv that re-executes the test binary in mode.
//
// Modes:
//
//	exit N            exit with code N
//	stdout TEXT       write TEXT and a newline to stdout
//	stderr TEXT       write TEXT and a newline to stderr
//	both OUT ERR N    write OUT to stdout, ERR to stderr, exit N
//	stdin             copy stdin to stdout
//	env KEY           write the value of KEY to stdout
//	sleep D           sleep for duration D, then exit 0
//	script PATH       interpret PATH, see Script
func Command(mode string, args ...string) []string {
	return append([]string{Executable(), marker, mode}, args...)
}

// Engine returns a script engine command prefix; the script path is
// appended by the caller.
func Engine() (name string, args []string) {
	return Executable(), []string{marker, "script"}
}

// Executable returns the path of the running test binary.
func Executable() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}

// Script interprets one directive per line:
//
//	out TEXT     write TEXT to stdout
//	err TEXT     write TEXT to stderr
//	stdin        copy stdin to stdout
//	env KEY      write KEY=value to stdout
//	long N       write one line of N 'x' bytes to stdout
//	lines N TEXT write TEXT on N lines to stdout
//	sleep D      sleep for duration D
//	exit N       exit with code N
//
// Unknown or blank lines are ignored. Reaching the end exits 0.
func Script(path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		verb, rest, _ := strings.Cut(scanner.Text(), " ")
		switch verb {
		case "out":
			fmt.Fprintln(os.Stdout, rest)
		case "err":
			fmt.Fprintln(os.Stderr, rest)
		case "stdin":
			_, _ = io.Copy(os.Stdout, os.Stdin)
		case "env":
			fmt.Fprintf(os.Stdout, "%s=%s\n", rest, os.Getenv(rest))
		case "long":
			n, _ := strconv.Atoi(rest)
			w := bufio.NewWriter(os.Stdout)
			_, _ = w.WriteString(strings.Repeat("x", n) + "\n")
			_ = w.Flush()
		case "lines":
			count, text, _ := strings.Cut(rest, " ")
			n, _ := strconv.Atoi(count)
			w := bufio.NewWriter(os.Stdout)
			for range n {
				_, _ = w.WriteString(text + "\n")
			}
			_ = w.Flush()
		case "sleep":
			d, _ := time.ParseDuration(rest)
			time.Sleep(d)
		case "exit":
			n, _ := strconv.Atoi(rest)
			return n
		}
	}
	return 0
}

func helper(mode string, args []string) int {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	switch mode {
	case "exit":
		n, _ := strconv.Atoi(arg(0))
		return n
	case "stdout":
		fmt.Fprintln(os.Stdout, arg(0))
	case "stderr":
		fmt.Fprintln(os.Stderr, arg(0))
	case "both":
		fmt.Fprintln(os.Stdout, arg(0))
		fmt.Fprintln(os.Stderr, arg(1))
		n, _ := strconv.Atoi(arg(2))
		return n
	case "stdin":
		_, _ = io.Copy(os.Stdout, os.Stdin)
	case "env":
		fmt.Fprintln(os.Stdout, os.Getenv(arg(0)))
	case "sleep":
		d, _ := time.ParseDuration(arg(0))
		time.Sleep(d)
	case "script":
		return Script(arg(0))
	default:
		fmt.Fprintf(os.Stderr, "testproc: unknown mode %q\n", mode)
		return 2
	}
	return 0
}
