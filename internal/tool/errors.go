package tool

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Error reports a failed invocation. It unwraps to the cause, which is an
// *exec.ExitError, exec.ErrNotFound or a context error.
type Error struct {
	Name     string
	Path     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s failed for variant %q", filepath.Base(e.Path), e.Name)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&sb, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if line := lastLine(e.Stderr); line != "" {
		sb.WriteString(": ")
		sb.WriteString(line)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
