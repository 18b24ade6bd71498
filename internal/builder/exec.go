// Package builder produces release directories by running the project's build
// command, optionally on a historical tag checked out from git.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// ErrExternalCommand is returned when a build or source-control command fails.
var ErrExternalCommand = errors.New("external command failed")

// CommandError describes a failed external command.
type CommandError struct {
	Command  string
	Dir      string
	ExitCode int // -1 if the command did not run to completion
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s (in %s): ", e.Command, e.Dir)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf("exit status %d", e.ExitCode)
	} else {
		msg += e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + lastLines(out, 20)
	}
	return msg
}

// Is makes every CommandError match ErrExternalCommand.
func (e *CommandError) Is(target error) bool {
	return target == ErrExternalCommand
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner runs an external command in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Environ []string // nil means inherit
}

// Run executes name with args. A non-zero exit, a missing binary or a
// cancelled context yields a *CommandError.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Environ != nil {
		cmd.Env = r.Environ
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil
	}

	cerr := &CommandError{
		Command:  strings.Join(append([]string{name}, args...), " "),
		Dir:      dir,
		ExitCode: -1,
		Output:   out.String(),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return out.Bytes(), cerr
}

// IsNotFound checks if the error indicates the command was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return os.IsNotExist(err) || errors.Is(err, exec.ErrNotFound)
}
