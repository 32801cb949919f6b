package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/livrasand/gitdeposit/internal/utils"
)

// Command describes one git invocation.
//
// Line is split with shell-word rules, so quoted formats such as
// --format="%cn committed %h, %cr" stay a single argument. Args are
// appended verbatim after Line and are never re-split, which keeps
// revisions and paths from user input out of the parser.
type Command struct {
	Line  string
	Args  []string
	Input []byte

	// Location is used as the working directory when Chdir is set,
	// otherwise it is appended as the trailing argument.
	Location string
	Chdir    bool
}

// Output is the buffered result of a finished process.
type Output struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// Text returns stdout decoded as a string.
func (o *Output) Text() string {
	return string(o.Stdout)
}

// Lines returns stdout split on newlines without the trailing empty line.
func (o *Output) Lines() []string {
	text := strings.TrimRight(o.Text(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Runner executes git commands. It is the only place that spawns processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Binary replaces a leading "git" word in every command line.
	Binary string
	Env    []string
}

// NewRunner returns an ExecRunner using the given git binary.
func NewRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "git"
	}
	return &ExecRunner{Binary: binary}
}

// Run spawns the command and waits for it. The exit status never turns into
// an error: it is reported in Output.ExitCode and stderr is only logged.
// The returned error is non-nil only when the process could not be started.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Output, error) {
	argv, err := shellwords.Parse(c.Line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", c.Line, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	if argv[0] == "git" && r.Binary != "" {
		argv[0] = r.Binary
	}
	argv = append(argv, c.Args...)
	if !c.Chdir && c.Location != "" {
		argv = append(argv, c.Location)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
	if c.Chdir {
		cmd.Dir = c.Location
		// Stop discovery at the parent so a location that is not itself a
		// repository is never mistaken for one living above it.
		cmd.Env = append(cmd.Env, "GIT_CEILING_DIRECTORIES="+filepath.Dir(filepath.Clean(c.Location)))
	}
	if c.Input != nil {
		cmd.Stdin = bytes.NewReader(c.Input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := &Output{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("spawn %s: %w", strings.Join(argv, " "), err)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.String()

	if out.Stderr != "" {
		utils.LogDebug("git stderr (%s, exit %d): %s", argv[1:], out.ExitCode, strings.TrimSpace(out.Stderr))
	}

	return out, nil
}

// CommandError reports a git process that failed without producing output.
type CommandError struct {
	Line     string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no diagnostic"
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Line, e.ExitCode, msg)
}

// ErrNotRepository is returned when a location does not hold a git repository.
var ErrNotRepository = errors.New("Not a git repository")

// IsNotRepository reports whether err means the location is not a repository,
// either as ErrNotRepository or as git's own diagnostic.
func IsNotRepository(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotRepository) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a git repository") ||
		strings.Contains(msg, "does not appear to be a git repository")
}
