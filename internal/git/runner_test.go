package git

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnerSplitsLineAndAppendsLocation(t *testing.T) {
	r := NewRunner("echo")

	out, err := r.Run(context.Background(), Command{
		Line:     `git log -1 --format="%cn committed %h, %cr"`,
		Args:     []string{"HEAD", "--", "dir with space/file"},
		Location: "/srv/deposit/alice/project.git",
	})
	require.NoError(t, err)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t,
		"log -1 --format=%cn committed %h, %cr HEAD -- dir with space/file /srv/deposit/alice/project.git\n",
		out.Text())
}

func TestRunnerChdirDoesNotAppendLocation(t *testing.T) {
	dir := t.TempDir()
	r := &ExecRunner{Binary: "pwd"}

	out, err := r.Run(context.Background(), Command{Line: "git", Location: dir, Chdir: true})
	require.NoError(t, err)

	got, err := filepath.EvalSymlinks(strings.TrimSpace(out.Text()))
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "no-such-git"))

	_, err := r.Run(context.Background(), Command{Line: "git status"})
	require.Error(t, err)
}

func TestRunnerMissingWorkingDirectory(t *testing.T) {
	requireGit(t)
	r := NewRunner("git")

	_, err := r.Run(context.Background(), Command{
		Line:     "git rev-parse",
		Location: filepath.Join(t.TempDir(), "missing"),
		Chdir:    true,
	})
	require.Error(t, err)
}

func TestRunnerEmptyLine(t *testing.T) {
	_, err := NewRunner("git").Run(context.Background(), Command{Line: "  "})
	require.Error(t, err)
}

func TestRunnerPipesInputAsBytes(t *testing.T) {
	requireGit(t)
	r := NewRunner("git")

	out, err := r.Run(context.Background(), Command{
		Line:  "git hash-object --stdin",
		Input: []byte("hello\n"),
	})
	require.NoError(t, err)
	require.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a\n", out.Text())
}

func TestRunnerIgnoresExitStatus(t *testing.T) {
	requireGit(t)
	repo := Open(filepath.Join(t.TempDir(), "bare.git"), nil)
	require.NoError(t, repo.InitBare("main"))

	out, err := NewRunner("git").Run(context.Background(), Command{
		Line:     "git rev-parse --verify",
		Args:     []string{"refs/heads/nope"},
		Location: repo.Location,
		Chdir:    true,
	})
	require.NoError(t, err)
	require.NotEqual(t, 0, out.ExitCode)
	require.Empty(t, out.Stdout)
	require.NotEmpty(t, out.Stderr)
}

func TestOutputLines(t *testing.T) {
	out := &Output{Stdout: []byte("* main\n  dev\n")}
	require.Equal(t, []string{"* main", "  dev"}, out.Lines())
	require.Nil(t, (&Output{}).Lines())
}

func TestIsNotRepository(t *testing.T) {
	require.True(t, IsNotRepository(ErrNotRepository))
	require.True(t, IsNotRepository(&CommandError{Stderr: "fatal: not a git repository (or any of the parent directories): .git"}))
	require.True(t, IsNotRepository(&CommandError{Stderr: "fatal: '/x' does not appear to be a git repository"}))
	require.False(t, IsNotRepository(&CommandError{Stderr: "fatal: out of memory"}))
	require.False(t, IsNotRepository(nil))
}
