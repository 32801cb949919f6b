package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupDeposit apunta la configuración a un directorio temporal
func setupDeposit(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_FILE", filepath.Join(root, "deposit.yaml"))
	t.Setenv("GIT_DEPOSIT_ROOT", filepath.Join(root, "deposit"))
	t.Setenv("GIT_DEFAULT_BRANCH", "main")
	return root
}

func runCtl(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, code := runCtl(t, args...)
	require.Equal(t, 0, code, "depositctl %v: %s", args, errOut)
	return out
}

func TestUserCommands(t *testing.T) {
	root := setupDeposit(t)

	out := mustRun(t, "user", "add", "alice", "-p", "secret", "--name", "Alice")
	assert.Contains(t, out, "User alice created")
	assert.DirExists(t, filepath.Join(root, "deposit", "alice"))
	assert.FileExists(t, filepath.Join(root, "deposit.yaml"))

	_, errOut, code := runCtl(t, "user", "add", "alice", "-p", "secret")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")

	mustRun(t, "user", "rm", "alice")
	assert.NoDirExists(t, filepath.Join(root, "deposit", "alice"))
}

func TestRepositoryCommands(t *testing.T) {
	root := setupDeposit(t)
	mustRun(t, "user", "add", "alice", "-p", "secret")
	mustRun(t, "user", "add", "bob", "-p", "hunter2")

	out := mustRun(t, "repo", "create", "alice/my project", "-d", "demo", "--private")
	assert.Contains(t, out, "Repository alice/my-project created")
	assert.DirExists(t, filepath.Join(root, "deposit", "alice", "my-project.git"))

	out = mustRun(t, "repo", "ls")
	assert.Contains(t, out, "alice/my-project")
	assert.Contains(t, out, "private")
	assert.Contains(t, out, "demo")

	out = mustRun(t, "grant", "bob", "alice/my-project")
	assert.Contains(t, out, "bob can now push to alice/my-project")

	out = mustRun(t, "repo", "show", "alice/my-project.git")
	assert.Contains(t, out, "alice, bob")
	assert.Contains(t, out, "main")

	mustRun(t, "revoke", "bob", "alice/my-project")
	mustRun(t, "repo", "set", "alice/my-project", "--private=false")
	out = mustRun(t, "repo", "ls", "alice")
	assert.Contains(t, out, "public")

	out = mustRun(t, "repo", "mv", "alice/my-project", "renamed")
	assert.Contains(t, out, "renamed to renamed")
	assert.NoDirExists(t, filepath.Join(root, "deposit", "alice", "my-project.git"))
	assert.DirExists(t, filepath.Join(root, "deposit", "alice", "renamed.git"))

	mustRun(t, "repo", "rm", "alice/renamed")
	assert.NoDirExists(t, filepath.Join(root, "deposit", "alice", "renamed.git"))

	_, errOut, code := runCtl(t, "repo", "rm", "alice/renamed")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	_, errOut, code = runCtl(t, "repo", "create", "no-slash")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "expected <owner>/<repository>")
}

func TestStatsCommand(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
	root := setupDeposit(t)
	mustRun(t, "user", "add", "alice", "-p", "secret")
	mustRun(t, "repo", "create", "alice/project")

	// Un commit empujado directamente al repo bare
	work := t.TempDir()
	env := append(os.Environ(),
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Alice", "GIT_AUTHOR_EMAIL=alice@deposit.local",
		"GIT_COMMITTER_NAME=Alice", "GIT_COMMITTER_EMAIL=alice@deposit.local",
	)
	require.NoError(t, os.WriteFile(filepath.Join(work, "README.md"), []byte("# project\n"), 0o644))
	for _, args := range [][]string{
		{"init", "-q"},
		{"checkout", "-q", "-b", "main"},
		{"add", "."},
		{"commit", "-q", "-m", "Initial commit"},
		{"push", "-q", filepath.Join(root, "deposit", "alice", "project.git"), "main"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = work
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	out := mustRun(t, "stats", "alice/project", "--by", "monthly")
	assert.Contains(t, out, "Jan")
	assert.Contains(t, out, "Dec")
	assert.Contains(t, strings.ToUpper(out), "TOTAL")

	out = mustRun(t, "stats", "alice/project", "--by", "daily")
	assert.Contains(t, out, "1")

	_, errOut, code := runCtl(t, "stats", "alice/project", "--by", "hourly")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown interval")
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(map[string]int{"2024-3-10": 1, "2024-3-9": 2, "2024-12-1": 1, "2024-1-31": 4})
	assert.Equal(t, []string{"2024-1-31", "2024-3-9", "2024-3-10", "2024-12-1"}, keys)

	keys = sortedKeys(map[string]int{"10": 0, "2": 0, "1": 0, "12": 0})
	assert.Equal(t, []string{"1", "2", "10", "12"}, keys)
}

func TestBucketLabel(t *testing.T) {
	assert.Equal(t, "Mon", bucketLabel("weekly", "1"))
	assert.Equal(t, "Dec", bucketLabel("monthly", "12"))
	assert.Equal(t, "2024-3-9", bucketLabel("daily", "2024-3-9"))
}
