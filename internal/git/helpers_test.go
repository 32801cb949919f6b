package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// requireGit verifica que git esté disponible en el PATH
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// gitCmd ejecuta git en dir con identidad y fechas fijas
func gitCmd(t *testing.T, dir string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Alice",
		"GIT_AUTHOR_EMAIL=alice@deposit.local",
		"GIT_COMMITTER_NAME=Alice",
		"GIT_COMMITTER_EMAIL=alice@deposit.local",
	)
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

// commitAt escribe un archivo y lo commitea con la fecha indicada
func commitAt(t *testing.T, work, file, content, message, date string, extra ...string) {
	t.Helper()
	full := filepath.Join(work, file)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
	env := append([]string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}, extra...)
	gitCmd(t, work, env, "add", ".")
	gitCmd(t, work, env, "commit", "-q", "-m", message)
}

// seedRepository crea un repo bare con dos ramas (main y dev) y tres commits:
//
//	main: README.md, docs/guide.md
//	dev:  main + feature.txt (committed by Bob)
func seedRepository(t *testing.T) *Repository {
	t.Helper()
	requireGit(t)

	root := t.TempDir()
	repo := Open(Location(root, "alice", "project"), NewRunner("git"))
	if err := repo.InitBare("main"); err != nil {
		t.Fatalf("InitBare: %v", err)
	}

	work := t.TempDir()
	gitCmd(t, work, nil, "init", "-q")
	gitCmd(t, work, nil, "checkout", "-q", "-b", "main")
	commitAt(t, work, "README.md", "# project\n", "Initial commit", "2024-03-11T10:00:00+02:00")
	commitAt(t, work, "docs/guide.md", "guide\n", "Add guide", "2024-03-12T09:30:00+00:00")
	gitCmd(t, work, nil, "checkout", "-q", "-b", "dev")
	commitAt(t, work, "feature.txt", "wip\n", "Start feature", "2024-03-13T18:00:00-05:00",
		"GIT_COMMITTER_NAME=Bob", "GIT_COMMITTER_EMAIL=bob@deposit.local")
	gitCmd(t, work, nil, "push", "-q", repo.Location, "main", "dev")

	return repo
}
