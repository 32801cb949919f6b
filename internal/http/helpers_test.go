package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/notify"
	"github.com/livrasand/gitdeposit/internal/store"
)

const testAPIKey = "test-key"

// requireGit verifica que git esté disponible en el PATH
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// gitEnv aísla git de la configuración del usuario
func gitEnv(extra ...string) []string {
	env := append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=",
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Alice",
		"GIT_AUTHOR_EMAIL=alice@deposit.local",
		"GIT_COMMITTER_NAME=Alice",
		"GIT_COMMITTER_EMAIL=alice@deposit.local",
	)
	return append(env, extra...)
}

// gitCmd ejecuta un comando git en el directorio dado y retorna stdout+stderr combinados
func gitCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := gitCmd(t, dir, args...)
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return out
}

// writeFile crea el archivo (y sus directorios) dentro de work
func writeFile(t *testing.T, work, file, content string) {
	t.Helper()
	full := filepath.Join(work, file)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

type testDeposit struct {
	server *Server
	router *gin.Engine
	root   string
}

// newTestDeposit arma un servidor con almacenamiento en memoria, la usuaria
// alice (password "secret") y bob (password "hunter2")
func newTestDeposit(t *testing.T) *testDeposit {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	cfg := &config.Config{
		DepositRoot:      root,
		GitBinary:        "git",
		DefaultBranch:    "main",
		MaxPushSize:      1024 * 1024,
		StatsConcurrency: 4,
		APIKey:           testAPIKey,
	}
	s := NewServer(cfg, store.NewMemoryStore(), git.NewRunner("git"), notify.NewNotifier("", ""))

	ctx := context.Background()
	for _, u := range []struct{ name, password string }{{"alice", "secret"}, {"bob", "hunter2"}} {
		if _, err := s.Deposit.CreateUser(ctx, u.name, u.password, ""); err != nil {
			t.Fatalf("CreateUser(%s): %v", u.name, err)
		}
	}
	return &testDeposit{server: s, router: SetupRouter(s), root: root}
}

// createRepository registra el repositorio y lo inicializa en disco
func (d *testDeposit) createRepository(t *testing.T, owner, name string, private bool) *git.Repository {
	t.Helper()
	repo := &store.Repository{Owner: owner, Name: name, Private: private}
	if err := d.server.Deposit.CreateRepository(context.Background(), repo); err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	return d.server.Deposit.Hooks.Handle(owner, name)
}

// seed empuja directamente al repo bare dos commits en main y uno en dev
func (d *testDeposit) seed(t *testing.T, handle *git.Repository) {
	t.Helper()
	requireGit(t)

	work := t.TempDir()
	mustGit(t, work, "init", "-q")
	mustGit(t, work, "checkout", "-q", "-b", "main")
	writeFile(t, work, "README.md", "# project\n")
	mustGit(t, work, "add", ".")
	mustGit(t, work, "commit", "-q", "-m", "Initial commit")
	writeFile(t, work, "docs/guide.md", "guide\n")
	mustGit(t, work, "add", ".")
	mustGit(t, work, "commit", "-q", "-m", "Add guide")
	mustGit(t, work, "checkout", "-q", "-b", "dev")
	writeFile(t, work, "feature.txt", "wip\n")
	mustGit(t, work, "add", ".")
	mustGit(t, work, "commit", "-q", "-m", "Start feature")
	mustGit(t, work, "push", "-q", handle.Location, "main", "dev")
}

func (d *testDeposit) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

func (d *testDeposit) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return d.do(req)
}

func ajax() []string {
	return []string{"X-Requested-With", "XMLHttpRequest"}
}
