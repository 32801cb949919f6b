package git

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/livrasand/gitdeposit/internal/utils"
)

// DefaultRevision is used when no revision is given.
const DefaultRevision = "HEAD"

// Location returns the on-disk path of a user's repository.
func Location(root, username, repository string) string {
	return filepath.Join(root, username, repository+".git")
}

// Repository is a handle on a bare repository. It holds no state besides
// its location and is safe to recreate per request.
type Repository struct {
	Location string

	runner Runner
}

// Open returns a handle for location. It does not touch the filesystem.
func Open(location string, runner Runner) *Repository {
	if runner == nil {
		runner = NewRunner("git")
	}
	return &Repository{Location: location, runner: runner}
}

func (r *Repository) run(ctx context.Context, c Command) *Output {
	out, err := r.runner.Run(ctx, c)
	if err != nil {
		utils.LogError("git %q in %s: %v", c.Line, r.Location, err)
		return &Output{ExitCode: -1}
	}
	return out
}

// text runs a command in the repository directory and returns its stdout.
func (r *Repository) text(ctx context.Context, line string, args ...string) *Output {
	return r.run(ctx, Command{Line: line, Args: args, Location: r.Location, Chdir: true})
}

// IsValid probes the location with git rev-parse. A bare repository answers
// with no output at all; anything else is a diagnostic.
func (r *Repository) IsValid(ctx context.Context) bool {
	if !utils.Exists(r.Location) {
		return false
	}
	out, err := r.runner.Run(ctx, Command{Line: "git rev-parse", Location: r.Location, Chdir: true})
	if err != nil {
		return false
	}
	return len(out.Stdout) == 0 && strings.TrimSpace(out.Stderr) == "" && out.ExitCode == 0
}

// InitBare creates the location and initializes a bare repository in it.
// It does nothing when the location already exists.
func (r *Repository) InitBare(defaultBranch string) error {
	if utils.Exists(r.Location) {
		return nil
	}
	if err := utils.EnsureDir(r.Location); err != nil {
		return err
	}

	opts := &gogit.PlainInitOptions{Bare: true}
	if defaultBranch != "" {
		opts.InitOptions.DefaultBranch = plumbing.NewBranchReferenceName(defaultBranch)
	}
	if _, err := gogit.PlainInitWithOptions(r.Location, opts); err != nil {
		return fmt.Errorf("init bare repository %s: %w", r.Location, err)
	}
	utils.Log("Initialized bare repository: %s", r.Location)
	return nil
}

// service runs one of the pack services against the location.
func (r *Repository) service(ctx context.Context, line string, input []byte) ([]byte, error) {
	if !utils.Exists(r.Location) {
		return nil, fmt.Errorf("%s: %w", r.Location, ErrNotRepository)
	}
	out, err := r.runner.Run(ctx, Command{Line: line, Input: input, Location: r.Location})
	if err != nil {
		return nil, err
	}
	// receive-pack may exit non-zero after writing a valid report-status,
	// so only a silent failure is treated as one.
	if out.ExitCode != 0 && len(out.Stdout) == 0 {
		cerr := &CommandError{Line: line, ExitCode: out.ExitCode, Stderr: out.Stderr}
		if IsNotRepository(cerr) {
			return nil, fmt.Errorf("%s: %w", cerr.Error(), ErrNotRepository)
		}
		return nil, cerr
	}
	return out.Stdout, nil
}

// ReceivePack pipes a client's push payload into git receive-pack.
func (r *Repository) ReceivePack(ctx context.Context, payload []byte) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	return r.service(ctx, "git receive-pack --stateless-rpc", payload)
}

// UploadPack pipes a client's fetch negotiation into git upload-pack.
func (r *Repository) UploadPack(ctx context.Context, payload []byte) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	return r.service(ctx, "git upload-pack --stateless-rpc", payload)
}

// AdvertiseRefs returns the reference advertisement of service, which is
// either git-upload-pack or git-receive-pack.
func (r *Repository) AdvertiseRefs(ctx context.Context, service string) (string, error) {
	sub := strings.TrimPrefix(service, "git-")
	if sub != "upload-pack" && sub != "receive-pack" {
		return "", fmt.Errorf("unsupported service %q", service)
	}
	out, err := r.service(ctx, "git "+sub+" --stateless-rpc --advertise-refs", nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// LastUpdate returns the date of the newest commit in UTC. The boolean is
// false for a missing location or an empty history.
func (r *Repository) LastUpdate(ctx context.Context) (time.Time, bool) {
	if !utils.Exists(r.Location) {
		return time.Time{}, false
	}
	out := r.text(ctx, `git log -1 --format="%ai"`)
	line := strings.TrimSpace(out.Text())
	if line == "" {
		return time.Time{}, false
	}
	t, err := ParseDate(line)
	if err != nil {
		utils.LogDebug("last update of %s: %v", r.Location, err)
		return time.Time{}, false
	}
	return t, true
}

// LatestStatus describes the newest commit, e.g. "alice committed 1a2b3c4, 2 days ago".
func (r *Repository) LatestStatus(ctx context.Context) string {
	if !utils.Exists(r.Location) {
		return ""
	}
	out := r.text(ctx, `git log -1 --format="%cn committed %h, %cr"`)
	return strings.TrimSpace(out.Text())
}

// Commits lists the commits reachable from rev, newest first.
func (r *Repository) Commits(ctx context.Context, rev string) []*Commit {
	if !utils.Exists(r.Location) {
		return nil
	}
	rev = revisionOrHead(rev)
	if !ValidRevision(rev) {
		return nil
	}
	out := r.text(ctx, `git log --format="%H"`, rev, "--")

	var commits []*Commit
	for _, line := range out.Lines() {
		hash := strings.TrimSpace(line)
		if hash == "" {
			continue
		}
		commits = append(commits, &Commit{repo: r, Rev: rev, Hash: hash})
	}
	return commits
}

// Branches lists local branch names in git's order.
func (r *Repository) Branches(ctx context.Context) []string {
	if !utils.Exists(r.Location) {
		return nil
	}
	return parseBranches(r.text(ctx, "git branch --no-color").Lines())
}

// parseBranches drops the two-character marker git prints before each name.
func parseBranches(lines []string) []string {
	var branches []string
	for _, line := range lines {
		if len(line) <= 2 {
			continue
		}
		branches = append(branches, line[2:])
	}
	return branches
}

// Head returns the short name of the branch HEAD points to.
func (r *Repository) Head(ctx context.Context) string {
	if !utils.Exists(r.Location) {
		return ""
	}
	lines := r.text(ctx, "git symbolic-ref --short HEAD").Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}

// Tree lists the entries at rev, one level deep unless recursive.
func (r *Repository) Tree(ctx context.Context, recursive bool, rev string) []Object {
	if !utils.Exists(r.Location) {
		return nil
	}
	rev = revisionOrHead(rev)
	if !ValidRevision(rev) {
		return nil
	}
	line := "git ls-tree -z --full-tree"
	if recursive {
		line += " -r"
	}
	out := r.text(ctx, line, rev)
	return parseTree(r, rev, "", out.Stdout)
}

// parseTree turns NUL-terminated ls-tree records into objects. Each record is
// "<mode> <type> <hash>\t<name>"; names are joined onto prefix when set.
func parseTree(r *Repository, rev, prefix string, raw []byte) []Object {
	var objects []Object
	for _, record := range bytes.Split(raw, []byte{0}) {
		meta, name, ok := strings.Cut(string(record), "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) < 3 {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		switch Kind(fields[1]) {
		case KindBlob:
			objects = append(objects, &Blob{pathObject{repo: r, Rev: rev, Path: path}})
		case KindTree:
			objects = append(objects, &Tree{pathObject{repo: r, Rev: rev, Path: path}})
		}
	}
	return objects
}

// Reference is a named ref resolved to its target hash.
type Reference struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// References reads branches and tags straight from the repository storage.
func (r *Repository) References() ([]Reference, error) {
	repo, err := gogit.PlainOpen(r.Location)
	if err != nil {
		if err == gogit.ErrRepositoryNotExists {
			return nil, fmt.Errorf("%s: %w", r.Location, ErrNotRepository)
		}
		return nil, err
	}

	refs, err := repo.References()
	if err != nil {
		return nil, err
	}
	defer refs.Close()

	var out []Reference
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if ref.Name().IsBranch() || ref.Name().IsTag() {
			out = append(out, Reference{Name: ref.Name().String(), Hash: ref.Hash().String()})
		}
		return nil
	})
	return out, err
}

// ValidRevision rejects revisions git would read as an option or a range.
func ValidRevision(rev string) bool {
	return rev != "" && !strings.HasPrefix(rev, "-") && !strings.Contains(rev, "..") &&
		!strings.ContainsAny(rev, " \t\n\x00:")
}

func revisionOrHead(rev string) string {
	if rev == "" {
		return DefaultRevision
	}
	return rev
}
