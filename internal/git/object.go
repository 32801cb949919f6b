package git

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// Kind tags the variants of Object.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Object is the behaviour shared by blobs, trees and commits. Metadata is
// read from git on every call and never cached.
type Object interface {
	Kind() Kind
	Revision() string
	Subject(ctx context.Context) string
	CommitterDate(ctx context.Context) (time.Time, error)
	CommitterEmail(ctx context.Context) string
	CommitterName(ctx context.Context) string
}

func IsBlob(o Object) bool   { return o.Kind() == KindBlob }
func IsTree(o Object) bool   { return o.Kind() == KindTree }
func IsCommit(o Object) bool { return o.Kind() == KindCommit }

// Show dispatches to the variant's own Show: []byte for a blob, []Object for
// a tree and the git show text for a commit. Unknown variants give nil.
func Show(ctx context.Context, o Object) any {
	switch v := o.(type) {
	case *Blob:
		return v.Show(ctx)
	case *Tree:
		return v.Show(ctx)
	case *Commit:
		return v.Show(ctx)
	}
	return nil
}

// logField runs a one-line git log query and returns its trimmed output.
func logField(ctx context.Context, r *Repository, format string, args ...string) string {
	out := r.text(ctx, fmt.Sprintf("git log -1 --format=%q", format), args...)
	return strings.TrimSpace(out.Text())
}

func logDate(ctx context.Context, r *Repository, args ...string) (time.Time, error) {
	return ParseDate(logField(ctx, r, "%ci", args...))
}

// pathObject holds what blobs and trees have in common: the last commit
// touching the path at the revision.
type pathObject struct {
	repo *Repository
	Rev  string
	Path string
}

func (p *pathObject) Revision() string { return p.Rev }

// Name is the last element of the path.
func (p *pathObject) Name() string { return path.Base(p.Path) }

func (p *pathObject) scope() []string {
	return []string{revisionOrHead(p.Rev), "--", p.Path}
}

func (p *pathObject) Subject(ctx context.Context) string {
	return logField(ctx, p.repo, "%s", p.scope()...)
}

func (p *pathObject) CommitterDate(ctx context.Context) (time.Time, error) {
	return logDate(ctx, p.repo, p.scope()...)
}

func (p *pathObject) CommitterEmail(ctx context.Context) string {
	return logField(ctx, p.repo, "%ce", p.scope()...)
}

func (p *pathObject) CommitterName(ctx context.Context) string {
	return logField(ctx, p.repo, "%cn", p.scope()...)
}

// Blob is a file at a revision.
type Blob struct {
	pathObject
}

// NewBlob returns the blob at path in rev.
func NewBlob(r *Repository, rev, path string) *Blob {
	return &Blob{pathObject{repo: r, Rev: revisionOrHead(rev), Path: strings.Trim(path, "/")}}
}

func (b *Blob) Kind() Kind { return KindBlob }

// Show returns the raw file contents.
func (b *Blob) Show(ctx context.Context) []byte {
	if !ValidRevision(b.Rev) {
		return nil
	}
	out := b.repo.text(ctx, "git cat-file -p", b.Rev+":"+b.Path)
	return out.Stdout
}

// Tree is a directory at a revision.
type Tree struct {
	pathObject
}

// NewTree returns the tree at path in rev.
func NewTree(r *Repository, rev, path string) *Tree {
	return &Tree{pathObject{repo: r, Rev: revisionOrHead(rev), Path: strings.Trim(path, "/")}}
}

func (t *Tree) Kind() Kind { return KindTree }

// Show lists the immediate children of the tree.
func (t *Tree) Show(ctx context.Context) []Object {
	if !ValidRevision(t.Rev) {
		return nil
	}
	out := t.repo.text(ctx, "git ls-tree -z --full-tree", t.Rev+":"+t.Path)
	return parseTree(t.repo, t.Rev, t.Path, out.Stdout)
}

// Commit is a single commit addressed by its full hash.
type Commit struct {
	repo *Repository
	Rev  string
	Hash string
}

// NewCommit returns the commit with the given hash. rev is the revision the
// commit was reached from.
func NewCommit(r *Repository, rev, hash string) (*Commit, error) {
	if !plumbing.IsHash(hash) {
		return nil, fmt.Errorf("invalid commit hash %q", hash)
	}
	return &Commit{repo: r, Rev: revisionOrHead(rev), Hash: hash}, nil
}

func (c *Commit) Kind() Kind { return KindCommit }

func (c *Commit) Revision() string { return c.Rev }

// Short returns the abbreviated hash.
func (c *Commit) Short() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

func (c *Commit) Subject(ctx context.Context) string {
	return logField(ctx, c.repo, "%s", c.Hash)
}

func (c *Commit) CommitterDate(ctx context.Context) (time.Time, error) {
	return logDate(ctx, c.repo, c.Hash)
}

// CommitterEmail queries git log with both the revision and the hash, so the
// answer is the newest commit reachable from either of them.
func (c *Commit) CommitterEmail(ctx context.Context) string {
	return logField(ctx, c.repo, "%ce", revisionOrHead(c.Rev), c.Hash)
}

// CommitterName has the same two-revision scope as CommitterEmail.
func (c *Commit) CommitterName(ctx context.Context) string {
	return logField(ctx, c.repo, "%cn", revisionOrHead(c.Rev), c.Hash)
}

// Show returns the full git show output for the commit.
func (c *Commit) Show(ctx context.Context) string {
	out := c.repo.text(ctx, "git show", c.Hash)
	return out.Text()
}
