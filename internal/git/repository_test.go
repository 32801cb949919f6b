package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	require.Equal(t, filepath.Join("/srv/deposit", "alice", "project.git"), Location("/srv/deposit", "alice", "project"))
}

func TestInitBareThenIsValid(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := Open(Location(t.TempDir(), "alice", "project"), nil)

	require.False(t, repo.IsValid(ctx))
	require.NoError(t, repo.InitBare("main"))
	require.True(t, repo.IsValid(ctx))

	// Idempotente sobre un directorio existente
	require.NoError(t, repo.InitBare("main"))
	require.True(t, repo.IsValid(ctx))

	require.NoError(t, os.RemoveAll(repo.Location))
	require.False(t, repo.IsValid(ctx))
}

func TestIsValidRejectsPlainDirectory(t *testing.T) {
	requireGit(t)
	dir := filepath.Join(t.TempDir(), "plain.git")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.False(t, Open(dir, nil).IsValid(context.Background()))
}

func TestMissingLocationDegrades(t *testing.T) {
	ctx := context.Background()
	repo := Open(filepath.Join(t.TempDir(), "ghost.git"), nil)

	_, ok := repo.LastUpdate(ctx)
	require.False(t, ok)
	require.Empty(t, repo.LatestStatus(ctx))
	require.Empty(t, repo.Branches(ctx))
	require.Empty(t, repo.Commits(ctx, ""))
	require.Empty(t, repo.Tree(ctx, false, ""))
	require.Empty(t, repo.Head(ctx))

	_, err := repo.UploadPack(ctx, nil)
	require.ErrorIs(t, err, ErrNotRepository)
	_, err = repo.AdvertiseRefs(ctx, "git-receive-pack")
	require.True(t, IsNotRepository(err))
}

func TestEmptyRepository(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := Open(Location(t.TempDir(), "alice", "empty"), nil)
	require.NoError(t, repo.InitBare("main"))

	_, ok := repo.LastUpdate(ctx)
	require.False(t, ok)
	require.Empty(t, repo.Branches(ctx))
	require.Equal(t, "main", repo.Head(ctx))
}

func TestBranchesKeepGitOrder(t *testing.T) {
	repo := seedRepository(t)
	require.Equal(t, []string{"dev", "main"}, repo.Branches(context.Background()))
}

func TestParseBranches(t *testing.T) {
	require.Equal(t, []string{"dev", "main"}, parseBranches([]string{"  dev", "* main", ""}))
}

func TestHead(t *testing.T) {
	repo := seedRepository(t)
	require.Equal(t, "main", repo.Head(context.Background()))
}

func TestLastUpdateIsUTC(t *testing.T) {
	repo := seedRepository(t)

	last, ok := repo.LastUpdate(context.Background())
	require.True(t, ok)
	require.Equal(t, time.UTC, last.Location())
	require.Equal(t, "2024-03-12T09:30:00+0000", FormatUTC(last))
}

func TestLatestStatus(t *testing.T) {
	repo := seedRepository(t)

	status := repo.LatestStatus(context.Background())
	require.Regexp(t, `^Alice committed [0-9a-f]{7,}, .+ ago$`, status)
}

func TestCommitsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := seedRepository(t)

	main := repo.Commits(ctx, "")
	require.Len(t, main, 2)
	require.Equal(t, "Add guide", main[0].Subject(ctx))
	require.Equal(t, "Initial commit", main[1].Subject(ctx))

	dev := repo.Commits(ctx, "dev")
	require.Len(t, dev, 3)
	require.Equal(t, "Start feature", dev[0].Subject(ctx))

	require.Empty(t, repo.Commits(ctx, "--all"))
}

func TestTree(t *testing.T) {
	ctx := context.Background()
	repo := seedRepository(t)

	top := repo.Tree(ctx, false, "HEAD")
	require.Len(t, top, 2)
	require.Equal(t, KindBlob, top[0].Kind())
	require.Equal(t, "README.md", top[0].(*Blob).Path)
	require.Equal(t, KindTree, top[1].Kind())
	require.Equal(t, "docs", top[1].(*Tree).Path)

	all := repo.Tree(ctx, true, "dev")
	var paths []string
	for _, o := range all {
		require.True(t, IsBlob(o))
		paths = append(paths, o.(*Blob).Path)
	}
	require.Equal(t, []string{"README.md", "docs/guide.md", "feature.txt"}, paths)
}

func TestParseTreeSkipsSubmodules(t *testing.T) {
	raw := []byte("100644 blob aaaa\tREADME.md\x00160000 commit bbbb\tvendor/lib\x00040000 tree cccc\tsrc\x00")
	objs := parseTree(nil, "HEAD", "", raw)
	require.Len(t, objs, 2)
	require.True(t, IsBlob(objs[0]))
	require.True(t, IsTree(objs[1]))
}

func TestReferences(t *testing.T) {
	repo := seedRepository(t)

	refs, err := repo.References()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, ref := range refs {
		require.Len(t, ref.Hash, 40)
		names[ref.Name] = true
	}
	require.True(t, names["refs/heads/main"])
	require.True(t, names["refs/heads/dev"])

	_, err = Open(filepath.Join(t.TempDir(), "none.git"), nil).References()
	require.ErrorIs(t, err, ErrNotRepository)
}

func TestValidRevision(t *testing.T) {
	for _, rev := range []string{"HEAD", "main", "feature/x", "v1.0"} {
		require.True(t, ValidRevision(rev), rev)
	}
	for _, rev := range []string{"", "--all", "main..dev", "HEAD:README.md", "a b"} {
		require.False(t, ValidRevision(rev), rev)
	}
}
