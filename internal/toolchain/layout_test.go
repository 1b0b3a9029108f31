package toolchain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func TestResolveLayout(t *testing.T) {
	root := t.TempDir()
	l, err := Resolve(root)
	require.NoError(t, err)

	require.Equal(t, root, l.Root)
	require.Equal(t, filepath.Join(root, "src", "build", "cato", "libCatoPass.so"), l.PassPlugin)
	require.Equal(t, filepath.Join(root, "src", "build", "cato", "rtlib"), l.RuntimeDir)
	require.Equal(t, filepath.Join(l.RuntimeDir, "libCatoRuntime.so"), l.RuntimeLib)
	require.Equal(t, filepath.Join(root, "src", "build", "cato", "rtlib_io", "libCatoIORuntime.so"), l.IORuntimeLib)
}

func TestResolveLayoutRelativeRoot(t *testing.T) {
	l, err := Resolve("cato")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(l.Root))
	require.True(t, filepath.IsAbs(l.PassPlugin))
}

func TestRevisionNotARepository(t *testing.T) {
	rev, err := Revision(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, rev)
}

func TestRevisionFromCheckout(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	rev, err := Revision(root)
	require.NoError(t, err)
	require.Equal(t, hash.String(), rev)
}
