package gitsubdir_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/resource/gitsubdir"
)

func initWorkspaceRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gitrepo.Init(dir)
	require.NoError(t, err)
	defer repo.Free()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "a.csv"), []byte("1,2,3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("unrelated"), 0o644))

	_, err = repo.CommitAll("initial", "tester", "tester@example.com")
	require.NoError(t, err)

	return dir
}

func TestSnapshotRestoreGitSubdir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := initWorkspaceRepo(t)

	adaptor := gitsubdir.New("source-data", dir, "data")

	v1, tok1, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "a.csv"), []byte("4,5,6"), 0o644))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	_, err = repo.CommitAll("update data", "tester", "tester@example.com")
	require.NoError(t, err)
	repo.Free()

	v2, tok2, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)
	require.NotEqual(t, tok1, tok2)

	require.NoError(t, adaptor.PrecheckRestore(ctx, v1, tok1))
	require.NoError(t, adaptor.Restore(ctx, v1, tok1))

	content, err := os.ReadFile(filepath.Join(dir, "data", "a.csv"))
	require.NoError(t, err)
	require.Equal(t, "1,2,3", string(content))

	// The sibling file outside the subpath is untouched by restore.
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	require.Equal(t, "unrelated", string(readme))
}

func TestSnapshot_IgnoresContentOutsideSubpath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := initWorkspaceRepo(t)

	adaptor := gitsubdir.New("source-data", dir, "data")

	v1, _, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed"), 0o644))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	_, err = repo.CommitAll("unrelated change", "tester", "tester@example.com")
	require.NoError(t, err)
	repo.Free()

	v2, _, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestPrecheckRestore_RefusesDirtySubpath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := initWorkspaceRepo(t)

	adaptor := gitsubdir.New("source-data", dir, "data")

	v1, tok1, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "a.csv"), []byte("9,9,9"), 0o644))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	_, err = repo.CommitAll("advance", "tester", "tester@example.com")
	require.NoError(t, err)
	repo.Free()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "untracked.csv"), []byte("oops"), 0o644))

	err = adaptor.PrecheckRestore(ctx, v1, tok1)
	require.Error(t, err)
}
