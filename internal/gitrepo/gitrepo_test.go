package gitrepo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/gitrepo"
)

func TestCommitAllAndResetHard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	repo, err := gitrepo.Init(dir)
	require.NoError(t, err)
	defer repo.Free()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.py"), []byte("print('a')"), 0o644))

	v1, err := repo.CommitAll("v1", "tester", "tester@example.com")
	require.NoError(t, err)
	require.False(t, v1.IsZero())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.py"), []byte("print('a')#x"), 0o644))

	v2, err := repo.CommitAll("v2", "tester", "tester@example.com")
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)

	head, err := repo.Head()
	require.NoError(t, err)
	require.Equal(t, v2, head)

	require.NoError(t, repo.ResetHard(v1))

	content, err := os.ReadFile(filepath.Join(dir, "t.py"))
	require.NoError(t, err)
	require.Equal(t, "print('a')", string(content))
}

func TestCommitAll_NoopWhenNothingChanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	repo, err := gitrepo.Init(dir)
	require.NoError(t, err)
	defer repo.Free()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	first, err := repo.CommitAll("first", "tester", "tester@example.com")
	require.NoError(t, err)

	second, err := repo.CommitAll("first again", "tester", "tester@example.com")
	require.NoError(t, err)

	require.Equal(t, first, second)
}
