package hashtree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/hashtree"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestHash_Deterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":       "hello",
		"dir/b.txt":   "world",
		"dir/c/d.txt": "nested",
	})

	first, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	second, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, string(first), 40)
}

func TestHash_ChangesWithContent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "hello"})

	before, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"a.txt": "hello!"})

	after, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestHash_IgnoresEmptyDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "hello"})

	before, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	after, err := hashtree.Hash(root, nil)
	require.NoError(t, err)

	require.Equal(t, before, after)
}

func TestHash_ExcludesConfiguredSubtree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "hello"})

	before, err := hashtree.Hash(root, hashtree.ExcludeDirs("snapshots"))
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"snapshots/v1/results.csv": "x,y\n1,2\n"})

	after, err := hashtree.Hash(root, hashtree.ExcludeDirs("snapshots"))
	require.NoError(t, err)

	require.Equal(t, before, after, "excluded subtree must not affect the hash")
}

func TestHash_RenamePathChangesDigest(t *testing.T) {
	t.Parallel()

	rootA := t.TempDir()
	writeTree(t, rootA, map[string]string{"a.txt": "hello"})

	rootB := t.TempDir()
	writeTree(t, rootB, map[string]string{"b.txt": "hello"})

	hashA, err := hashtree.Hash(rootA, nil)
	require.NoError(t, err)

	hashB, err := hashtree.Hash(rootB, nil)
	require.NoError(t, err)

	require.NotEqual(t, hashA, hashB, "path is part of the canonical line, not just content")
}
