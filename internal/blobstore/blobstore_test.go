package blobstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/blobstore"
	"github.com/dwspace/dwc/internal/hashtree"
)

func TestCaptureAndMaterializeRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	storeDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	treeHash, perFile, err := hashtree.HashFiles(root, nil)
	require.NoError(t, err)

	store := blobstore.New(storeDir)
	require.NoError(t, store.Capture(root, perFile))
	require.NoError(t, store.RecordSnapshot(string(treeHash), perFile))

	snapshots, err := store.Snapshots()
	require.NoError(t, err)
	require.Contains(t, snapshots, string(treeHash))

	dest := t.TempDir()
	require.NoError(t, store.Materialize(dest, snapshots[string(treeHash)]))

	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestMaterialize_PrunesFilesNotInEntries(t *testing.T) {
	t.Parallel()

	storeDir := t.TempDir()
	dest := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale.txt"), []byte("old"), 0o644))

	store := blobstore.New(storeDir)
	require.NoError(t, store.Materialize(dest, map[string]string{}))

	_, err := os.Stat(filepath.Join(dest, "stale.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestSnapshots_EmptyBeforeAnyRecord(t *testing.T) {
	t.Parallel()

	store := blobstore.New(t.TempDir())

	snapshots, err := store.Snapshots()
	require.NoError(t, err)
	require.Empty(t, snapshots)
}
