package localfiles_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/resource/localfiles"
)

func TestSnapshotRestoreLocalFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	blobDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("1,2,3"), 0o644))

	adaptor := localfiles.New("raw-data", root, blobDir)

	v1, tok1, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("4,5,6"), 0o644))

	v2, _, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)

	require.NoError(t, adaptor.PrecheckRestore(ctx, v1, tok1))
	require.NoError(t, adaptor.Restore(ctx, v1, tok1))

	content, err := os.ReadFile(filepath.Join(root, "a.csv"))
	require.NoError(t, err)
	require.Equal(t, "1,2,3", string(content))
}

func TestRestore_RemovesFilesNotInSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	blobDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("1"), 0o644))

	adaptor := localfiles.New("raw-data", root, blobDir)

	v1, tok1, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.csv"), []byte("2"), 0o644))

	_, _, err = adaptor.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, adaptor.Restore(ctx, v1, tok1))

	_, err = os.Stat(filepath.Join(root, "b.csv"))
	require.True(t, os.IsNotExist(err))
}

func TestPrecheckRestore_RefusesUnknownHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	blobDir := t.TempDir()

	adaptor := localfiles.New("raw-data", root, blobDir)

	err := adaptor.PrecheckRestore(ctx, "deadbeef", "deadbeef")
	require.Error(t, err)
}
