package externalsync_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/resource/externalsync"
)

// fakeTool writes a shell script standing in for rclone: "tool mode src
// dst" copies src's contents into dst, mirroring exactly (removing files
// not present in src) regardless of mode, which is enough to exercise the
// adaptor's subprocess-invocation contract.
func fakeTool(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake sync tool script is POSIX shell only")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fakesync")

	script := "#!/bin/sh\nset -e\nmode=$1; src=$2; dst=$3\nmkdir -p \"$dst\"\nrm -rf \"$dst\"/*\ncp -a \"$src\"/. \"$dst\"/ 2>/dev/null || true\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func TestSnapshotRestore_LocalMaster(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tool := fakeTool(t)
	root := t.TempDir()
	blobDir := t.TempDir()
	remote := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("1,2,3"), 0o644))

	adaptor := externalsync.New("ext", root, blobDir, remote, externalsync.DirectionLocalMaster, externalsync.ModeSync, tool)

	require.NoError(t, adaptor.PrecheckSnapshot(ctx))

	v1, tok1, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("9,9,9"), 0o644))

	v2, _, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)

	require.NoError(t, adaptor.Restore(ctx, v1, tok1))

	content, err := os.ReadFile(filepath.Join(root, "a.csv"))
	require.NoError(t, err)
	require.Equal(t, "1,2,3", string(content))
}

func TestSnapshot_RemoteMasterResyncsFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tool := fakeTool(t)
	root := t.TempDir()
	remote := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(remote, "b.csv"), []byte("remote-content"), 0o644))

	adaptor := externalsync.New("ext", root, t.TempDir(), remote, externalsync.DirectionRemoteMaster, externalsync.ModeSync, tool)

	_, _, err := adaptor.Snapshot(ctx)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(root, "b.csv"))
	require.NoError(t, err)
	require.Equal(t, "remote-content", string(content))
}

func TestPush_RefusesWhenReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tool := fakeTool(t)

	adaptor := externalsync.New("ext", t.TempDir(), t.TempDir(), t.TempDir(), externalsync.DirectionLocalMaster, externalsync.ModeSync, tool)
	adaptor.SetReadOnly(true)

	err := adaptor.Push(ctx)
	require.Error(t, err)
}
