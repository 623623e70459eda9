package rotate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/rotate"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMove_RelocatesFilesPreservingRelativePaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "metrics.json"), `{"acc":0.9}`)
	writeFile(t, filepath.Join(root, "plots", "loss.png"), "png-bytes")

	require.NoError(t, rotate.Move(root, "snapshots/host-tag1", nil))

	moved, err := os.ReadFile(filepath.Join(root, "snapshots", "host-tag1", "metrics.json"))
	require.NoError(t, err)
	require.Equal(t, `{"acc":0.9}`, string(moved))

	movedPlot, err := os.ReadFile(filepath.Join(root, "snapshots", "host-tag1", "plots", "loss.png"))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(movedPlot))

	_, err = os.Stat(filepath.Join(root, "metrics.json"))
	require.True(t, os.IsNotExist(err))
}

func TestMove_RespectsExcludeSet(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "do not move me")
	writeFile(t, filepath.Join(root, "metrics.json"), `{"acc":0.9}`)

	exclude := func(relpath string) bool { return relpath == "README.md" }
	require.NoError(t, rotate.Move(root, "snapshots/host-tag1", exclude))

	content, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	require.Equal(t, "do not move me", string(content))

	_, err = os.Stat(filepath.Join(root, "snapshots", "host-tag1", "README.md"))
	require.True(t, os.IsNotExist(err))
}

func TestMove_IgnoresExistingSnapshotsTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "snapshots", "host-oldtag", "metrics.json"), "old")
	writeFile(t, filepath.Join(root, "metrics.json"), "new")

	require.NoError(t, rotate.Move(root, "snapshots/host-newtag", nil))

	old, err := os.ReadFile(filepath.Join(root, "snapshots", "host-oldtag", "metrics.json"))
	require.NoError(t, err)
	require.Equal(t, "old", string(old))

	fresh, err := os.ReadFile(filepath.Join(root, "snapshots", "host-newtag", "metrics.json"))
	require.NoError(t, err)
	require.Equal(t, "new", string(fresh))
}

func TestMove_MergesIntoExistingTargetAndErrorsOnCollision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "snapshots", "shared-tag", "a.json"), "from-host-a")
	writeFile(t, filepath.Join(root, "b.json"), "from-host-b")

	require.NoError(t, rotate.Move(root, "snapshots/shared-tag", nil))

	a, err := os.ReadFile(filepath.Join(root, "snapshots", "shared-tag", "a.json"))
	require.NoError(t, err)
	require.Equal(t, "from-host-a", string(a))

	b, err := os.ReadFile(filepath.Join(root, "snapshots", "shared-tag", "b.json"))
	require.NoError(t, err)
	require.Equal(t, "from-host-b", string(b))

	root2 := t.TempDir()
	writeFile(t, filepath.Join(root2, "snapshots", "shared-tag", "a.json"), "existing")
	writeFile(t, filepath.Join(root2, "a.json"), "colliding")

	err = rotate.Move(root2, "snapshots/shared-tag", nil)
	require.Error(t, err)
}
