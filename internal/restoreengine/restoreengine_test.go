package restoreengine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/restoreengine"
	"github.com/dwspace/dwc/internal/snapshotengine"
	"github.com/dwspace/dwc/internal/store"
)

func newWorkspace(t *testing.T) *store.Store {
	t.Helper()

	root := t.TempDir()
	repo, err := gitrepo.Init(root)
	require.NoError(t, err)
	defer repo.Free()

	s := store.Open(root)
	require.NoError(t, s.Init())

	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a.csv"), []byte("1,2,3"), 0o644))

	require.NoError(t, s.MutateCatalogue(func(rs *[]model.Resource) error {
		*rs = append(*rs, model.Resource{
			Name:    "data",
			Role:    model.RoleSourceData,
			Backend: model.BackendLocalFiles,
		})

		return nil
	}))
	require.NoError(t, s.SetLocalParams("data", model.LocalParams{Path: dataDir}))

	return s
}

func TestRestore_ReplaysPriorSnapshotContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newWorkspace(t)
	identity := registry.Identity{Name: "tester", Email: "tester@example.com"}

	snap := snapshotengine.New(s, identity)
	v1, err := snap.Snapshot(ctx, "v1", "first", nil, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "data", "a.csv"), []byte("9,9,9"), 0o644))

	_, err = snap.Snapshot(ctx, "v2", "second", nil, false)
	require.NoError(t, err)

	restore := restoreengine.New(s, identity)
	report, err := restore.Restore(ctx, restoreengine.Options{Ref: "v1"})
	require.NoError(t, err)
	require.Contains(t, report.Restored, "data")
	require.Empty(t, report.Failed)

	content, err := os.ReadFile(filepath.Join(s.Root(), "data", "a.csv"))
	require.NoError(t, err)
	require.Equal(t, "1,2,3", string(content))

	_ = v1
}

func TestRestore_RefusesAmbiguousSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newWorkspace(t)
	identity := registry.Identity{Name: "tester", Email: "tester@example.com"}

	snap := snapshotengine.New(s, identity)
	_, err := snap.Snapshot(ctx, "v1", "first", nil, false)
	require.NoError(t, err)

	restore := restoreengine.New(s, identity)
	_, err = restore.Restore(ctx, restoreengine.Options{
		Ref:   "v1",
		Only:  map[string]bool{"data": true},
		Leave: map[string]bool{"data": true},
	})
	require.Error(t, err)
}
