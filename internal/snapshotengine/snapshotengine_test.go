package snapshotengine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/snapshotengine"
	"github.com/dwspace/dwc/internal/store"
)

func newWorkspace(t *testing.T) (*store.Store, string) {
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
			Name:         "data",
			Role:         model.RoleSourceData,
			Backend:      model.BackendLocalFiles,
			SharedParams: map[string]string{},
		})

		return nil
	}))

	require.NoError(t, s.SetLocalParams("data", model.LocalParams{Path: dataDir}))

	return s, root
}

func TestSnapshot_ProducesManifestAndHistoryEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newWorkspace(t)

	engine := snapshotengine.New(s, registry.Identity{Name: "tester", Email: "tester@example.com"})

	result, err := engine.Snapshot(ctx, "v1", "first snapshot", nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hash)
	require.False(t, result.Reused)

	manifest, err := s.ReadManifest(result.Hash)
	require.NoError(t, err)
	require.Len(t, manifest.Resources, 1)
	require.Equal(t, "data", manifest.Resources[0].Name)

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, result.Hash, history[0].Hash)
	require.Equal(t, []string{"v1"}, history[0].Tags)
}

func TestSnapshot_RefusesTagReuseOnSameHost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newWorkspace(t)

	engine := snapshotengine.New(s, registry.Identity{Name: "tester", Email: "tester@example.com"})

	_, err := engine.Snapshot(ctx, "v1", "first", nil, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "data", "a.csv"), []byte("9,9,9"), 0o644))

	_, err = engine.Snapshot(ctx, "v1", "second", nil, false)
	require.Error(t, err)
}

func TestSnapshot_ForceTagMovesTagToNewSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newWorkspace(t)

	engine := snapshotengine.New(s, registry.Identity{Name: "tester", Email: "tester@example.com"})

	first, err := engine.Snapshot(ctx, "v1", "first", nil, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "data", "a.csv"), []byte("9,9,9"), 0o644))

	second, err := engine.Snapshot(ctx, "v1", "second", nil, true)
	require.NoError(t, err)
	require.NotEqual(t, first.Hash, second.Hash)

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 2)

	hash, err := store.ResolveRef(history, history[0].Hostname, "v1")
	require.NoError(t, err)
	require.Equal(t, second.Hash, hash)
}

func TestSnapshot_IdempotentForUnchangedContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newWorkspace(t)

	engine := snapshotengine.New(s, registry.Identity{Name: "tester", Email: "tester@example.com"})

	r1, err := engine.Snapshot(ctx, "", "first", nil, false)
	require.NoError(t, err)

	r2, err := engine.Snapshot(ctx, "", "second", nil, false)
	require.NoError(t, err)

	require.Equal(t, r1.Hash, r2.Hash)
	require.True(t, r2.Reused)

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
}
