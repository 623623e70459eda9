package syncengine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/store"
	"github.com/dwspace/dwc/internal/syncengine"
)

func newOriginAndClone(t *testing.T) (originURL, cloneDir string) {
	t.Helper()

	origin := t.TempDir()
	repo, err := gitrepo.Init(origin)
	require.NoError(t, err)

	s := store.Open(origin)
	require.NoError(t, s.Init())

	require.NoError(t, os.WriteFile(filepath.Join(origin, "README.md"), []byte("hi"), 0o644))

	_, err = repo.CommitAll("initial", "tester", "tester@example.com")
	require.NoError(t, err)
	repo.Free()

	return origin, filepath.Join(t.TempDir(), "clone")
}

func TestClone_MaterialisesWorkspaceRepoWithEmptyCatalogue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	originURL, cloneDir := newOriginAndClone(t)

	identity := registry.Identity{Name: "tester", Email: "tester@example.com"}

	s, err := syncengine.Clone(ctx, originURL, cloneDir, identity)
	require.NoError(t, err)

	catalogue, err := s.Catalogue()
	require.NoError(t, err)
	require.Empty(t, catalogue)

	content, err := os.ReadFile(filepath.Join(cloneDir, "README.md"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(content))
}

func TestPush_NoOpWithEmptyCatalogueAndConfiguredRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	originURL, cloneDir := newOriginAndClone(t)

	identity := registry.Identity{Name: "tester", Email: "tester@example.com"}

	s, err := syncengine.Clone(ctx, originURL, cloneDir, identity)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(cloneDir, "notes.txt"), []byte("x"), 0o644))

	repo, err := gitrepo.Open(cloneDir)
	require.NoError(t, err)
	_, err = repo.CommitAll("add notes", "tester", "tester@example.com")
	require.NoError(t, err)
	repo.Free()

	engine := syncengine.New(s, identity)
	require.NoError(t, engine.Push(ctx, nil))
}
