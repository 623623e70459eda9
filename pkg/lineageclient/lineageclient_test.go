package lineageclient_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/store"
	"github.com/dwspace/dwc/pkg/lineageclient"
)

func newWorkspace(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	s := store.Open(root)
	require.NoError(t, s.Init())

	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "train.csv"), []byte("a,b\n1,2\n"), 0o644))

	require.NoError(t, s.MutateCatalogue(func(resources *[]model.Resource) error {
		*resources = append(*resources, model.Resource{
			Name: "data", Role: model.RoleSourceData, Backend: model.BackendLocalFiles,
		})

		return nil
	}))
	require.NoError(t, s.SetLocalParams("data", model.LocalParams{Path: dataDir}))

	return root
}

func TestRun_RecordsSourceCertificateAndStepOutput(t *testing.T) {
	t.Parallel()

	root := newWorkspace(t)
	client := lineageclient.Open(root)

	ranMetrics := map[string]float64{"accuracy": 0.87}

	err := client.Run(
		context.Background(),
		"train",
		[]lineageclient.Ref{{Resource: "data", Subpath: "train.csv"}},
		[]lineageclient.Ref{{Resource: "data", Subpath: "model.pt"}},
		lineageclient.Ref{Resource: "data"},
		map[string]string{"epochs": "3"},
		func(ctx context.Context) (map[string]float64, error) {
			return ranMetrics, nil
		},
	)
	require.NoError(t, err)

	doc, err := store.ReadLineage(store.Open(root).CurrentLineageDir())
	require.NoError(t, err)
	require.Len(t, doc.Steps, 1)
	require.Equal(t, "train", doc.Steps[0].Name)
	require.Equal(t, ranMetrics, doc.Steps[0].Metrics)
	require.Len(t, doc.Sources, 1)
}

func TestBeginStep_UnknownResourceFails(t *testing.T) {
	t.Parallel()

	root := newWorkspace(t)
	client := lineageclient.Open(root)

	_, err := client.BeginStep(
		context.Background(),
		"train",
		[]lineageclient.Ref{{Resource: "nope"}},
		nil,
		lineageclient.Ref{Resource: "data"},
	)
	require.Error(t, err)

	var unknown *lineageclient.UnknownResourceError
	require.ErrorAs(t, err, &unknown)
}
