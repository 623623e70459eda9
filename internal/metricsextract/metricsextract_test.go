package metricsextract_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/metricsextract"
)

func TestScan_FlattensNestedNumericFields(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "eval.json"),
		[]byte(`{"metrics": {"accuracy": 0.914, "loss": 0.05}, "epoch": 12}`),
		0o644,
	))

	got, err := metricsextract.Scan(root)
	require.NoError(t, err)
	require.Equal(t, 0.914, got["eval.json.accuracy"])
	require.Equal(t, 0.05, got["eval.json.loss"])
	require.Equal(t, float64(12), got["eval.json.epoch"])
}

func TestScan_SkipsMalformedFileWithoutFailing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.json"), []byte(`{not json`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.json"), []byte(`{"score": 1.0}`), 0o644))

	got, err := metricsextract.Scan(root)
	require.NoError(t, err)
	require.Equal(t, 1.0, got["ok.json.score"])
	require.NotContains(t, got, "broken.json.score")
}

func TestScan_IgnoresSnapshotsSubtree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "snapshots", "host-v1"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "snapshots", "host-v1", "eval.json"),
		[]byte(`{"accuracy": 0.5}`),
		0o644,
	))

	got, err := metricsextract.Scan(root)
	require.NoError(t, err)
	require.Empty(t, got)
}
