package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/report"
)

func TestStatus_RendersOneRowPerResourceWithHash(t *testing.T) {
	t.Parallel()

	catalogue := []model.Resource{
		{Name: "code", Role: model.RoleCode, Backend: model.BackendManagedGit},
		{Name: "results", Role: model.RoleResults, Backend: model.BackendLocalFiles, ReadOnly: true},
	}
	states := []model.ResourceState{
		{Name: "code", Hash: "abcdef0123456789"},
	}

	var buf bytes.Buffer
	report.Status(&buf, catalogue, states)

	out := buf.String()
	require.Contains(t, out, "code")
	require.Contains(t, out, "abcdef012345")
	require.Contains(t, out, "results")
	require.Contains(t, out, "yes")
}

func TestHistory_RendersNewestFirstWithTags(t *testing.T) {
	t.Parallel()

	// Newest-first, the order store.History returns.
	entries := []model.HistoryEntry{
		{Hash: "hash2deadbeef00", Hostname: "host-a", Timestamp: time.Now(), Message: "second", Tags: []string{"v1"}},
		{Hash: "hash1deadbeef00", Hostname: "host-a", Timestamp: time.Now().Add(-time.Hour), Message: "first"},
	}

	var buf bytes.Buffer
	report.History(&buf, entries)

	out := buf.String()
	require.Contains(t, out, "second")
	require.Contains(t, out, "first")
	require.Contains(t, out, "v1")
	require.Less(t, strings.Index(out, "second"), strings.Index(out, "first"))
}

func TestMetrics_RendersSortedKeys(t *testing.T) {
	t.Parallel()

	entry := model.HistoryEntry{Metrics: map[string]float64{"results.accuracy": 0.91, "results.loss": 0.05}}

	var buf bytes.Buffer
	report.Metrics(&buf, entry)

	out := buf.String()
	require.Contains(t, out, "results.accuracy")
	require.Contains(t, out, "0.91")
}

func TestMetrics_ReportsNoneWhenEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report.Metrics(&buf, model.HistoryEntry{})

	require.Contains(t, buf.String(), "no metrics recorded")
}

func TestLineage_RendersStepsOldestFirst(t *testing.T) {
	t.Parallel()

	steps := []model.StepRecord{
		{
			ID: "step2", Name: "train", Start: time.Now(),
			Inputs:  []model.Input{{Ref: model.Ref{Resource: "data"}}},
			Outputs: []model.Ref{{Resource: "results", Subpath: "model.pt"}},
		},
		{
			ID: "step1", Name: "prep", Start: time.Now().Add(-time.Hour),
			Outputs: []model.Ref{{Resource: "data"}},
		},
	}

	var buf bytes.Buffer
	report.Lineage(&buf, steps)

	out := buf.String()
	require.Contains(t, out, "prep")
	require.Contains(t, out, "train")
	require.Contains(t, out, "results/model.pt")
	require.Less(t, strings.Index(out, "prep"), strings.Index(out, "train"))
}
