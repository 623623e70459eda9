// Package report renders workspace state as terminal tables for the
// "dwc status" and "dwc report" commands: resource status, snapshot
// history, results metrics, and lineage steps.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dwspace/dwc/internal/model"
)

const hashDisplayLen = 12

// shortHash truncates a content hash to a readable prefix.
func shortHash(h string) string {
	if len(h) <= hashDisplayLen {
		return h
	}

	return h[:hashDisplayLen]
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

// Status renders one row per catalogue resource, annotated with its state
// (hash/token) from the current manifest if present.
func Status(w io.Writer, catalogue []model.Resource, states []model.ResourceState) {
	byName := make(map[string]model.ResourceState, len(states))
	for _, st := range states {
		byName[st.Name] = st
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Resource", "Role", "Backend", "Read-only", "Hash"})

	names := make([]string, 0, len(catalogue))
	byResourceName := make(map[string]model.Resource, len(catalogue))

	for _, res := range catalogue {
		names = append(names, res.Name)
		byResourceName[res.Name] = res
	}

	sort.Strings(names)

	for _, name := range names {
		res := byResourceName[name]

		hash := "-"
		if st, ok := byName[name]; ok && st.Hash != "" {
			hash = shortHash(st.Hash)
		}

		readOnly := ""
		if res.ReadOnly {
			readOnly = colorize(color.FgYellow, "yes")
		}

		tbl.AppendRow(table.Row{res.Name, string(res.Role), string(res.Backend), readOnly, hash})
	}

	tbl.Render()
}

// History renders the workspace's snapshot history, newest first, with tags
// highlighted and timestamps rendered as a relative "time ago" string.
func History(w io.Writer, entries []model.HistoryEntry) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Hash", "When", "Host", "Tags", "Message"})

	for _, e := range entries {
		tags := "-"
		if len(e.Tags) > 0 {
			tags = colorize(color.FgCyan, strings.Join(e.Tags, ","))
		}

		tbl.AppendRow(table.Row{shortHash(e.Hash), humanize.Time(e.Timestamp), e.Hostname, tags, e.Message})
	}

	tbl.Render()
}

// Metrics renders the numeric metrics recorded against one history entry,
// sorted by key for a stable display order.
func Metrics(w io.Writer, entry model.HistoryEntry) {
	if len(entry.Metrics) == 0 {
		fmt.Fprintln(w, "no metrics recorded for this snapshot")

		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	keys := make([]string, 0, len(entry.Metrics))
	for k := range entry.Metrics {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		tbl.AppendRow(table.Row{k, fmt.Sprintf("%.6g", entry.Metrics[k])})
	}

	tbl.Render()
}

// Lineage renders one row per recorded step, plus its inputs/outputs as a
// compact comma-joined reference list.
func Lineage(w io.Writer, steps []model.StepRecord) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Step", "Name", "Started", "Duration", "Inputs", "Outputs"})

	sort.Slice(steps, func(i, j int) bool { return steps[i].Start.Before(steps[j].Start) })

	for _, st := range steps {
		tbl.AppendRow(table.Row{
			shortHash(st.ID),
			st.Name,
			humanize.Time(st.Start),
			st.Duration.Round(1_000_000), // round to millisecond precision
			refList(inputRefs(st.Inputs)),
			refList(st.Outputs),
		})
	}

	tbl.Render()
}

func inputRefs(inputs []model.Input) []model.Ref {
	refs := make([]model.Ref, len(inputs))
	for i, in := range inputs {
		refs[i] = in.Ref
	}

	return refs
}

func refList(refs []model.Ref) string {
	if len(refs) == 0 {
		return "-"
	}

	parts := make([]string, len(refs))
	for i, r := range refs {
		if r.Subpath == "" {
			parts[i] = r.Resource
		} else {
			parts[i] = r.Resource + "/" + r.Subpath
		}
	}

	return strings.Join(parts, ", ")
}

func colorize(attr color.Attribute, s string) string {
	return color.New(attr).Sprint(s)
}
