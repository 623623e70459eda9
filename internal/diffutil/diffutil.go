// Package diffutil renders a readable diff between two versions of a file,
// for "dwc diff". Binary content is reported as changed without a body; text
// content gets a line-level diff.
package diffutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const binarySniffLength = 8000

// Result is the outcome of diffing one file's old and new content.
type Result struct {
	Binary   bool
	Equal    bool
	OldLines int
	NewLines int
	Unified  string
}

// Text diffs old against new. Binary content (detected by a NUL byte in the
// first binarySniffLength bytes of either side) is reported as Binary with
// no Unified body, matching the common "Binary files differ" convention.
func Text(oldContent, newContent []byte) Result {
	if isBinary(oldContent) || isBinary(newContent) {
		return Result{Binary: true, Equal: bytes.Equal(oldContent, newContent)}
	}

	oldStr, newStr := string(oldContent), string(newContent)
	if oldStr == newStr {
		return Result{Equal: true, OldLines: countLines(oldStr), NewLines: countLines(newStr)}
	}

	dmp := diffmatchpatch.New()

	src, dst, lineArray := dmp.DiffLinesToRunes(oldStr, newStr)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	return Result{
		OldLines: countLines(oldStr),
		NewLines: countLines(newStr),
		Unified:  render(diffs),
	}
}

// render turns a diffmatchpatch diff into a unified-style +/-/space body.
func render(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder

	for _, d := range diffs {
		prefix := " "

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			fmt.Fprintf(&b, "%s%s", prefix, line)

			if !strings.HasSuffix(line, "\n") {
				b.WriteByte('\n')
			}
		}
	}

	return b.String()
}

func countLines(s string) int {
	if s == "" {
		return 0
	}

	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}

	return n
}

func isBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLength {
		sniff = sniff[:binarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}
