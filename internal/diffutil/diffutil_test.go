package diffutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/diffutil"
)

func TestText_ReportsEqualForIdenticalContent(t *testing.T) {
	t.Parallel()

	res := diffutil.Text([]byte("a\nb\n"), []byte("a\nb\n"))
	require.True(t, res.Equal)
	require.False(t, res.Binary)
	require.Empty(t, res.Unified)
}

func TestText_RendersLineLevelDiff(t *testing.T) {
	t.Parallel()

	res := diffutil.Text([]byte("alpha\nbeta\ngamma\n"), []byte("alpha\nBETA\ngamma\n"))
	require.False(t, res.Equal)
	require.False(t, res.Binary)
	require.True(t, strings.Contains(res.Unified, "-beta\n"))
	require.True(t, strings.Contains(res.Unified, "+BETA\n"))
	require.True(t, strings.Contains(res.Unified, " alpha\n"))
}

func TestText_DetectsBinaryContent(t *testing.T) {
	t.Parallel()

	res := diffutil.Text([]byte("abc\x00def"), []byte("abc\x00xyz"))
	require.True(t, res.Binary)
	require.Empty(t, res.Unified)
}
