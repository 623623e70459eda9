package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwspace/dwc/internal/errs"
)

func TestExitCode_PerClass(t *testing.T) {
	t.Parallel()

	cases := []struct {
		class    errs.Class
		expected int
	}{
		{errs.ClassUser, 1},
		{errs.ClassPrecondition, 1},
		{errs.ClassBackend, 2},
		{errs.ClassInconsistency, 3},
		{errs.ClassInternal, 4},
	}

	for _, tc := range cases {
		err := errs.New(tc.class, "res", "phase", errors.New("boom"))
		assert.Equal(t, tc.expected, errs.ExitCode(err))
	}
}

func TestExitCode_NilAndUnclassified(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, errs.ExitCode(nil))
	assert.Equal(t, 1, errs.ExitCode(errors.New("plain")))
}

func TestError_UnwrapsToSentinel(t *testing.T) {
	t.Parallel()

	wrapped := errs.New(errs.ClassPrecondition, "data", "restore", errs.ErrDirty)
	assert.ErrorIs(t, wrapped, errs.ErrDirty)

	class, ok := errs.ClassOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, errs.ClassPrecondition, class)
}

func TestError_MessageIncludesResourceAndPhase(t *testing.T) {
	t.Parallel()

	err := errs.New(errs.ClassBackend, "origin", "push", errors.New("exit status 1"))
	assert.Contains(t, err.Error(), "origin")
	assert.Contains(t, err.Error(), "push")
}
