package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwspace/dwc/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	rt, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.False(t, rt.Batch)
	assert.False(t, rt.Verbose)
	assert.Empty(t, rt.SyncToolConfig)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Run("batch from env", func(t *testing.T) {
		t.Setenv("DWC_BATCH", "true")

		rt, err := config.Load(viper.New(), "")
		require.NoError(t, err)
		assert.True(t, rt.Batch)
	})
}
