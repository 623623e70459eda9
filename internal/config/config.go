// Package config loads dwc's process-wide runtime configuration: CLI flags,
// environment variables (DWC_*), and an optional config file, layered the
// way viper layers them (flag > env > file > default).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "DWC"

// Runtime holds the settings that apply to every command invocation,
// independent of which workspace is open.
type Runtime struct {
	// Batch disables interactive confirmation prompts; destructive
	// operations proceed or fail outright instead of asking.
	Batch bool
	// Verbose echoes the two-phase plan before executing it.
	Verbose bool
	// LogJSON selects structured JSON logging instead of text.
	LogJSON bool
	// SyncToolConfig overrides the home-relative config path consulted for
	// the external sync tool (rclone-compatible). Empty means use the
	// tool's own default resolution.
	SyncToolConfig string
}

// Load builds a Runtime from defaults, an optional config file, and
// DWC_-prefixed environment variables. v is typically viper.GetViper(); a
// fresh instance is useful in tests to avoid global state.
func Load(v *viper.Viper, configFile string) (Runtime, error) {
	v.SetDefault("batch", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_json", false)
	v.SetDefault("sync_tool_config", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return Runtime{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	return Runtime{
		Batch:          v.GetBool("batch"),
		Verbose:        v.GetBool("verbose"),
		LogJSON:        v.GetBool("log_json"),
		SyncToolConfig: v.GetString("sync_tool_config"),
	}, nil
}
