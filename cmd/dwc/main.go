// Package main provides the entry point for the dwc CLI tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwspace/dwc/cmd/dwc/commands"
	"github.com/dwspace/dwc/internal/config"
	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/obs"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/pkg/version"
)

var (
	workspace   string
	authorName  string
	authorEmail string
	batch       bool
	verbose     bool
	logJSON     bool
	configFile  string

	shutdownObs func(context.Context) error
)

func main() {
	app := &commands.App{}

	rootCmd := &cobra.Command{
		Use:   "dwc",
		Short: "dwc versions heterogeneous data-science workspaces",
		Long: `dwc aggregates named resources of several storage kinds (managed git
repositories, subdirectories of the workspace's own repository, plain local
files, externally-synced remotes, and versioned object-store buckets) into
one workspace that snapshots, restores, pushes, and pulls all of them
together, and records the lineage of the steps run against them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd, app)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if shutdownObs == nil {
				return nil
			}

			return shutdownObs(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "C", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&authorName, "author-name", "", "commit author name (defaults to $DWC_AUTHOR_NAME)")
	rootCmd.PersistentFlags().StringVar(&authorEmail, "author-email", "", "commit author email (defaults to $DWC_AUTHOR_EMAIL)")
	rootCmd.PersistentFlags().BoolVar(&batch, "batch", false, "never prompt; proceed or fail outright")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "echo the plan before executing it")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of text")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")

	rootCmd.AddCommand(
		commands.NewInitCommand(app),
		commands.NewAddCommand(app),
		commands.NewCloneCommand(app),
		commands.NewSnapshotCommand(app),
		commands.NewRestoreCommand(app),
		commands.NewPushCommand(app),
		commands.NewPullCommand(app),
		commands.NewPublishCommand(app),
		commands.NewStatusCommand(app),
		commands.NewReportCommand(app),
		commands.NewRunCommand(app),
		commands.NewDiffCommand(app),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errs.ExitCode(err))
	}
}

func setup(cmd *cobra.Command, app *commands.App) error {
	rt, err := config.Load(viper.GetViper(), configFile)
	if err != nil {
		return err
	}

	// Flags take precedence over the layered config/environment defaults
	// only when the user actually set them; otherwise the config layer wins.
	if !cmd.Flags().Changed("batch") {
		batch = rt.Batch
	}

	if !cmd.Flags().Changed("verbose") {
		verbose = rt.Verbose
	}

	if !cmd.Flags().Changed("log-json") {
		logJSON = rt.LogJSON
	}

	cfg := obs.DefaultConfig()
	cfg.LogJSON = logJSON
	cfg.Verbose = verbose

	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	providers, shutdown := obs.Setup(cfg)
	shutdownObs = shutdown

	if authorName == "" {
		authorName = os.Getenv("DWC_AUTHOR_NAME")
	}

	if authorEmail == "" {
		authorEmail = os.Getenv("DWC_AUTHOR_EMAIL")
	}

	app.Workspace = workspace
	app.Identity = registry.Identity{Name: authorName, Email: authorEmail}
	app.Batch = batch
	app.Verbose = verbose
	app.Logger = providers.Logger

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "dwc %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
