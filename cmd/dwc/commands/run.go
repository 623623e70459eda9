package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/internal/lineage"
	"github.com/dwspace/dwc/internal/metricsextract"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/store"
)

// NewRunCommand wraps a subprocess invocation in a lineage step: the step's
// inputs/outputs/code are named explicitly via flags (dwc has no way to
// infer which paths a subprocess touches), and the numeric fields of every
// JSON file under each output ref after the run are merged into the step's
// recorded metrics.
func NewRunCommand(app *App) *cobra.Command {
	var (
		inputs  []string
		outputs []string
		code    string
	)

	cmd := &cobra.Command{
		Use:   "run -- <argv...>",
		Short: "Run a subprocess, recording a lineage step for it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			s := app.Store()

			inputRefs, err := parseRefs(inputs)
			if err != nil {
				return err
			}

			outputRefs, err := parseRefs(outputs)
			if err != nil {
				return err
			}

			codeRef := model.Ref{Resource: code}

			rec := lineage.New(s.CurrentLineageDir())

			app.announce("run step %q: inputs=%v outputs=%v", argv[0], inputs, outputs)

			return rec.Run(cmd.Context(), argv, inputRefs, outputRefs, codeRef, resourceHashFunc(s),
				func(ctx context.Context, argv []string) (map[string]float64, error) {
					if err := execSubprocess(ctx, cmd, argv); err != nil {
						return nil, err
					}

					return scanOutputMetrics(s, outputRefs), nil
				})
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "input ref resource[:subpath] (repeatable)")
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "output ref resource[:subpath] (repeatable)")
	cmd.Flags().StringVar(&code, "code", "code", "resource naming the code that ran")

	return cmd
}

func execSubprocess(ctx context.Context, cmd *cobra.Command, argv []string) error {
	sub := exec.CommandContext(ctx, argv[0], argv[1:]...)
	sub.Stdout = cmd.OutOrStdout()
	sub.Stderr = cmd.ErrOrStderr()
	sub.Stdin = cmd.InOrStdin()

	if err := sub.Run(); err != nil {
		return errs.New(errs.ClassBackend, "", "run", fmt.Errorf("%s: %w", strings.Join(argv, " "), err))
	}

	return nil
}

func parseRefs(specs []string) ([]model.Ref, error) {
	refs := make([]model.Ref, 0, len(specs))

	for _, spec := range specs {
		resource, subpath, _ := strings.Cut(spec, ":")
		if resource == "" {
			return nil, errs.New(errs.ClassUser, "", "run", fmt.Errorf("invalid ref %q", spec))
		}

		refs = append(refs, model.Ref{Resource: resource, Subpath: subpath})
	}

	return refs, nil
}

func resourceHashFunc(s *store.Store) func(model.Ref) (string, error) {
	return func(ref model.Ref) (string, error) {
		locals, err := s.LocalParamsFor()
		if err != nil {
			return "", err
		}

		local, ok := locals[ref.Resource]
		if !ok {
			return "", errs.New(errs.ClassUser, ref.Resource, "run", fmt.Errorf("unknown resource %q", ref.Resource))
		}

		root := local.Path
		if ref.Subpath != "" {
			root = filepath.Join(root, ref.Subpath)
		}

		hash, err := hashtree.Hash(root, hashtree.ExcludeDirs("snapshots", ".git"))
		if err != nil {
			return "", err
		}

		return string(hash), nil
	}
}

func scanOutputMetrics(s *store.Store, outputs []model.Ref) map[string]float64 {
	out := map[string]float64{}

	locals, err := s.LocalParamsFor()
	if err != nil {
		return out
	}

	for _, ref := range outputs {
		local, ok := locals[ref.Resource]
		if !ok || local.Path == "" {
			continue
		}

		root := local.Path
		if ref.Subpath != "" {
			root = filepath.Join(root, ref.Subpath)
		}

		if _, statErr := os.Stat(root); statErr != nil {
			continue
		}

		found, scanErr := metricsextract.Scan(root)
		if scanErr != nil {
			continue
		}

		for k, v := range found {
			out[ref.Resource+"."+k] = v
		}
	}

	return out
}
