// Command sdcore is the system-dynamics simulation core's CLI, the
// external front door for the five-stage pipeline of internal/dm,
// internal/analysis, internal/compiler, internal/vm, and internal/loop.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sd-lang/sdcore/internal/api"
	"github.com/sd-lang/sdcore/internal/loop"
	"github.com/sd-lang/sdcore/internal/repl"
	"github.com/sd-lang/sdcore/internal/schema"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "sdcore",
		Short:   "System dynamics model simulation core",
		Version: version,
	}
	root.AddCommand(runCmd(), validateCmd(), loopsCmd(), replCmd())
	return root
}

func loadProject(path string) (*api.Registry, api.ProjectHandle, map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		reg := api.NewRegistry()
		h, err := reg.ProjectOpen(data)
		return reg, h, nil, err
	}
	proj, overrides, err := schema.LoadScenario(data)
	if err != nil {
		return nil, 0, nil, err
	}
	encoded, err := schema.Encode(proj)
	if err != nil {
		return nil, 0, nil, err
	}
	reg := api.NewRegistry()
	h, err := reg.ProjectOpen(encoded)
	return reg, h, overrides, err
}

// applyOverrides installs every scenario override onto a freshly
// created sim handle (sim_set_value per spec.md §6).
func applyOverrides(reg *api.Registry, sh api.SimHandle, overrides map[string]float64) error {
	for ident, v := range overrides {
		if err := reg.SimSetValue(sh, ident, v); err != nil {
			return fmt.Errorf("applying override %s=%g: %w", ident, v, err)
		}
	}
	return nil
}

func runCmd() *cobra.Command {
	var enableLTM bool
	var vars []string
	cmd := &cobra.Command{
		Use:   "run <project.json|*.sdmodel.yaml>",
		Short: "Run a model to the end of its simulation window and print series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ph, overrides, err := loadProject(args[0])
			if err != nil {
				return err
			}
			if errs, _ := reg.ProjectGetErrors(ph); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), color.RedString(e.Message))
				}
				return fmt.Errorf("%d static error(s)", len(errs))
			}
			mh, err := reg.ProjectGetModel(ph, "")
			if err != nil {
				return err
			}
			sh, err := reg.SimNew(mh, enableLTM)
			if err != nil {
				return err
			}
			if err := applyOverrides(reg, sh, overrides); err != nil {
				return err
			}
			if err := reg.SimRunToEnd(sh); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range vars {
				series, err := reg.SimGetSeries(sh, v)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %v\n", v, series)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enableLTM, "ltm", false, "enable loops-that-matter scoring while running")
	cmd.Flags().StringSliceVarP(&vars, "var", "v", nil, "variable to print the series of (repeatable)")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project.json|*.sdmodel.yaml>",
		Short: "Load a project and report static errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ph, _, err := loadProject(args[0])
			if err != nil {
				return err
			}
			errs, err := reg.ProjectGetErrors(ph)
			if err != nil {
				return err
			}
			if len(errs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("no static errors"))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("%s: %s", e.Code, e.Message))
			}
			return fmt.Errorf("%d static error(s)", len(errs))
		},
	}
	return cmd
}

func loopsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loops <project.json|*.sdmodel.yaml>",
		Short: "List detected feedback loops and their static polarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ph, _, err := loadProject(args[0])
			if err != nil {
				return err
			}
			loops, err := reg.AnalyzeGetLoops(ph)
			if err != nil {
				return err
			}
			sort.Slice(loops, func(i, j int) bool { return loops[i].ID < loops[j].ID })
			out := cmd.OutOrStdout()
			for _, l := range loops {
				polarity := "R"
				if l.Polarity == loop.Balancing {
					polarity = "B"
				}
				fmt.Fprintf(out, "%s [%s] %v\n", l.ID, polarity, l.Vars)
			}
			return nil
		},
	}
	return cmd
}

func replCmd() *cobra.Command {
	var enableLTM bool
	cmd := &cobra.Command{
		Use:   "repl <project.json|*.sdmodel.yaml>",
		Short: "Launch the interactive simulation stepper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := repl.New(args[0], enableLTM)
			if err != nil {
				return err
			}
			s.Start(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&enableLTM, "ltm", false, "enable loops-that-matter scoring")
	return cmd
}
