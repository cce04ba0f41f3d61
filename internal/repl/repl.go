// Package repl implements the interactive stepper of SPEC_FULL.md §C.3:
// step a compiled Sim one save-step at a time, inspect values, and
// install overrides. Uses liner for line editing/history and fatih/color
// for diagnostics, in the shape of an interactive command loop that
// drives a simulation rather than evaluating a general expression
// language.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/sd-lang/sdcore/internal/api"
	"github.com/sd-lang/sdcore/internal/schema"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

// Stepper is the REPL's session state: a registry, the project/model/sim
// handles of whatever was last opened, and command history.
type Stepper struct {
	reg     *api.Registry
	project api.ProjectHandle
	model   api.ModelHandle
	sim     api.SimHandle
	hasSim  bool
	ltm     bool
	version string
}

// New creates a Stepper with project/model/sim already resolved from a
// serialized-form file at path.
func New(path string, enableLTM bool) (*Stepper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("repl: read %s: %w", path, err)
	}
	reg := api.NewRegistry()
	ph, err := reg.ProjectOpen(data)
	if err != nil {
		return nil, err
	}
	errs, _ := reg.ProjectGetErrors(ph)
	if len(errs) > 0 {
		return nil, fmt.Errorf("repl: %s has %d static error(s); fix them before simulating", path, len(errs))
	}
	mh, err := reg.ProjectGetModel(ph, "")
	if err != nil {
		return nil, err
	}
	sh, err := reg.SimNew(mh, enableLTM)
	if err != nil {
		return nil, err
	}
	return &Stepper{reg: reg, project: ph, model: mh, sim: sh, hasSim: true, ltm: enableLTM}, nil
}

// Start runs the interactive loop against in/out until :quit or EOF.
func (s *Stepper) Start(out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	historyFile := filepath.Join(os.TempDir(), ".sdcore_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	line.SetCompleter(func(pfx string) (c []string) {
		if !strings.HasPrefix(pfx, ":") {
			return nil
		}
		for _, cmd := range []string{":help", ":quit", ":step", ":run", ":value", ":set", ":series", ":loops", ":time"} {
			if strings.HasPrefix(cmd, pfx) {
				c = append(c, cmd)
			}
		}
		return
	})

	fmt.Fprintf(out, "%s %s\n", bold("sdcore"), bold("stepper"))
	fmt.Fprintln(out, dim("Type :help for commands, :quit to exit"))
	fmt.Fprintln(out)

	for {
		input, err := line.Prompt("sd> ")
		if err == io.EOF {
			fmt.Fprintln(out, green("\nGoodbye!"))
			break
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == ":quit" || input == ":q" {
			fmt.Fprintln(out, green("Goodbye!"))
			break
		}
		s.handle(input, out)
	}

	if f, err := os.Create(historyFile); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}
}

func (s *Stepper) handle(input string, out io.Writer) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case ":help":
		s.printHelp(out)
	case ":step":
		s.step(out)
	case ":run":
		s.run(out)
	case ":time":
		s.printTime(out)
	case ":value":
		s.printValue(fields, out)
	case ":set":
		s.setOverride(fields, out)
	case ":series":
		s.printSeries(fields, out)
	case ":loops":
		s.printLoops(out)
	default:
		fmt.Fprintf(out, "%s: unknown command %q (:help for a list)\n", yellow("Warning"), fields[0])
	}
}

func (s *Stepper) printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  :step              advance one save-step")
	fmt.Fprintln(out, "  :run               run to end")
	fmt.Fprintln(out, "  :time              print current simulation time")
	fmt.Fprintln(out, "  :value <var>       print a variable's current value")
	fmt.Fprintln(out, "  :set <var> <val>   install an override")
	fmt.Fprintln(out, "  :series <var>      print a variable's recorded history")
	fmt.Fprintln(out, "  :loops             list detected feedback loops")
	fmt.Fprintln(out, "  :quit              exit")
}

func (s *Stepper) step(out io.Writer) {
	if err := s.reg.SimRunTo(s.sim, nextStepTarget(s)); err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	s.printTime(out)
}

// nextStepTarget nudges the sim forward by one save-step; SimRunTo is
// idempotent at-or-past its target, so this is a thin convenience over
// the handle API rather than a new VM primitive.
func nextStepTarget(s *Stepper) float64 {
	t, _ := s.reg.SimGetValue(s.sim, "time")
	return t + 1e-9
}

func (s *Stepper) run(out io.Writer) {
	if err := s.reg.SimRunToEnd(s.sim); err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	fmt.Fprintln(out, green("Run complete."))
}

func (s *Stepper) printTime(out io.Writer) {
	fmt.Fprintf(out, "%s\n", cyan(fmt.Sprintf("t = %g", currentTime(s))))
}

func currentTime(s *Stepper) float64 {
	t, _ := s.reg.SimGetValue(s.sim, "time")
	return t
}

func (s *Stepper) printValue(fields []string, out io.Writer) {
	if len(fields) < 2 {
		fmt.Fprintln(out, "Usage: :value <var>")
		return
	}
	v, err := s.reg.SimGetValue(s.sim, fields[1])
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	fmt.Fprintf(out, "%s = %s\n", fields[1], green(fmt.Sprintf("%g", v)))
}

func (s *Stepper) setOverride(fields []string, out io.Writer) {
	if len(fields) < 3 {
		fmt.Fprintln(out, "Usage: :set <var> <value>")
		return
	}
	val, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	if err := s.reg.SimSetValue(s.sim, fields[1], val); err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	fmt.Fprintf(out, "override %s = %g installed\n", fields[1], val)
}

func (s *Stepper) printSeries(fields []string, out io.Writer) {
	if len(fields) < 2 {
		fmt.Fprintln(out, "Usage: :series <var>")
		return
	}
	series, err := s.reg.SimGetSeries(s.sim, fields[1])
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	for i, v := range series {
		fmt.Fprintf(out, "  [%d] %g\n", i, v)
	}
}

func (s *Stepper) printLoops(out io.Writer) {
	loops, err := s.reg.AnalyzeGetLoops(s.project)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
		return
	}
	for _, lp := range loops {
		fmt.Fprintf(out, "  %s %s %v\n", bold(lp.ID), lp.Polarity, lp.Vars)
	}
}

// ensure schema stays imported for callers constructing a Stepper
// directly from an already-decoded project in tests.
var _ = schema.ProjectV1
