package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sd-lang/sdcore/internal/dm"
)

// Scenario is a human-editable YAML wrapper around the canonical
// serialized form, loaded by the CLI's `run`, `validate` and `loops`
// commands when given a .yaml/.yml path, and by local testing
// (SPEC_FULL.md §A): the project itself is still carried as its
// canonical JSON envelope (embedded verbatim under `project`), while
// `overrides` and `sim_specs` give a reviewer a quick way to tweak a run
// without hand-editing the serialized project bytes.
type Scenario struct {
	Schema    string            `yaml:"schema"`
	Name      string            `yaml:"name"`
	Project   map[string]any    `yaml:"project"`
	SimSpecs  *simSpecsYAML     `yaml:"sim_specs,omitempty"`
	Overrides map[string]float64 `yaml:"overrides,omitempty"`
}

type simSpecsYAML struct {
	Start    *float64 `yaml:"start,omitempty"`
	End      *float64 `yaml:"end,omitempty"`
	DT       *float64 `yaml:"dt,omitempty"`
	SaveStep *float64 `yaml:"save_step,omitempty"`
	Method   string   `yaml:"method,omitempty"`
}

// LoadScenarioFile reads a *.sdmodel.yaml file and returns the decoded
// Project plus its override map, with the scenario's sim_specs overlay
// (if any) already applied to the project's default SimSpecs.
func LoadScenarioFile(path string) (*dm.Project, map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: read scenario %s: %w", path, err)
	}
	return LoadScenario(data)
}

// LoadScenario decodes scenario YAML bytes the same way LoadScenarioFile
// does, for callers that already have the bytes in hand (e.g. tests,
// or a project fetched over the wire).
func LoadScenario(data []byte) (*dm.Project, map[string]float64, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, nil, fmt.Errorf("schema: parse scenario yaml: %w", err)
	}
	if !Accepts(sc.Schema, ScenarioV1) {
		return nil, nil, fmt.Errorf("schema: unsupported scenario schema %q (want %s)", sc.Schema, ScenarioV1)
	}

	projJSON, err := yamlValueToJSON(sc.Project)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: re-encode embedded project: %w", err)
	}
	proj, err := Decode(projJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: decode embedded project: %w", err)
	}

	if sc.SimSpecs != nil {
		applySimSpecsOverlay(&proj.SimSpecs, sc.SimSpecs)
		proj.Build()
	}

	return proj, sc.Overrides, nil
}

func applySimSpecsOverlay(s *dm.SimSpecs, overlay *simSpecsYAML) {
	if overlay.Start != nil {
		s.Start = *overlay.Start
	}
	if overlay.End != nil {
		s.End = *overlay.End
	}
	if overlay.DT != nil {
		s.DT = *overlay.DT
	}
	if overlay.SaveStep != nil {
		s.SaveStep = *overlay.SaveStep
	}
	if overlay.Method != "" {
		if m, ok := methodFromWire[overlay.Method]; ok {
			s.Method = m
		}
	}
}

// yamlValueToJSON re-marshals a YAML-decoded value (map[string]any with
// possible nested map[string]any from yaml.v3) into the canonical JSON
// bytes Decode expects, going through MarshalDeterministic so embedding
// a project inline in a scenario file produces identical bytes to
// encoding that same project directly with Encode.
func yamlValueToJSON(v map[string]any) ([]byte, error) {
	return MarshalDeterministic(v)
}
