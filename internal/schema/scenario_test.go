package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sd-lang/sdcore/internal/dm"
)

func buildScenarioYAML(t *testing.T, overlay string) []byte {
	t.Helper()
	p := buildRoundTripProject()
	data, err := Encode(p)
	require.NoError(t, err)

	var projMap map[string]any
	require.NoError(t, json.Unmarshal(data, &projMap))

	sc := map[string]any{
		"schema":  ScenarioV1,
		"name":    "growth scenario",
		"project": projMap,
	}
	out, err := yaml.Marshal(sc)
	require.NoError(t, err)
	return append(out, []byte(overlay)...)
}

func TestLoadScenarioRoundTripsEmbeddedProject(t *testing.T) {
	data := buildScenarioYAML(t, "")
	proj, overrides, err := LoadScenario(data)
	require.NoError(t, err)
	require.Empty(t, overrides)
	require.Equal(t, "growth", proj.Name)
	require.Equal(t, dm.MethodRK4, proj.SimSpecs.Method)
}

func TestLoadScenarioAppliesSimSpecsOverlay(t *testing.T) {
	data := buildScenarioYAML(t, "sim_specs:\n  dt: 0.0625\n  method: euler\noverrides:\n  growth: 0.2\n")
	proj, overrides, err := LoadScenario(data)
	require.NoError(t, err)
	require.InDelta(t, 0.0625, proj.SimSpecs.DT, 1e-12)
	require.Equal(t, dm.MethodEuler, proj.SimSpecs.Method)
	require.InDelta(t, 0.2, overrides["growth"], 1e-12)
}

func TestLoadScenarioRejectsUnsupportedSchema(t *testing.T) {
	_, _, err := LoadScenario([]byte("schema: sdcore.scenario/v2\nproject: {}\n"))
	require.Error(t, err)
}
