package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/dm"
)

func buildRoundTripProject() *dm.Project {
	p := &dm.Project{
		Name: "growth",
		Models: []*dm.Model{
			{
				Name: "main",
				Variables: []*dm.Variable{
					{
						Name: "P", Ident: "p", Kind: dm.KindStock,
						Equation: dm.ArrayedEquation{ApplyToAll: "100"},
						Inflows:  []string{"growth"},
					},
					{
						Name: "growth", Ident: "growth", Kind: dm.KindFlow,
						Equation: dm.ArrayedEquation{ApplyToAll: "0.1*p"},
						GF: &dm.GraphicalFunction{
							XScale: [2]float64{0, 10}, YScale: [2]float64{0, 1},
							YPoints: []float64{0, 0.5, 1}, Kind: dm.GFContinuous,
						},
					},
				},
			},
		},
		Dimensions: []*dm.Dimension{
			{Name: "D", Kind: dm.DimNamed, Elements: []string{"a", "b", "c"}},
		},
		Units:    []*dm.Unit{{Name: "person", Exponents: map[string]int{"person": 1}}},
		SimSpecs: dm.SimSpecs{Start: 0, End: 10, DT: 0.25, Method: dm.MethodRK4, TimeUnits: "days"},
	}
	p.Build()
	return p
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := buildRoundTripProject()

	data, err := Encode(p)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	require.Equal(t, p.Name, got.Name)
	require.Equal(t, p.SimSpecs, got.SimSpecs)
	require.Len(t, got.Models, 1)
	require.Len(t, got.Models[0].Variables, 2)

	gv, ok := got.Models[0].Lookup("p")
	require.True(t, ok)
	require.Equal(t, dm.KindStock, gv.Kind)
	require.Equal(t, []string{"growth"}, gv.Inflows)

	gf, ok := got.Models[0].Lookup("growth")
	require.True(t, ok)
	require.NotNil(t, gf.GF)
	require.Equal(t, dm.GFContinuous, gf.GF.Kind)
	require.Equal(t, []float64{0, 0.5, 1}, gf.GF.YPoints)
}

func TestEncodeIsByteIdenticalAcrossCalls(t *testing.T) {
	p := buildRoundTripProject()
	a, err := Encode(p)
	require.NoError(t, err)
	b, err := Encode(p)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecodeRejectsUnsupportedSchema(t *testing.T) {
	_, err := Decode([]byte(`{"schema":"sdcore.project/v2","name":"x"}`))
	require.Error(t, err)
}
