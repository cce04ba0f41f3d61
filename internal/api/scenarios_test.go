package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/schema"
)

func buildCircularProject(t *testing.T) []byte {
	t.Helper()
	p := &dm.Project{
		Name: "circular",
		Models: []*dm.Model{
			{
				Name: "main",
				Variables: []*dm.Variable{
					{Name: "a", Ident: "a", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "b+1"}},
					{Name: "b", Ident: "b", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "c+1"}},
					{Name: "c", Ident: "c", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "a+1"}},
				},
			},
		},
	}
	p.Build()
	data, err := schema.Encode(p)
	require.NoError(t, err)
	return data
}

func TestScenarioCircularDependencyIsReportedAndBlocksSim(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildCircularProject(t))
	require.NoError(t, err)

	errs, err := reg.ProjectGetErrors(h)
	require.NoError(t, err)
	require.NotEmpty(t, errs)

	found := false
	for _, e := range errs {
		if e.Code == errors.GPH001 {
			found = true
			require.Contains(t, e.Message, "a")
			require.Contains(t, e.Message, "b")
			require.Contains(t, e.Message, "c")
		}
	}
	require.True(t, found, "expected a GPH001 circular-dependency report naming a, b, c")

	mh, err := reg.ProjectGetModel(h, "")
	require.NoError(t, err)

	_, err = reg.SimNew(mh, false)
	require.Error(t, err, "sim_new must refuse to simulate a project with unresolved static errors")
	require.Contains(t, err.Error(), errors.SIM002)
}
