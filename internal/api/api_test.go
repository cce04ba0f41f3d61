package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/patch"
	"github.com/sd-lang/sdcore/internal/schema"
)

func buildGrowthBytes(t *testing.T) []byte {
	t.Helper()
	p := &dm.Project{
		Name: "growth",
		Models: []*dm.Model{
			{
				Name: "main",
				Variables: []*dm.Variable{
					{Name: "P", Ident: "p", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "100"}, Inflows: []string{"growth"}},
					{Name: "growth", Ident: "growth", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "0.1*p"}},
				},
			},
		},
		SimSpecs: dm.SimSpecs{Start: 0, End: 10, DT: 0.25},
	}
	p.Build()
	data, err := schema.Encode(p)
	require.NoError(t, err)
	return data
}

func TestProjectOpenSerializeRoundTrip(t *testing.T) {
	reg := NewRegistry()
	data := buildGrowthBytes(t)

	h, err := reg.ProjectOpen(data)
	require.NoError(t, err)

	errs, err := reg.ProjectGetErrors(h)
	require.NoError(t, err)
	require.Empty(t, errs)

	out, err := reg.ProjectSerialize(h)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestSimLifecycleAndSeries(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildGrowthBytes(t))
	require.NoError(t, err)

	mh, err := reg.ProjectGetModel(h, "")
	require.NoError(t, err)

	sh, err := reg.SimNew(mh, false)
	require.NoError(t, err)

	require.NoError(t, reg.SimRunToEnd(sh))

	v, err := reg.SimGetValue(sh, "p")
	require.NoError(t, err)
	require.Greater(t, v, 100.0)

	series, err := reg.SimGetSeries(sh, "p")
	require.NoError(t, err)
	require.True(t, len(series) > 1)
}

func TestSimOverrideChangesOutcome(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildGrowthBytes(t))
	require.NoError(t, err)
	mh, err := reg.ProjectGetModel(h, "")
	require.NoError(t, err)

	sh, err := reg.SimNew(mh, false)
	require.NoError(t, err)
	require.NoError(t, reg.SimSetValue(sh, "growth", 0))
	require.NoError(t, reg.SimRunToEnd(sh))

	v, err := reg.SimGetValue(sh, "p")
	require.NoError(t, err)
	require.InDelta(t, 100.0, v, 1e-9)
}

func TestModelLinksAndLoops(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildGrowthBytes(t))
	require.NoError(t, err)
	mh, err := reg.ProjectGetModel(h, "")
	require.NoError(t, err)

	links, err := reg.ModelGetLinks(mh)
	require.NoError(t, err)
	require.NotEmpty(t, links)

	incoming, err := reg.ModelGetIncomingLinks(mh, "growth")
	require.NoError(t, err)
	require.Contains(t, incoming, "p")

	loops, err := reg.AnalyzeGetLoops(h)
	require.NoError(t, err)
	require.Len(t, loops, 1)
}

func TestRelativeLoopScoreRequiresLTM(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildGrowthBytes(t))
	require.NoError(t, err)
	mh, err := reg.ProjectGetModel(h, "")
	require.NoError(t, err)

	sh, err := reg.SimNew(mh, false)
	require.NoError(t, err)
	_, err = reg.AnalyzeGetRelativeLoopScore(sh, "L1")
	require.Error(t, err)

	shLTM, err := reg.SimNew(mh, true)
	require.NoError(t, err)
	require.NoError(t, reg.SimRunToEnd(shLTM))
	series, err := reg.AnalyzeGetRelativeLoopScore(shLTM, "L1")
	require.NoError(t, err)
	require.NotEmpty(t, series)
	for _, v := range series {
		require.InDelta(t, 1.0, v, 1e-9)
	}
}

func TestProjectApplyPatchCommitsAndUpdatesHandle(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.ProjectOpen(buildGrowthBytes(t))
	require.NoError(t, err)

	ops := []patch.Op{
		{Kind: patch.SetSimSpecs, SimSpecs: &dm.SimSpecs{Start: 0, End: 20, DT: 0.5}},
	}
	res, err := reg.ProjectApplyPatch(h, ops, patch.Options{})
	require.NoError(t, err)
	require.True(t, res.Applied)

	out, err := reg.ProjectSerialize(h)
	require.NoError(t, err)
	proj, err := schema.Decode(out)
	require.NoError(t, err)
	require.Equal(t, 20.0, proj.SimSpecs.End)
}
