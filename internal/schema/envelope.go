package schema

import (
	"encoding/json"
	"fmt"

	"github.com/sd-lang/sdcore/internal/dm"
)

// Envelope is the canonical serialized form of a dm.Project (spec.md
// §3, §6, §8): a stable, versioned wire record that deserialize(
// serialize(P)) == P round-trips against. Field names are independent
// of dm's in-memory struct layout so the wire shape doesn't shift every
// time an internal helper field is added to dm.Project.
type Envelope struct {
	Schema     string            `json:"schema"`
	Name       string            `json:"name"`
	Models     []modelWire       `json:"models"`
	Dimensions []dimensionWire   `json:"dimensions,omitempty"`
	Units      []unitWire        `json:"units,omitempty"`
	SimSpecs   simSpecsWire      `json:"sim_specs"`
	Views      map[string]map[string]any `json:"views,omitempty"`
}

type modelWire struct {
	Name      string          `json:"name"`
	Variables []variableWire  `json:"variables"`
	SimSpecs  *simSpecsWire   `json:"sim_specs,omitempty"`
}

type variableWire struct {
	Name        string            `json:"name"`
	Ident       string            `json:"ident"`
	Kind        string            `json:"kind"`
	Equation    equationWire      `json:"equation,omitempty"`
	InitialEq   equationWire      `json:"initial_eq,omitempty"`
	GF          *graphicalWire    `json:"gf,omitempty"`
	NonNegative bool              `json:"non_negative,omitempty"`
	Dimensions  []string          `json:"dimensions,omitempty"`
	Inflows     []string          `json:"inflows,omitempty"`
	Outflows    []string          `json:"outflows,omitempty"`
	ModelName   string            `json:"model_name,omitempty"`
	Bindings    []bindingWire     `json:"bindings,omitempty"`
}

type equationWire struct {
	ApplyToAll string            `json:"apply_to_all,omitempty"`
	ByElement  map[string]string `json:"by_element,omitempty"`
}

func (e equationWire) isZero() bool {
	return e.ApplyToAll == "" && len(e.ByElement) == 0
}

// MarshalJSON writes an entirely-empty equation as `null` rather than
// `{}`; the key stays in the output, and decoding reads the null back as
// the zero equation, so a Flow/Aux with no InitialEq round-trips.
func (e equationWire) MarshalJSON() ([]byte, error) {
	if e.isZero() {
		return []byte("null"), nil
	}
	type alias equationWire
	return json.Marshal(alias(e))
}

type bindingWire struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type graphicalWire struct {
	XScale  [2]float64 `json:"x_scale"`
	YScale  [2]float64 `json:"y_scale"`
	YPoints []float64  `json:"y_points"`
	XPoints []float64  `json:"x_points,omitempty"`
	Kind    string     `json:"kind"`
}

type dimensionWire struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Size     int      `json:"size,omitempty"`
	Elements []string `json:"elements,omitempty"`
	MapsTo   string   `json:"maps_to,omitempty"`
}

type unitWire struct {
	Name      string         `json:"name"`
	Exponents map[string]int `json:"exponents,omitempty"`
}

type simSpecsWire struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	DT        float64 `json:"dt"`
	SaveStep  float64 `json:"save_step,omitempty"`
	Method    string  `json:"method"`
	TimeUnits string  `json:"time_units,omitempty"`
}

// Encode serializes p into the canonical wire bytes, keys sorted for a
// deterministic round trip (spec.md §8: `deserialize(serialize(P)) ==
// P`; determinism additionally makes two independently serialized
// copies of the same project byte-identical, which the patch API's
// `dry_run` test in internal/patch leans on).
func Encode(p *dm.Project) ([]byte, error) {
	env := toEnvelope(p)
	return MarshalDeterministic(env)
}

// Decode deserializes the canonical wire bytes back into a *dm.Project,
// built (indexed) and ready for validation.
func Decode(data []byte) (*dm.Project, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("schema: decode envelope: %w", err)
	}
	if !Accepts(env.Schema, ProjectV1) {
		return nil, fmt.Errorf("schema: unsupported project schema %q (want %s)", env.Schema, ProjectV1)
	}
	p := fromEnvelope(&env)
	p.Build()
	return p, nil
}

func toEnvelope(p *dm.Project) *Envelope {
	env := &Envelope{
		Schema:   ProjectV1,
		Name:     p.Name,
		SimSpecs: toSimSpecsWire(p.SimSpecs),
		Views:    p.Views,
	}
	for _, m := range p.Models {
		env.Models = append(env.Models, toModelWire(m))
	}
	for _, d := range p.Dimensions {
		env.Dimensions = append(env.Dimensions, toDimensionWire(d))
	}
	for _, u := range p.Units {
		env.Units = append(env.Units, unitWire{Name: u.Name, Exponents: u.Exponents})
	}
	return env
}

func fromEnvelope(env *Envelope) *dm.Project {
	p := &dm.Project{
		Name:     env.Name,
		SimSpecs: fromSimSpecsWire(env.SimSpecs),
		Views:    env.Views,
	}
	for _, mw := range env.Models {
		p.Models = append(p.Models, fromModelWire(mw))
	}
	for _, dw := range env.Dimensions {
		p.Dimensions = append(p.Dimensions, fromDimensionWire(dw))
	}
	for _, uw := range env.Units {
		p.Units = append(p.Units, &dm.Unit{Name: uw.Name, Exponents: uw.Exponents})
	}
	return p
}

func toModelWire(m *dm.Model) modelWire {
	mw := modelWire{Name: m.Name}
	if m.SimSpecs != nil {
		s := toSimSpecsWire(*m.SimSpecs)
		mw.SimSpecs = &s
	}
	for _, v := range m.Variables {
		mw.Variables = append(mw.Variables, toVariableWire(v))
	}
	return mw
}

func fromModelWire(mw modelWire) *dm.Model {
	m := &dm.Model{Name: mw.Name}
	if mw.SimSpecs != nil {
		s := fromSimSpecsWire(*mw.SimSpecs)
		m.SimSpecs = &s
	}
	for _, vw := range mw.Variables {
		m.Variables = append(m.Variables, fromVariableWire(vw))
	}
	return m
}

var kindToWire = map[dm.VarKind]string{
	dm.KindStock:  "stock",
	dm.KindFlow:   "flow",
	dm.KindAux:    "aux",
	dm.KindModule: "module",
}

var kindFromWire = map[string]dm.VarKind{
	"stock":  dm.KindStock,
	"flow":   dm.KindFlow,
	"aux":    dm.KindAux,
	"module": dm.KindModule,
}

func toVariableWire(v *dm.Variable) variableWire {
	vw := variableWire{
		Name:        v.Name,
		Ident:       v.Ident,
		Kind:        kindToWire[v.Kind],
		Equation:    toEquationWire(v.Equation),
		InitialEq:   toEquationWire(v.InitialEq),
		NonNegative: v.NonNegative,
		Dimensions:  v.Dimensions,
		Inflows:     v.Inflows,
		Outflows:    v.Outflows,
		ModelName:   v.ModelName,
	}
	if v.GF != nil {
		vw.GF = toGraphicalWire(v.GF)
	}
	for _, b := range v.Bindings {
		vw.Bindings = append(vw.Bindings, bindingWire{Src: b.Src, Dst: b.Dst})
	}
	return vw
}

func fromVariableWire(vw variableWire) *dm.Variable {
	v := &dm.Variable{
		Name:        vw.Name,
		Ident:       vw.Ident,
		Kind:        kindFromWire[vw.Kind],
		Equation:    fromEquationWire(vw.Equation),
		InitialEq:   fromEquationWire(vw.InitialEq),
		NonNegative: vw.NonNegative,
		Dimensions:  vw.Dimensions,
		Inflows:     vw.Inflows,
		Outflows:    vw.Outflows,
		ModelName:   vw.ModelName,
	}
	if vw.GF != nil {
		v.GF = fromGraphicalWire(vw.GF)
	}
	for _, b := range vw.Bindings {
		v.Bindings = append(v.Bindings, dm.ModuleBinding{Src: b.Src, Dst: b.Dst})
	}
	return v
}

func toEquationWire(e dm.ArrayedEquation) equationWire {
	return equationWire{ApplyToAll: e.ApplyToAll, ByElement: e.ByElement}
}

func fromEquationWire(e equationWire) dm.ArrayedEquation {
	return dm.ArrayedEquation{ApplyToAll: e.ApplyToAll, ByElement: e.ByElement}
}

var gfKindToWire = map[dm.GFKind]string{
	dm.GFContinuous:  "continuous",
	dm.GFDiscrete:    "discrete",
	dm.GFExtrapolate: "extrapolate",
}

var gfKindFromWire = map[string]dm.GFKind{
	"continuous":  dm.GFContinuous,
	"discrete":    dm.GFDiscrete,
	"extrapolate": dm.GFExtrapolate,
}

func toGraphicalWire(g *dm.GraphicalFunction) *graphicalWire {
	return &graphicalWire{
		XScale:  g.XScale,
		YScale:  g.YScale,
		YPoints: g.YPoints,
		XPoints: g.XPoints,
		Kind:    gfKindToWire[g.Kind],
	}
}

func fromGraphicalWire(gw *graphicalWire) *dm.GraphicalFunction {
	return &dm.GraphicalFunction{
		XScale:  gw.XScale,
		YScale:  gw.YScale,
		YPoints: gw.YPoints,
		XPoints: gw.XPoints,
		Kind:    gfKindFromWire[gw.Kind],
	}
}

func toDimensionWire(d *dm.Dimension) dimensionWire {
	dw := dimensionWire{Name: d.Name, MapsTo: d.MapsTo}
	if d.Kind == dm.DimIndexed {
		dw.Kind = "indexed"
		dw.Size = d.Size
	} else {
		dw.Kind = "named"
		dw.Elements = d.Elements
	}
	return dw
}

func fromDimensionWire(dw dimensionWire) *dm.Dimension {
	d := &dm.Dimension{Name: dw.Name, MapsTo: dw.MapsTo}
	if dw.Kind == "indexed" {
		d.Kind = dm.DimIndexed
		d.Size = dw.Size
	} else {
		d.Kind = dm.DimNamed
		d.Elements = dw.Elements
	}
	return d
}

var methodToWire = map[dm.IntegrationMethod]string{
	dm.MethodEuler: "euler",
	dm.MethodRK4:   "rk4",
}

var methodFromWire = map[string]dm.IntegrationMethod{
	"euler": dm.MethodEuler,
	"rk4":   dm.MethodRK4,
}

func toSimSpecsWire(s dm.SimSpecs) simSpecsWire {
	return simSpecsWire{
		Start:     s.Start,
		End:       s.End,
		DT:        s.DT,
		SaveStep:  s.SaveStep,
		Method:    methodToWire[s.Method],
		TimeUnits: s.TimeUnits,
	}
}

func fromSimSpecsWire(s simSpecsWire) dm.SimSpecs {
	return dm.SimSpecs{
		Start:     s.Start,
		End:       s.End,
		DT:        s.DT,
		SaveStep:  s.SaveStep,
		Method:    methodFromWire[s.Method],
		TimeUnits: s.TimeUnits,
	}
}
