package dm

// IntegrationMethod selects the numeric integrator used by the VM
// (internal/vm), per spec.md §3 and §4.4.
type IntegrationMethod int

const (
	MethodEuler IntegrationMethod = iota
	MethodRK4
)

// SimSpecs carries the time parameters a model is simulated with.
// Its field set mirrors the XMILE reference's SimSpec
// (other_examples/.../bpowers-go-xmile__xmile-xmile.go) — start, stop
// (here End), dt, and method — translated from XML attribute tags to
// plain Go fields.
type SimSpecs struct {
	Start     float64
	End       float64
	DT        float64
	SaveStep  float64 // 0 means "use DT"
	Method    IntegrationMethod
	TimeUnits string
}

// EffectiveSaveStep returns SaveStep, defaulting to DT when unset.
func (s SimSpecs) EffectiveSaveStep() float64 {
	if s.SaveStep <= 0 {
		return s.DT
	}
	return s.SaveStep
}

// Unit is a named base unit or a derived unit expression. Units are
// checked for dimensional consistency only (spec.md §1 Non-goals: no
// automatic conversion).
type Unit struct {
	Name string
	// Exponents maps a base-unit name to its integer exponent in this
	// unit's definition, e.g. {"person": 1, "year": -1} for "person/year".
	Exponents map[string]int
}
