// Package dm is the datamodel (C1): Project/Model/Variable/Dimension/
// Unit/SimSpecs/GraphicalFunction value types and their structural
// invariants, following spec.md §3. Its shapes are grounded in the
// XMILE reference (other_examples/.../bpowers-go-xmile__xmile-xmile.go,
// particularly SimSpec and Dimension) and the DYNAMO reference
// (other_examples/.../bfix-dynamo__src-dynamo-model.go, particularly
// State/Table), translated from XML-tagged structs and textual mode
// letters into Go's tagged-union idiom: a Variable "kind" enum plus
// per-kind payload, the same shape internal/ast uses to tag Expr0 nodes.
package dm

import "strings"

// Canonical maps a free-form user-facing name to its canonical
// identifier: lower-case, trim surrounding whitespace, collapse internal
// whitespace runs to a single '_'. Quoted identifiers are unquoted
// before the same treatment is applied. Canonical is idempotent:
// Canonical(Canonical(x)) == Canonical(x).
func Canonical(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.Fields(s)
	return strings.Join(fields, "_")
}
