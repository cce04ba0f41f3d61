package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sd-lang/sdcore/internal/ast"
)

// UnitExpr is a product of base units with integer exponents, e.g.
// {"person": 1, "year": -1} for "person/year". Unit checking (spec.md
// §4.2 step 9, §1 Non-goals (c)) verifies consistency only — there is no
// automatic conversion between, say, days and years.
type UnitExpr struct {
	Exponents map[string]int
}

func Dimensionless() *UnitExpr { return &UnitExpr{Exponents: map[string]int{}} }

func (u *UnitExpr) Equal(o *UnitExpr) bool {
	if u == nil || o == nil {
		return u == o
	}
	if len(u.Exponents) != len(o.Exponents) {
		return false
	}
	for k, v := range u.Exponents {
		if o.Exponents[k] != v {
			return false
		}
	}
	return true
}

func (u *UnitExpr) String() string {
	if u == nil || len(u.Exponents) == 0 {
		return "1"
	}
	keys := make([]string, 0, len(u.Exponents))
	for k := range u.Exponents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		e := u.Exponents[k]
		if e == 1 {
			parts = append(parts, k)
		} else {
			parts = append(parts, fmt.Sprintf("%s^%d", k, e))
		}
	}
	return strings.Join(parts, "*")
}

func mulUnits(a, b *UnitExpr, sign int) *UnitExpr {
	out := map[string]int{}
	if a != nil {
		for k, v := range a.Exponents {
			out[k] += v
		}
	}
	if b != nil {
		for k, v := range b.Exponents {
			out[k] += sign * v
		}
	}
	for k, v := range out {
		if v == 0 {
			delete(out, k)
		}
	}
	return &UnitExpr{Exponents: out}
}

// combineUnits applies the unit-arithmetic rule of spec.md §4.2 step 9
// for a binary operator: +/- require identical units (checked by the
// caller, via Equal); * multiplies exponents; / subtracts them. Every
// other operator, ^ and MOD included, keeps the left operand's unit (the
// right's when the left has none); the value of a ^ exponent is not
// checked and does not scale the unit's exponents.
func combineUnits(op ast.BinOp, a, b *UnitExpr) *UnitExpr {
	switch op {
	case ast.OpMul:
		return mulUnits(a, b, 1)
	case ast.OpDiv:
		return mulUnits(a, b, -1)
	default:
		if a != nil {
			return a
		}
		return b
	}
}
