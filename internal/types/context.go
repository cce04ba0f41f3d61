package types

import "github.com/sd-lang/sdcore/internal/dm"

// VarInfo is the subset of a Variable's declared shape the inference
// engine needs: its dimension list and its unit (nil if unitless /
// unchecked).
type VarInfo struct {
	Ident string
	Dims  []string
	Unit  *UnitExpr
}

// Context carries everything Infer needs to resolve identifiers:
// the project's dimension registry (for broadcast/mapping checks) and
// the flattened variable table of the model currently being analyzed.
type Context struct {
	Dims map[string]*dm.Dimension // canonical dimension name -> Dimension
	Vars map[string]VarInfo       // canonical variable ident -> VarInfo
}

// sameDim reports whether two dimension names denote the same axis for
// broadcast purposes: identical names, or one maps 1:1 onto the other.
func (c *Context) sameDim(a, b string) bool {
	if a == b {
		return true
	}
	da, aok := c.Dims[a]
	db, bok := c.Dims[b]
	if aok && da.MapsTo == b {
		return true
	}
	if bok && db.MapsTo == a {
		return true
	}
	return false
}

// dimSize returns the element count of a named dimension, or 0 if unknown.
func (c *Context) dimSize(name string) int {
	if d, ok := c.Dims[name]; ok {
		return d.Len()
	}
	return 0
}
