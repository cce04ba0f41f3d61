// Package ast defines Expr0, the untyped AST for a single variable's
// equation string. Expr0 is produced by internal/parser and consumed by
// internal/types, which annotates it with inferred dimensions to produce
// a typed Expr (internal/types.Expr).
package ast

import "fmt"

// Pos is a single point in an equation's source text.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open range [Start, End) in an equation's source text.
// Every Expr0 node carries one so that static errors can point back at
// the offending substring.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Expr0 is the untyped equation AST. Every concrete node type below
// implements it.
type Expr0 interface {
	Position() Span
	String() string
	expr0Node()
}

// ConstExpr is a numeric literal, e.g. "3.14" or "1e-3".
type ConstExpr struct {
	Value float64
	Span  Span
}

func (c *ConstExpr) Position() Span  { return c.Span }
func (c *ConstExpr) String() string  { return fmt.Sprintf("%g", c.Value) }
func (c *ConstExpr) expr0Node()      {}

// VarExpr is a bare identifier reference, e.g. "population".
type VarExpr struct {
	Ident string // canonical form; original spelling kept for diagnostics
	Raw   string
	Span  Span
}

func (v *VarExpr) Position() Span { return v.Span }
func (v *VarExpr) String() string { return v.Raw }
func (v *VarExpr) expr0Node()     {}

// SubTerm is one element of a subscript list applied to a variable
// reference: "a", "*", "a:b", a dimension-bound bang wildcard, or an
// arbitrary expression evaluating to an integer index.
type SubTerm struct {
	Element string // literal element name, set when Kind == SubElement
	Dim     string // dimension name, set when Kind == SubBang
	Lo, Hi  string // range endpoints, set when Kind == SubRange
	Index   Expr0  // set when Kind == SubExpr
	Kind    SubKind
	Span    Span
}

type SubKind int

const (
	SubElement SubKind = iota // literal element name
	SubWildcard               // "*"
	SubRange                  // "a:b"
	SubBang                   // "!" bound to a named dimension
	SubExpr                   // arbitrary integer-valued expression
)

func (s SubTerm) String() string {
	switch s.Kind {
	case SubElement:
		return s.Element
	case SubWildcard:
		return "*"
	case SubRange:
		return s.Lo + ":" + s.Hi
	case SubBang:
		return s.Dim + "!"
	case SubExpr:
		return s.Index.String()
	}
	return "?"
}

// SubscriptExpr applies a subscript list to a base variable reference:
// "x[a, *]".
type SubscriptExpr struct {
	Ident string
	Raw   string
	Subs  []SubTerm
	Span  Span
}

func (s *SubscriptExpr) Position() Span { return s.Span }
func (s *SubscriptExpr) String() string {
	out := s.Raw + "["
	for i, t := range s.Subs {
		if i > 0 {
			out += ", "
		}
		out += t.String()
	}
	return out + "]"
}
func (s *SubscriptExpr) expr0Node() {}

// UnaryOp is the operator of a UnaryExpr.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryPos
	UnaryNot
)

type UnaryExpr struct {
	Op   UnaryOp
	X    Expr0
	Span Span
}

func (u *UnaryExpr) Position() Span { return u.Span }
func (u *UnaryExpr) String() string {
	ops := map[UnaryOp]string{UnaryNeg: "-", UnaryPos: "+", UnaryNot: "not "}
	return ops[u.Op] + u.X.String()
}
func (u *UnaryExpr) expr0Node() {}

// BinOp is the operator of a BinaryExpr.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

var binOpSymbols = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "MOD", OpPow: "^",
	OpEq: "=", OpNeq: "<>", OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">=",
	OpAnd: "AND", OpOr: "OR",
}

type BinaryExpr struct {
	Op    BinOp
	L, R  Expr0
	Span  Span
}

func (b *BinaryExpr) Position() Span { return b.Span }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.L, binOpSymbols[b.Op], b.R)
}
func (b *BinaryExpr) expr0Node() {}

// IfExpr is "IF cond THEN t ELSE f".
type IfExpr struct {
	Cond, Then, Else Expr0
	Span             Span
}

func (i *IfExpr) Position() Span { return i.Span }
func (i *IfExpr) String() string {
	return fmt.Sprintf("IF %s THEN %s ELSE %s", i.Cond, i.Then, i.Else)
}
func (i *IfExpr) expr0Node() {}

// CallExpr is a builtin function application, e.g. "MIN(a, b)".
type CallExpr struct {
	Builtin string // canonical uppercase builtin name
	Args    []Expr0
	Span    Span
}

func (c *CallExpr) Position() Span { return c.Span }
func (c *CallExpr) String() string {
	out := c.Builtin + "("
	for i, a := range c.Args {
		if i > 0 {
			out += ", "
		}
		out += a.String()
	}
	return out + ")"
}
func (c *CallExpr) expr0Node() {}
