package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sd-lang/sdcore/internal/ast"
)

func mustParse(t *testing.T, src string) ast.Expr0 {
	t.Helper()
	expr, errs := Parse(src)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, errs[0].Message)
	}
	return expr
}

func TestParseArithmeticPrecedence(t *testing.T) {
	expr := mustParse(t, "1 + 2 * 3 ^ 2")
	got := expr.String()
	want := "(1 + (2 * (3 ^ 2)))"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParsePowerRightAssociative(t *testing.T) {
	expr := mustParse(t, "2 ^ 3 ^ 2")
	want := "(2 ^ (3 ^ 2))"
	if expr.String() != want {
		t.Fatalf("got %s want %s", expr.String(), want)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	expr := mustParse(t, "-x + 1")
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", expr)
	}
	if _, ok := bin.L.(*ast.UnaryExpr); !ok {
		t.Fatalf("expected unary lhs, got %T", bin.L)
	}
}

func TestParseIfThenElse(t *testing.T) {
	expr := mustParse(t, "IF x > 0 THEN 1 ELSE -1")
	ifE, ok := expr.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected IfExpr, got %T", expr)
	}
	if _, ok := ifE.Cond.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected comparison condition, got %T", ifE.Cond)
	}
}

// TestParseIsDeterministic checks that parsing the same equation text
// twice produces structurally identical ASTs, spans included, via a
// full tree diff rather than a spot-check of a few fields.
func TestParseIsDeterministic(t *testing.T) {
	src := "IF a[b, *] > 0 THEN -c ^ 2 ELSE c / (d + 1)"
	first := mustParse(t, src)
	second := mustParse(t, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated parse of %q diverged (-first +second):\n%s", src, diff)
	}
}

func TestParseSubscript(t *testing.T) {
	expr := mustParse(t, `x[a, *, 1:3]`)
	sub, ok := expr.(*ast.SubscriptExpr)
	if !ok {
		t.Fatalf("expected SubscriptExpr, got %T", expr)
	}
	if len(sub.Subs) != 3 {
		t.Fatalf("expected 3 subscript terms, got %d", len(sub.Subs))
	}
	if sub.Subs[0].Kind != ast.SubElement || sub.Subs[1].Kind != ast.SubWildcard || sub.Subs[2].Kind != ast.SubRange {
		t.Fatalf("unexpected subscript kinds: %+v", sub.Subs)
	}
}

func TestParseQuotedIdentifier(t *testing.T) {
	expr := mustParse(t, `"my stock" + 1`)
	bin := expr.(*ast.BinaryExpr)
	v, ok := bin.L.(*ast.VarExpr)
	if !ok {
		t.Fatalf("expected VarExpr, got %T", bin.L)
	}
	if v.Ident != "my_stock" {
		t.Fatalf("expected canonical ident my_stock, got %s", v.Ident)
	}
}

func TestParseBuiltinCall(t *testing.T) {
	expr := mustParse(t, "MIN(a, b, c)")
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr, got %T", expr)
	}
	if call.Builtin != "MIN" || len(call.Args) != 3 {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestParseEmptyEquation(t *testing.T) {
	_, errs := Parse("   ")
	if len(errs) == 0 {
		t.Fatal("expected EmptyEquation error")
	}
	if errs[0].Code != "PAR005" {
		t.Fatalf("expected PAR005, got %s", errs[0].Code)
	}
}

func TestParseUnknownBuiltin(t *testing.T) {
	_, errs := Parse("FOOBAR(1, 2)")
	if len(errs) == 0 || errs[0].Code != "PAR007" {
		t.Fatalf("expected PAR007, got %v", errs)
	}
}

func TestParseBadBuiltinArgs(t *testing.T) {
	_, errs := Parse("SQRT(1, 2)")
	if len(errs) == 0 || errs[0].Code != "PAR008" {
		t.Fatalf("expected PAR008, got %v", errs)
	}
}

func TestParseExtraToken(t *testing.T) {
	_, errs := Parse("1 + 2 3")
	if len(errs) == 0 || errs[0].Code != "PAR004" {
		t.Fatalf("expected PAR004, got %v", errs)
	}
}

func TestParseSpanReconstruction(t *testing.T) {
	src := "a + b * c"
	expr := mustParse(t, src)
	span := expr.Position()
	if span.Start.Offset != 0 {
		t.Fatalf("expected span to start at 0, got %d", span.Start.Offset)
	}
	if span.End.Offset != len(src) {
		t.Fatalf("expected span to end at %d, got %d", len(src), span.End.Offset)
	}
}
