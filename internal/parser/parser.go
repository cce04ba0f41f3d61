// Package parser implements C2: a recursive-descent / precedence-climbing
// (Pratt) parser that turns a single equation string into an ast.Expr0.
// Prefix/infix function tables keyed by token type, driven by a
// precedence table, over the fixed algebraic-equation grammar of
// spec.md §4.1.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/lexer"
)

// Precedence levels, low to high, per spec.md §4.1.
const (
	_ int = iota
	LOWEST
	LOGIC_OR
	LOGIC_AND
	COMPARE
	ADDITIVE
	MULT
	UNARY
	POWER
	POSTFIX
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:    LOGIC_OR,
	lexer.AND:   LOGIC_AND,
	lexer.EQ:    COMPARE,
	lexer.NEQ:   COMPARE,
	lexer.LT:    COMPARE,
	lexer.LTE:   COMPARE,
	lexer.GT:    COMPARE,
	lexer.GTE:   COMPARE,
	lexer.PLUS:  ADDITIVE,
	lexer.MINUS: ADDITIVE,
	lexer.STAR:  MULT,
	lexer.SLASH: MULT,
	lexer.MOD:   MULT,
	lexer.CARET: POWER,
}

var binOps = map[lexer.TokenType]ast.BinOp{
	lexer.PLUS:  ast.OpAdd,
	lexer.MINUS: ast.OpSub,
	lexer.STAR:  ast.OpMul,
	lexer.SLASH: ast.OpDiv,
	lexer.MOD:   ast.OpMod,
	lexer.CARET: ast.OpPow,
	lexer.EQ:    ast.OpEq,
	lexer.NEQ:   ast.OpNeq,
	lexer.LT:    ast.OpLt,
	lexer.LTE:   ast.OpLte,
	lexer.GT:    ast.OpGt,
	lexer.GTE:   ast.OpGte,
	lexer.AND:   ast.OpAnd,
	lexer.OR:    ast.OpOr,
}

// Parser parses a single equation's token stream into ast.Expr0.
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errs      []*errors.Report
	src       string
}

// New creates a Parser over equation source text.
func New(src string) *Parser {
	p := &Parser{l: lexer.New(src), src: src}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) span(start lexer.Token) ast.Span {
	return ast.Span{
		Start: ast.Pos{Offset: start.Offset, Line: start.Line, Column: start.Column},
		End:   ast.Pos{Offset: p.curToken.Offset, Line: p.curToken.Line, Column: p.curToken.Column},
	}
}

func (p *Parser) addErr(code, msg string, tok lexer.Token) {
	r := errors.New(code, "parse", msg).WithSpan(ast.Span{
		Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
		End:   ast.Pos{Offset: tok.Offset + len(tok.Lit), Line: tok.Line, Column: tok.Column + len(tok.Lit)},
	})
	p.errs = append(p.errs, r)
}

// Errors returns every Report collected while parsing.
func (p *Parser) Errors() []*errors.Report { return p.errs }

// Parse parses the whole equation and returns its AST, or a non-empty
// error list if parsing failed.
func Parse(src string) (ast.Expr0, []*errors.Report) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		r := errors.New(errors.PAR005, "parse", "equation is empty")
		return nil, []*errors.Report{r}
	}
	p := New(src)
	expr := p.parseExpr(LOWEST)
	if p.peekToken.Type != lexer.EOF {
		p.addErr(errors.PAR004, fmt.Sprintf("unexpected trailing token %q", p.peekToken.Lit), p.peekToken)
	}
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return expr, nil
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// parseExpr is a standard precedence-climbing loop: parse one unary
// operand, then keep folding in binary operators whose precedence is at
// least minPrec. Power is right-associative (the recursive call uses the
// same minimum precedence as the operator itself); every other operator
// is left-associative (the recursive call requires strictly higher
// precedence).
func (p *Parser) parseExpr(minPrec int) ast.Expr0 {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		prec, ok := precedences[p.peekToken.Type]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.peekToken
		p.nextToken() // curToken = operator
		p.nextToken() // curToken = start of rhs
		nextMin := prec + 1
		if opTok.Type == lexer.CARET {
			nextMin = prec
		}
		right := p.parseExpr(nextMin)
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Op:   binOps[opTok.Type],
			L:    left,
			R:    right,
			Span: ast.Span{Start: left.Position().Start, End: right.Position().End},
		}
	}
	return left
}

// parseUnary handles unary +, -, NOT, falling through to parsePostfix
// for primaries.
func (p *Parser) parseUnary() ast.Expr0 {
	switch p.curToken.Type {
	case lexer.MINUS:
		tok := p.curToken
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &ast.UnaryExpr{Op: ast.UnaryNeg, X: x, Span: ast.Span{
			Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
			End:   x.Position().End,
		}}
	case lexer.PLUS:
		tok := p.curToken
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &ast.UnaryExpr{Op: ast.UnaryPos, X: x, Span: ast.Span{
			Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
			End:   x.Position().End,
		}}
	case lexer.NOT:
		tok := p.curToken
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &ast.UnaryExpr{Op: ast.UnaryNot, X: x, Span: ast.Span{
			Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
			End:   x.Position().End,
		}}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr0 {
	prim := p.parsePrimary()
	if prim == nil {
		return nil
	}
	if v, ok := prim.(*ast.VarExpr); ok && p.peekToken.Type == lexer.LBRACKET {
		p.nextToken() // consume '['
		return p.parseSubscript(v)
	}
	return prim
}

func (p *Parser) parsePrimary() ast.Expr0 {
	switch p.curToken.Type {
	case lexer.NUMBER:
		return p.parseNumber()
	case lexer.IDENT:
		return p.parseIdentOrCall()
	case lexer.IF:
		return p.parseIf()
	case lexer.LPAREN:
		p.nextToken()
		inner := p.parseExpr(LOWEST)
		if inner == nil {
			return nil
		}
		if p.peekToken.Type != lexer.RPAREN {
			p.addErr(errors.PAR003, "expected ')'", p.peekToken)
			return nil
		}
		p.nextToken()
		return inner
	case lexer.EOF:
		p.addErr(errors.PAR002, "unexpected end of equation", p.curToken)
		return nil
	default:
		p.addErr(errors.PAR003, fmt.Sprintf("unexpected token %q", p.curToken.Lit), p.curToken)
		return nil
	}
}

func (p *Parser) parseNumber() ast.Expr0 {
	tok := p.curToken
	v, err := strconv.ParseFloat(tok.Lit, 64)
	if err != nil {
		p.addErr(errors.PAR006, fmt.Sprintf("invalid numeric literal %q", tok.Lit), tok)
		return nil
	}
	return &ast.ConstExpr{Value: v, Span: ast.Span{
		Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
		End:   ast.Pos{Offset: tok.Offset + len(tok.Lit), Line: tok.Line, Column: tok.Column + len(tok.Lit)},
	}}
}

func (p *Parser) parseIdentOrCall() ast.Expr0 {
	tok := p.curToken
	name := tok.Lit
	upper := strings.ToUpper(name)
	if p.peekToken.Type == lexer.LPAREN {
		if _, ok := lookupBuiltin(upper); ok {
			return p.parseCall(tok, upper)
		}
		p.addErr(errors.PAR007, fmt.Sprintf("unknown builtin function %q", name), tok)
		return nil
	}
	canon := canonicalize(name)
	return &ast.VarExpr{Ident: canon, Raw: name, Span: ast.Span{
		Start: ast.Pos{Offset: tok.Offset, Line: tok.Line, Column: tok.Column},
		End:   ast.Pos{Offset: tok.Offset + len(tok.Lit), Line: tok.Line, Column: tok.Column + len(tok.Lit)},
	}}
}

func (p *Parser) parseCall(nameTok lexer.Token, builtin string) ast.Expr0 {
	p.nextToken() // consume ident, curToken is now '('
	p.nextToken() // move past '('
	var args []ast.Expr0
	if p.curToken.Type != lexer.RPAREN {
		for {
			a := p.parseExpr(LOWEST)
			if a == nil {
				return nil
			}
			args = append(args, a)
			if p.peekToken.Type == lexer.COMMA {
				p.nextToken()
				p.nextToken()
				continue
			}
			break
		}
	}
	if p.peekToken.Type != lexer.RPAREN {
		p.addErr(errors.PAR003, "expected ')' to close builtin call", p.peekToken)
		return nil
	}
	p.nextToken() // curToken is now ')'
	if lo, ok := lookupBuiltin(builtin); ok {
		if len(args) < lo[0] || (lo[1] >= 0 && len(args) > lo[1]) {
			p.addErr(errors.PAR008, fmt.Sprintf("%s expects between %d and %d arguments, got %d", builtin, lo[0], lo[1], len(args)), nameTok)
			return nil
		}
	}
	return &ast.CallExpr{Builtin: builtin, Args: args, Span: ast.Span{
		Start: ast.Pos{Offset: nameTok.Offset, Line: nameTok.Line, Column: nameTok.Column},
		End:   ast.Pos{Offset: p.curToken.Offset + 1, Line: p.curToken.Line, Column: p.curToken.Column + 1},
	}}
}

func (p *Parser) parseSubscript(v *ast.VarExpr) ast.Expr0 {
	p.nextToken() // move past '[' to first subscript term
	var subs []ast.SubTerm
	for {
		term, ok := p.parseSubTerm()
		if !ok {
			return nil
		}
		subs = append(subs, term)
		if p.peekToken.Type == lexer.COMMA {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	if p.peekToken.Type != lexer.RBRACKET {
		p.addErr(errors.PAR003, "expected ']' to close subscript list", p.peekToken)
		return nil
	}
	p.nextToken() // curToken now ']'
	return &ast.SubscriptExpr{
		Ident: v.Ident,
		Raw:   v.Raw,
		Subs:  subs,
		Span:  ast.Span{Start: v.Span.Start, End: ast.Pos{Offset: p.curToken.Offset + 1, Line: p.curToken.Line, Column: p.curToken.Column + 1}},
	}
}

// parseSubTerm parses one comma-separated subscript term: "*", "name",
// "name!", "a:b", or an integer-valued expression.
func (p *Parser) parseSubTerm() (ast.SubTerm, bool) {
	start := ast.Pos{Offset: p.curToken.Offset, Line: p.curToken.Line, Column: p.curToken.Column}
	if p.curToken.Type == lexer.STAR {
		end := ast.Pos{Offset: p.curToken.Offset + 1, Line: p.curToken.Line, Column: p.curToken.Column + 1}
		return ast.SubTerm{Kind: ast.SubWildcard, Span: ast.Span{Start: start, End: end}}, true
	}
	if p.curToken.Type == lexer.NUMBER && p.peekToken.Type == lexer.COLON {
		lo := canonicalize(p.curToken.Lit)
		p.nextToken() // consume ':'
		p.nextToken() // move to hi side
		if p.curToken.Type != lexer.IDENT && p.curToken.Type != lexer.NUMBER {
			p.addErr(errors.PAR003, "expected range upper bound", p.curToken)
			return ast.SubTerm{}, false
		}
		hi := canonicalize(p.curToken.Lit)
		end := ast.Pos{Offset: p.curToken.Offset + len(p.curToken.Lit), Line: p.curToken.Line, Column: p.curToken.Column + len(p.curToken.Lit)}
		return ast.SubTerm{Kind: ast.SubRange, Lo: lo, Hi: hi, Span: ast.Span{Start: start, End: end}}, true
	}
	if p.curToken.Type == lexer.IDENT {
		name := canonicalize(p.curToken.Lit)
		if p.peekToken.Type == lexer.BANG {
			p.nextToken() // consume '!'
			end := ast.Pos{Offset: p.curToken.Offset + 1, Line: p.curToken.Line, Column: p.curToken.Column + 1}
			return ast.SubTerm{Kind: ast.SubBang, Dim: name, Span: ast.Span{Start: start, End: end}}, true
		}
		if p.peekToken.Type == lexer.COLON {
			lo := name
			p.nextToken() // consume ':'
			p.nextToken() // move to hi side
			if p.curToken.Type != lexer.IDENT && p.curToken.Type != lexer.NUMBER {
				p.addErr(errors.PAR003, "expected range upper bound", p.curToken)
				return ast.SubTerm{}, false
			}
			hi := canonicalize(p.curToken.Lit)
			end := ast.Pos{Offset: p.curToken.Offset + len(p.curToken.Lit), Line: p.curToken.Line, Column: p.curToken.Column + len(p.curToken.Lit)}
			return ast.SubTerm{Kind: ast.SubRange, Lo: lo, Hi: hi, Span: ast.Span{Start: start, End: end}}, true
		}
		end := ast.Pos{Offset: p.curToken.Offset + len(p.curToken.Lit), Line: p.curToken.Line, Column: p.curToken.Column + len(p.curToken.Lit)}
		return ast.SubTerm{Kind: ast.SubElement, Element: name, Span: ast.Span{Start: start, End: end}}, true
	}
	// fall back: an arbitrary integer-valued expression
	e := p.parseExpr(LOWEST)
	if e == nil {
		return ast.SubTerm{}, false
	}
	return ast.SubTerm{Kind: ast.SubExpr, Index: e, Span: e.Position()}, true
}

func (p *Parser) parseIf() ast.Expr0 {
	start := p.curToken
	p.nextToken() // move past IF
	cond := p.parseExpr(LOWEST)
	if cond == nil {
		return nil
	}
	if p.peekToken.Type != lexer.THEN {
		p.addErr(errors.PAR003, "expected THEN", p.peekToken)
		return nil
	}
	p.nextToken() // curToken = THEN
	p.nextToken() // move past THEN
	thenE := p.parseExpr(LOWEST)
	if thenE == nil {
		return nil
	}
	if p.peekToken.Type != lexer.ELSE {
		p.addErr(errors.PAR003, "expected ELSE", p.peekToken)
		return nil
	}
	p.nextToken() // curToken = ELSE
	p.nextToken() // move past ELSE
	elseE := p.parseExpr(LOWEST)
	if elseE == nil {
		return nil
	}
	return &ast.IfExpr{Cond: cond, Then: thenE, Else: elseE, Span: ast.Span{
		Start: ast.Pos{Offset: start.Offset, Line: start.Line, Column: start.Column},
		End:   elseE.Position().End,
	}}
}

// canonicalize maps a free-form identifier to its canonical form:
// lower-case, trim, collapse internal whitespace to '_'. Mirrors
// internal/dm.Canonical so the parser and datamodel never disagree on
// identity.
func canonicalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	fields := strings.Fields(s)
	return strings.Join(fields, "_")
}
