package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `growth = 0.1 * "my stock"[a, *, 1:3] ^ 2`

	tests := []struct {
		expectedType TokenType
		expectedLit  string
	}{
		{IDENT, "growth"},
		{EQ, "="},
		{NUMBER, "0.1"},
		{STAR, "*"},
		{IDENT, "my stock"},
		{LBRACKET, "["},
		{IDENT, "a"},
		{COMMA, ","},
		{STAR, "*"},
		{COMMA, ","},
		{NUMBER, "1"},
		{COLON, ":"},
		{NUMBER, "3"},
		{RBRACKET, "]"},
		{CARET, "^"},
		{NUMBER, "2"},
		{EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("test[%d] wrong type: expected=%v got=%v (%q)", i, tt.expectedType, tok.Type, tok.Lit)
		}
		if tok.Lit != tt.expectedLit {
			t.Fatalf("test[%d] wrong literal: expected=%q got=%q", i, tt.expectedLit, tok.Lit)
		}
	}
}

func TestScientificNotation(t *testing.T) {
	l := New("1.5e-3 + 2E+10")
	toks := l.All()
	want := []string{"1.5e-3", "+", "2E+10", ""}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, w := range want {
		if toks[i].Lit != w {
			t.Fatalf("token %d: expected %q got %q", i, w, toks[i].Lit)
		}
	}
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	l := New("if a then b else c")
	expected := []TokenType{IF, IDENT, THEN, IDENT, ELSE, IDENT, EOF}
	for _, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("expected %v got %v", want, tok.Type)
		}
	}
}
