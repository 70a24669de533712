package lexer_test

import (
	"genie/pkg/lexer"
	"testing"
)

func TestTokens(t *testing.T) {
	input := "ref flex [1:n, -2:-1] struct (int tag, union (real, char) value,\n" +
		"proc (ref node) bool visit, string name, void)"
	mylexer := lexer.NewLexer(input)

	expectedTokens := []lexer.TokenType{
		lexer.REF, lexer.FLEX, lexer.LSBRACE, lexer.NUM, lexer.COLON, lexer.ID, lexer.COMMA,
		lexer.NUM, lexer.COLON, lexer.NUM, lexer.RSBRACE,
		lexer.STRUCT, lexer.LPAREN, lexer.INT, lexer.ID, lexer.COMMA,
		lexer.UNION, lexer.LPAREN, lexer.REAL, lexer.COMMA, lexer.CHAR, lexer.RPAREN, lexer.ID, lexer.COMMA,
		lexer.PROC, lexer.LPAREN, lexer.REF, lexer.ID, lexer.RPAREN, lexer.BOOL, lexer.ID, lexer.COMMA,
		lexer.STRING, lexer.ID, lexer.COMMA, lexer.VOID, lexer.RPAREN,
		lexer.EOF,
	}

	for i, expected := range expectedTokens {
		token := mylexer.NextToken()
		if token.Type != expected {
			t.Errorf("Token %d: expected %s, got %s", i, expected, token.Type)
		}
	}
}

func TestKeywordsIgnoreCase(t *testing.T) {
	mylexer := lexer.NewLexer("REF Int FLEX refs")
	expectedTokens := []lexer.TokenType{lexer.REF, lexer.INT, lexer.FLEX, lexer.ID, lexer.EOF}

	for i, expected := range expectedTokens {
		token := mylexer.NextToken()
		if token.Type != expected {
			t.Errorf("Token %d: expected %s, got %s", i, expected, token.Type)
		}
	}
}

func TestPositions(t *testing.T) {
	mylexer := lexer.NewLexer("ref\n  [1:3] int")
	expected := []lexer.Position{
		{Line: 1, Column: 1}, {Line: 2, Column: 3}, {Line: 2, Column: 4},
	}

	for i, want := range expected {
		token := mylexer.NextToken()
		if token.Pos.Line != want.Line || token.Pos.Column != want.Column {
			t.Errorf("Token %d (%s): expected %s, got %s", i, token.Lexeme, want, token.Pos)
		}
	}
}

func TestIllegal(t *testing.T) {
	mylexer := lexer.NewLexer("int & x")
	if token := mylexer.NextToken(); token.Type != lexer.INT {
		t.Fatalf("expected int, got %s", token.Type)
	}
	token := mylexer.NextToken()
	if token.Type != lexer.ILLEGAL || token.Lexeme != "&" {
		t.Errorf("expected illegal '&', got %s", token)
	}
	if token := mylexer.NextToken(); token.Type != lexer.ID {
		t.Errorf("lexing must resume after an illegal character, got %s", token.Type)
	}
}
