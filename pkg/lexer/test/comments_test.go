package lexer_test

import (
	"genie/pkg/lexer"
	"testing"
)

func TestComments(t *testing.T) {
	input := `// a list cell
struct (int value, // payload
        ref cell next)
// trailing comment`

	mylexer := lexer.NewLexer(input)
	expectedTokens := []lexer.TokenType{
		lexer.STRUCT, lexer.LPAREN, lexer.INT, lexer.ID, lexer.COMMA,
		lexer.REF, lexer.ID, lexer.ID, lexer.RPAREN,
		lexer.EOF,
	}

	for i, expected := range expectedTokens {
		token := mylexer.NextToken()
		if token.Type != expected {
			t.Errorf("Token %d: expected %s, got %s", i, expected, token.Type)
		}
	}
}
