package lexer_test

import (
	"genie/pkg/lexer"
	"testing"
)

func TestNumbers(t *testing.T) {
	tests := []struct {
		input       string
		expected    lexer.TokenType
		description string
	}{
		{"42", lexer.NUM, "integer"},
		{"0", lexer.NUM, "zero"},
		{"1000000", lexer.NUM, "large integer"},
		{"007", lexer.NUM, "leading zeros"},
	}

	for _, test := range tests {
		tokenType, lexeme, matched := lexer.MatchToken(test.input)
		if !matched {
			t.Errorf("Failed to match %s (%s)", test.input, test.description)
		}
		if tokenType != test.expected {
			t.Errorf("Input %s (%s): expected %s, got %s", test.input, test.description, test.expected, tokenType)
		}
		if lexeme != test.input {
			t.Errorf("Input %s (%s): expected lexeme %s, got %s", test.input, test.description, test.input, lexeme)
		}
	}
}

func TestSignedBounds(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"[-3:-1]", []string{"[", "-3", ":", "-1", "]"}},
		{"[1:4, -2:2]", []string{"[", "1", ":", "4", ",", "-2", ":", "2", "]"}},
	}

	for _, test := range tests {
		mylexer := lexer.NewLexer(test.input)
		for i, want := range test.expected {
			token := mylexer.NextToken()
			if token.Lexeme != want {
				t.Errorf("%s token %d: expected %q, got %q", test.input, i, want, token.Lexeme)
			}
		}
	}

	// a minus outside a bound is not part of a number
	mylexer := lexer.NewLexer("int -1")
	mylexer.NextToken()
	if token := mylexer.NextToken(); token.Type != lexer.ILLEGAL {
		t.Errorf("expected an illegal '-', got %s", token)
	}
}
