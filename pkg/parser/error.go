package parser

import (
	"errors"
	"fmt"
	"strings"

	"genie/pkg/color"
	"genie/pkg/lexer"
)

// SyntaxError collects every problem found in one input. The messages are
// already rendered for the terminal.
type SyntaxError struct {
	Messages []string
}

func (e *SyntaxError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// ErrEmpty is returned for an input without a program.
var ErrEmpty = errors.New("empty program")

// render formats a message with its location the way every front end error
// is shown.
func render(msg string, line, column int) string {
	return color.RedText(msg) + " at " + color.YellowText(fmt.Sprintf("Line: %d, Column %d", line, column))
}

// addError records a parsing error at the current token
func (p *Parser) addError(msg string) {
	pos := p.currentToken.Pos
	column := pos.Column
	if pos.Line == 1 {
		column += p.column - 1
	}
	p.errors = append(p.errors, render(msg, p.line+pos.Line-1, column))
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return &SyntaxError{Messages: p.errors}
}

// categorizeError provides a specific error message based on the expected
// token and the current one
func (p *Parser) categorizeError(expected lexer.TokenType, current lexer.Token) string {
	switch expected {
	case lexer.RPAREN:
		return "Missing closing parenthesis"
	case lexer.RSBRACE:
		return "Missing closing bracket"
	case lexer.LPAREN:
		if current.Type == lexer.LSBRACE {
			return "Wrong bracket type - expected parenthesis"
		}
		return "Missing opening parenthesis"
	case lexer.ID:
		if current.Type.GetCategory() == lexer.KEYWORD {
			return "Cannot use reserved keyword as identifier"
		}
		return "Expected identifier"
	case lexer.NUM:
		return "Expected number"
	}

	if current.Type == lexer.ILLEGAL {
		return fmt.Sprintf("Illegal character '%s'", current.Lexeme)
	}
	if current.Type == lexer.EOF {
		return fmt.Sprintf("Unexpected end of declarer, expected '%s'", expected)
	}
	return fmt.Sprintf("Syntax error: expected '%s', got '%s'", expected, current.Lexeme)
}
