package lexer

import (
	"fmt"
	"strings"
)

type TokenType int
type TokenCategory int

type Token struct {
	Type    TokenType // Type of the token
	Lexeme  string    // Actual text from the declarer
	Literal string    // Literal value (if applicable), empty string if not
	Pos     Position  // Position in the declarer text
}

// NewToken creates a new Token instance
func NewToken(tokenType TokenType, lexeme string, literal string, Pos Position) Token {
	return Token{
		Type:    tokenType,
		Lexeme:  lexeme,
		Literal: literal,
		Pos:     Pos,
	}
}

const (
	NONE TokenCategory = iota
	KEYWORD
	IDENTIFIER
	LITERAL
	DELIMITER
)

const (
	EOF TokenType = iota // End of input

	REF    // ref
	FLEX   // flex
	STRUCT // struct
	UNION  // union
	PROC   // proc
	INT    // int
	REAL   // real
	BOOL   // bool
	CHAR   // char
	STRING // string
	VOID   // void

	ID  // id (identifier)
	NUM // num (number)

	COMMA   // ,
	COLON   // :
	LPAREN  // (
	RPAREN  // )
	LSBRACE // [
	RSBRACE // ]

	ILLEGAL // illegal token
)

var Keywords = map[string]TokenType{
	"ref":    REF,
	"flex":   FLEX,
	"struct": STRUCT,
	"union":  UNION,
	"proc":   PROC,
	"int":    INT,
	"real":   REAL,
	"bool":   BOOL,
	"char":   CHAR,
	"string": STRING,
	"void":   VOID,
}

var tokenNames = map[TokenType]string{
	REF:     "ref",
	FLEX:    "flex",
	STRUCT:  "struct",
	UNION:   "union",
	PROC:    "proc",
	INT:     "int",
	REAL:    "real",
	BOOL:    "bool",
	CHAR:    "char",
	STRING:  "string",
	VOID:    "void",
	LPAREN:  "(",
	RPAREN:  ")",
	LSBRACE: "[",
	RSBRACE: "]",
	COMMA:   ",",
	COLON:   ":",
	ID:      "id",
	NUM:     "num",
	EOF:     "$",
}

// TokenToString converts a TokenType to its string representation
func (t Token) TokenToString() (string, bool) {
	str, ok := tokenNames[t.Type]
	return str, ok
}

// String returns a string representation of the Token
func (t Token) String() string {
	if t.Literal == "" {
		return fmt.Sprintf("T_{%s, %v, nil, %s}",
			t.Type, t.Lexeme, t.Pos.String())
	}

	return fmt.Sprintf("T_{%s, %v, %q, %s}",
		t.Type, t.Lexeme, t.Literal, t.Pos.String())
}

// String returns a string representation of the TokenType
func (t TokenType) String() string {
	if str, ok := (Token{Type: t}).TokenToString(); ok {
		return str
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// GetCategory returns the category of the token
func (t TokenType) GetCategory() TokenCategory {
	switch t {
	case REF, FLEX, STRUCT, UNION, PROC, INT, REAL, BOOL, CHAR, STRING, VOID:
		return KEYWORD
	case ID:
		return IDENTIFIER
	case NUM:
		return LITERAL
	case COMMA, COLON, LPAREN, RPAREN, LSBRACE, RSBRACE:
		return DELIMITER
	default:
		return NONE
	}
}

// StartsMode reports whether a token of type t can begin a mode.
func (t TokenType) StartsMode() bool {
	return t.GetCategory() == KEYWORD || t == LSBRACE
}

// IsKeyword checks if the given identifier is a keyword and returns its TokenType if it is
func IsKeyword(identifier string) (TokenType, bool) {
	tokenType, ok := Keywords[strings.ToLower(identifier)]
	return tokenType, ok
}
