package lexer

import (
	"regexp"
)

type tokenRegex struct {
	Pattern *regexp.Regexp
	Raw     string
}

func keyword(word string) tokenRegex {
	raw := `^(?i:` + word + `)\b`
	return tokenRegex{regexp.MustCompile(raw), raw}
}

// Token regex patterns
var tokenRegexes = map[TokenType]tokenRegex{
	REF:    keyword("ref"),
	FLEX:   keyword("flex"),
	STRUCT: keyword("struct"),
	UNION:  keyword("union"),
	PROC:   keyword("proc"),
	INT:    keyword("int"),
	REAL:   keyword("real"),
	BOOL:   keyword("bool"),
	CHAR:   keyword("char"),
	STRING: keyword("string"),
	VOID:   keyword("void"),

	COMMA:   {regexp.MustCompile(`^,`), `^,`},
	COLON:   {regexp.MustCompile(`^:`), `^:`},
	LPAREN:  {regexp.MustCompile(`^\(`), `^\(`},
	RPAREN:  {regexp.MustCompile(`^\)`), `^\)`},
	LSBRACE: {regexp.MustCompile(`^\[`), `^\[`},
	RSBRACE: {regexp.MustCompile(`^\]`), `^\]`},

	NUM: {regexp.MustCompile(`^\d+`), `^\d+`},
	ID:  {regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*`), `^[a-zA-Z][a-zA-Z0-9_]*`},
}

var (
	whitespaceRegex = regexp.MustCompile(`^\s+`)
	commentRegex    = regexp.MustCompile(`^//.*`)
)

// Token precedence order for matching (keywords before identifiers)
var tokenPrecedenceOrder = []TokenType{
	STRUCT, STRING, UNION, FLEX, PROC, REAL, BOOL, CHAR, VOID, REF, INT,
	COMMA, COLON, LPAREN, RPAREN, LSBRACE, RSBRACE, NUM, ID,
}

// Get the regex pattern for a token type
func (t TokenType) Regex() *regexp.Regexp {
	if regex, ok := tokenRegexes[t]; ok {
		return regex.Pattern
	}

	return nil
}

// Get the raw regex string for a token type
func (t TokenType) RawRegex() string {
	if regex, ok := tokenRegexes[t]; ok {
		return regex.Raw
	}

	return ""
}

// Match the first token at the start of the string. Whitespace and comments
// match as EOF with their text so that the caller can skip them.
func MatchToken(s string) (TokenType, string, bool) {
	if s == "" {
		return EOF, "", false
	} else if match := whitespaceRegex.FindString(s); match != "" {
		return EOF, match, true
	} else if match := commentRegex.FindString(s); match != "" {
		return EOF, match, true
	}

	for _, tokenType := range tokenPrecedenceOrder {
		if regex, ok := tokenRegexes[tokenType]; ok {
			if match := regex.Pattern.FindString(s); match != "" {
				return tokenType, match, true
			}
		}
	}

	return ILLEGAL, string(s[0]), false
}

// Check if a byte is a digit
func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
