package parser

import (
	"strconv"

	"genie/pkg/lexer"
	"genie/pkg/tree"
)

// Parser is a recursive descent parser for the declarer notation:
//
//	declarer := 'ref' declarer
//	          | ['flex'] '[' bounds ']' declarer
//	          | 'struct' '(' declarer name {',' [declarer] name} ')'
//	          | 'union' '(' declarer {',' declarer} ')'
//	          | 'proc' ['(' declarer {',' declarer} ')'] declarer
//	          | 'int' | 'real' | 'bool' | 'char' | 'string' | 'void'
//	          | mode name
//	bounds   := bound {',' bound}
//	bound    := [unit ':'] unit | empty
//	unit     := num | name
//
// Bounds are only allowed where a value is generated: not under 'ref',
// 'proc' or 'union'.
type Parser struct {
	lexer        *lexer.Lexer          // lexer instance
	currentToken lexer.Token           // current token
	modes        map[string]*tree.Mode // named modes in scope
	line, column int                   // where the text starts in its file
	errors       []string              // list of errors
}

// NewParser creates a new parser instance
func NewParser(l *lexer.Lexer, modes map[string]*tree.Mode) *Parser {
	p := &Parser{
		lexer:  l,
		modes:  modes,
		line:   1,
		column: 1,
		errors: []string{},
	}

	// Initialize current token
	p.nextToken()

	return p
}

// At places the parsed text within a larger file for error reporting.
func (p *Parser) At(line, column int) *Parser {
	p.line, p.column = line, column
	return p
}

// ParseDeclarer parses an actual declarer, bounds included.
func ParseDeclarer(text string, modes map[string]*tree.Mode) (*tree.Declarer, error) {
	return NewParser(lexer.NewLexer(text), modes).Declarer()
}

// ParseMode parses a formal declarer and returns its mode.
func ParseMode(text string, modes map[string]*tree.Mode) (*tree.Mode, error) {
	return NewParser(lexer.NewLexer(text), modes).Mode()
}

// Declarer parses the whole input as an actual declarer.
func (p *Parser) Declarer() (*tree.Declarer, error) {
	d := p.declarer(true)
	p.end()
	return d, p.err()
}

// Mode parses the whole input as a formal declarer.
func (p *Parser) Mode() (*tree.Mode, error) {
	d := p.declarer(false)
	p.end()
	return d.Mode, p.err()
}

// nextToken advances to the next token from the lexer
func (p *Parser) nextToken() {
	p.currentToken = p.lexer.NextToken()
}

// expect consumes a token of type t or reports what is missing
func (p *Parser) expect(t lexer.TokenType) bool {
	if p.currentToken.Type != t {
		p.addError(p.categorizeError(t, p.currentToken))
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) end() {
	if p.currentToken.Type != lexer.EOF && len(p.errors) == 0 {
		p.addError("Unexpected '" + p.currentToken.Lexeme + "' after declarer")
	}
}

var primitives = map[lexer.TokenType]*tree.Mode{
	lexer.INT:    tree.Int,
	lexer.REAL:   tree.Real,
	lexer.BOOL:   tree.Bool,
	lexer.CHAR:   tree.Char,
	lexer.STRING: tree.String,
	lexer.VOID:   tree.Void,
}

// declarer parses one declarer. Errors never stop it from returning a
// usable declarer so that parsing can go on and report more.
func (p *Parser) declarer(actual bool) *tree.Declarer {
	tok := p.currentToken
	if m, ok := primitives[tok.Type]; ok {
		p.nextToken()
		return tree.Formal(m)
	}

	switch tok.Type {
	case lexer.REF:
		p.nextToken()
		return tree.Formal(tree.RefTo(p.declarer(false).Mode))

	case lexer.FLEX:
		p.nextToken()
		if p.currentToken.Type != lexer.LSBRACE {
			p.addError("Expected '[' after flex")
			return tree.Formal(tree.Void)
		}
		return p.row(actual, true)

	case lexer.LSBRACE:
		return p.row(actual, false)

	case lexer.STRUCT:
		p.nextToken()
		return p.structure(actual)

	case lexer.UNION:
		p.nextToken()
		return tree.Formal(tree.UnionOf(p.modeList()...))

	case lexer.PROC:
		p.nextToken()
		var params []*tree.Mode
		if p.currentToken.Type == lexer.LPAREN {
			params = p.modeList()
		}
		return tree.Formal(tree.ProcOf(p.declarer(false).Mode, params...))

	case lexer.ID:
		p.nextToken()
		if m, ok := p.modes[tok.Lexeme]; ok {
			return tree.Formal(m)
		}
		p.addError("Unknown mode '" + tok.Lexeme + "'")
		return tree.Formal(tree.Void)
	}

	p.addError(p.categorizeError(lexer.INT, tok))
	if tok.Type != lexer.EOF {
		p.nextToken()
	}
	return tree.Formal(tree.Void)
}

func (p *Parser) row(actual, flex bool) *tree.Declarer {
	p.nextToken() // [
	var bounds []tree.Bound
	dim, given := 1, 0
	for {
		if t := p.currentToken.Type; t != lexer.COMMA && t != lexer.RSBRACE {
			bounds = append(bounds, p.bound())
			given++
		}
		if p.currentToken.Type != lexer.COMMA {
			break
		}
		p.nextToken()
		dim++
	}
	p.expect(lexer.RSBRACE)

	switch {
	case given > 0 && !actual:
		p.addError("Bounds are not allowed in a formal declarer")
		bounds = nil
	case given > 0 && given != dim:
		p.addError("Every dimension needs bounds")
		bounds = nil
	}

	elem := p.declarer(actual)
	d := &tree.Declarer{Mode: tree.RowOf(elem.Mode, dim), Bounds: bounds}
	if flex {
		d.Mode = tree.FlexRowOf(elem.Mode, dim)
	}
	if elem.BoundCount() > 0 {
		d.Elem = elem
	}
	return d
}

// bound parses 'lower:upper' or 'upper', which counts from 1.
func (p *Parser) bound() tree.Bound {
	first := p.boundUnit()
	if p.currentToken.Type != lexer.COLON {
		return tree.Bound{Lower: tree.Lit(1), Upper: first}
	}
	p.nextToken()
	return tree.Bound{Lower: first, Upper: p.boundUnit()}
}

func (p *Parser) boundUnit() *tree.Node {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUM:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError("Bound " + tok.Lexeme + " out of range")
		}
		return tree.Lit(v)
	case lexer.ID:
		p.nextToken()
		return tree.Ident(tok.Lexeme)
	}
	p.addError(p.categorizeError(lexer.NUM, tok))
	return tree.Lit(0)
}

func (p *Parser) structure(actual bool) *tree.Declarer {
	if !p.expect(lexer.LPAREN) {
		return tree.Formal(tree.Void)
	}

	var fields []tree.Field
	var decls []*tree.Declarer
	bounded := false
	for {
		d := p.declarer(actual)
		for {
			name := p.currentToken
			if !p.expect(lexer.ID) {
				break
			}
			fields = append(fields, tree.Field{Name: name.Lexeme, Mode: d.Mode})
			if d.BoundCount() > 0 {
				decls = append(decls, d)
				bounded = true
			} else {
				decls = append(decls, nil)
			}
			if p.currentToken.Type != lexer.COMMA || p.startsField() {
				break
			}
			p.nextToken()
		}
		if p.currentToken.Type != lexer.COMMA {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.RPAREN)

	d := tree.Formal(tree.StructOf(fields...))
	if bounded {
		d.Fields = decls
	}
	return d
}

// startsField reports whether the token after the current comma begins a new
// field declarer rather than another name of the same declarer.
func (p *Parser) startsField() bool {
	next := p.lexer.Peek()
	if next.Type.StartsMode() {
		return true
	}
	if next.Type != lexer.ID {
		return false
	}
	_, named := p.modes[next.Lexeme]
	return named
}

func (p *Parser) modeList() []*tree.Mode {
	if !p.expect(lexer.LPAREN) {
		return nil
	}
	var modes []*tree.Mode
	for {
		modes = append(modes, p.declarer(false).Mode)
		if p.currentToken.Type != lexer.COMMA {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.RPAREN)
	return modes
}
