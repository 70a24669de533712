package parser

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"genie/pkg/lexer"
	"genie/pkg/tree"
)

// ParseProgram decodes a program written in YAML and binds it. The document
// has an optional 'modes' mapping of named modes, which may refer to each
// other, and a 'program' sequence of units forming the outermost closed
// clause.
//
// A unit is a scalar or a mapping with a single key naming its kind:
//
//	42, 1.5, true          denotations
//	"text"                 STRING denotation (quoted)
//	x                      identifier (plain); SKIP, NIL and HOLE are reserved
//	[units]                serial clause in the enclosing range
//	block: [units]         closed clause with its own range
//	var: {name, type, init}
//	let: {name, type, value}
//	proc: {name, params: [{name: mode}], result, body}
//	routine: {params, result, body}
//	assign: [destination, source]
//	op: [operator, operand] or [operator, left, right]
//	call: [primary, arguments...]
//	print: [arguments...]
//	slice: [primary, indexers...]  with trim: [lower, upper] for trimmers
//	select: {field, of}
//	is: [left, right]  isnt: [left, right]
//	deref: unit
//	if: {if, then, else}
//	case: {of, in: [units], out}
//	conform: {of, when: [{type, name, do}], out}
//	for: {var, from, by, to, while, do}
//	loc: declarer  heap: declarer
//	display: [units] or {type, of: [units]}
//	unite: {type, of}
//	label: {name, do}  goto: name
//	par: [units]
//	skip: mode  nil: mode  char: c  str: text
func ParseProgram(data []byte) (*tree.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("program: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmpty
	}

	d := &decoder{modes: map[string]*tree.Mode{}}
	root := d.document(doc.Content[0])
	if len(d.errors) > 0 {
		return nil, &SyntaxError{Messages: d.errors}
	}
	if err := tree.Bind(root); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return root, nil
}

type decoder struct {
	modes  map[string]*tree.Mode
	errors []string
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) {
	d.errors = append(d.errors, render(fmt.Sprintf(format, args...), n.Line, n.Column))
}

func (d *decoder) document(n *yaml.Node) *tree.Node {
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "A program is a mapping with 'modes' and 'program'")
		return nil
	}
	var program *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "modes":
			d.declareModes(value)
		case "program":
			program = value
		default:
			d.errorf(key, "Unknown section '%s'", key.Value)
		}
	}
	if program == nil {
		d.errorf(n, "Missing 'program'")
		return nil
	}
	if program.Kind != yaml.SequenceNode {
		d.errorf(program, "'program' must be a sequence of units")
		return nil
	}
	root := tree.Block(d.units(program)...)
	root.Line = program.Line
	return root
}

// declareModes parses the named modes. Every name is declared before any
// definition is parsed so that modes may refer to each other, and to
// themselves through REF or PROC.
func (d *decoder) declareModes(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "'modes' must map names to declarers")
		return
	}
	type definition struct {
		key, value *yaml.Node
		mode       *tree.Mode
	}
	var defs []definition
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if _, keyword := lexer.IsKeyword(key.Value); keyword || key.Value == "" {
			d.errorf(key, "'%s' cannot name a mode", key.Value)
			continue
		}
		d.modes[key.Value] = &tree.Mode{Name: key.Value}
		defs = append(defs, definition{key: key, value: n.Content[i+1]})
	}
	for i := range defs {
		m, err := d.parser(defs[i].value).Mode()
		if err != nil {
			d.fail(err)
			continue
		}
		defs[i].mode = m
	}

	// a definition that only renames another mode is filled after it
	placeholders := map[*tree.Mode]string{}
	for name, m := range d.modes {
		placeholders[m] = name
	}
	filled := map[string]bool{}
	var fill func(def definition, visiting map[string]bool)
	fill = func(def definition, visiting map[string]bool) {
		name := def.key.Value
		if filled[name] || def.mode == nil {
			return
		}
		if visiting[name] {
			d.errorf(def.key, "Mode '%s' is defined in terms of itself only", name)
			filled[name] = true
			return
		}
		visiting[name] = true
		if other, alias := placeholders[def.mode]; alias {
			for _, o := range defs {
				if o.key.Value == other {
					fill(o, visiting)
				}
			}
		}
		ph := d.modes[name]
		*ph = *def.mode
		ph.Name = name
		filled[name] = true
	}
	for _, def := range defs {
		fill(def, map[string]bool{})
	}
}

func (d *decoder) parser(n *yaml.Node) *Parser {
	return NewParser(lexer.NewLexer(n.Value), d.modes).At(n.Line, n.Column)
}

func (d *decoder) fail(err error) {
	var syntax *SyntaxError
	if errors.As(err, &syntax) {
		d.errors = append(d.errors, syntax.Messages...)
		return
	}
	d.errors = append(d.errors, err.Error())
}

func (d *decoder) units(n *yaml.Node) []*tree.Node {
	units := make([]*tree.Node, 0, len(n.Content))
	for _, c := range n.Content {
		if u := d.unit(c); u != nil {
			units = append(units, u)
		}
	}
	return units
}

// optional decodes a unit that may be absent or null.
func (d *decoder) optional(n *yaml.Node) *tree.Node {
	if n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil
	}
	return d.unit(n)
}

func (d *decoder) unit(n *yaml.Node) *tree.Node {
	var u *tree.Node
	switch n.Kind {
	case yaml.ScalarNode:
		u = d.scalar(n)
	case yaml.SequenceNode:
		u = tree.Sequence(d.units(n)...)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			d.errorf(n, "A unit is a mapping with a single key")
			return nil
		}
		u = d.construct(n.Content[0], n.Content[1])
	case yaml.AliasNode:
		return d.unit(n.Alias)
	default:
		d.errorf(n, "Expected a unit")
		return nil
	}
	if u != nil && u.Line == 0 {
		u.Line = n.Line
	}
	return u
}

func (d *decoder) scalar(n *yaml.Node) *tree.Node {
	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			d.errorf(n, "Integer %s out of range", n.Value)
		}
		return tree.Lit(v)
	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			d.errorf(n, "Bad real %s", n.Value)
		}
		return tree.Lit(v)
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			d.errorf(n, "Bad truth value %s", n.Value)
		}
		return tree.Lit(v)
	case "!!null":
		d.errorf(n, "Missing unit")
		return nil
	}

	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return tree.Lit(n.Value)
	}
	switch n.Value {
	case "SKIP":
		return tree.SkipUnit(nil)
	case "NIL":
		return tree.NilRef(nil)
	case "HOLE":
		return tree.HoleArg()
	}
	return tree.Ident(n.Value)
}
