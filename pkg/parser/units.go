package parser

import (
	"gopkg.in/yaml.v3"

	"genie/pkg/tree"
)

// construct decodes a unit written as a mapping with the single key kind.
func (d *decoder) construct(kind, value *yaml.Node) *tree.Node {
	switch kind.Value {
	case "block":
		return tree.Block(d.list(value)...)

	case "var":
		f := d.fields(value, "name", "type", "init")
		return tree.Var(d.name(value, f, "name"), d.declarer(d.need(value, f, "type")), d.optional(f["init"]))

	case "let":
		f := d.fields(value, "name", "type", "value")
		return tree.Let(d.name(value, f, "name"), d.mode(d.need(value, f, "type")), d.required(value, f, "value"))

	case "proc":
		f := d.fields(value, "name", "params", "result", "body")
		r := d.routine(value, f)
		return tree.Let(d.name(value, f, "name"), r.Mode, r)

	case "routine":
		return d.routine(value, d.fields(value, "params", "result", "body"))

	case "assign":
		parts := d.parts(value, 2, 2)
		return tree.Assign(parts[0], parts[1])

	case "op":
		items := d.seq(value, 2, 3)
		if items == nil {
			return tree.SkipUnit(nil)
		}
		op := d.text(items[0])
		if len(items) == 2 {
			return tree.Monad(op, d.must(items[1]))
		}
		return tree.Dyadic(op, d.must(items[1]), d.must(items[2]))

	case "call":
		parts := d.parts(value, 1, -1)
		return tree.CallOf(parts[0], parts[1:]...)

	case "print":
		return tree.CallOf(tree.Ident("print"), d.list(value)...)

	case "slice":
		parts := d.parts(value, 2, -1)
		return tree.SliceOf(parts[0], parts[1:]...)

	case "trim":
		items := d.seq(value, 2, 2)
		if items == nil {
			return tree.Trim(nil, nil)
		}
		return tree.Trim(d.optional(items[0]), d.optional(items[1]))

	case "select":
		f := d.fields(value, "field", "of")
		return tree.Select(d.name(value, f, "field"), d.required(value, f, "of"))

	case "is", "isnt":
		parts := d.parts(value, 2, 2)
		return tree.Is(parts[0], parts[1], kind.Value == "isnt")

	case "deref":
		return tree.Deref(d.must(value))

	case "if":
		f := d.fields(value, "if", "then", "else")
		return tree.If(d.required(value, f, "if"), d.required(value, f, "then"), d.optional(f["else"]))

	case "case":
		f := d.fields(value, "of", "in", "out")
		return tree.CaseOf(d.required(value, f, "of"), d.optional(f["out"]), d.list(d.need(value, f, "in"))...)

	case "conform":
		f := d.fields(value, "of", "when", "out")
		var specifiers []*tree.Node
		for _, item := range d.seq(d.need(value, f, "when"), 1, -1) {
			g := d.fields(item, "type", "name", "do")
			name := ""
			if n, ok := g["name"]; ok {
				name = d.text(n)
			}
			spec := tree.When(d.mode(d.need(item, g, "type")), name, d.required(item, g, "do"))
			spec.Line = item.Line
			specifiers = append(specifiers, spec)
		}
		return tree.Conform(d.required(value, f, "of"), d.optional(f["out"]), specifiers...)

	case "for":
		f := d.fields(value, "var", "from", "by", "to", "while", "do")
		counter := ""
		if n, ok := f["var"]; ok {
			counter = d.text(n)
		}
		return tree.For(counter, d.optional(f["from"]), d.optional(f["by"]), d.optional(f["to"]),
			d.optional(f["while"]), d.required(value, f, "do"))

	case "loc":
		return tree.Gen(tree.Local, d.declarer(value))

	case "heap":
		return tree.Gen(tree.Heap, d.declarer(value))

	case "display":
		if value.Kind == yaml.SequenceNode {
			return tree.Display(nil, d.list(value)...)
		}
		f := d.fields(value, "type", "of")
		var m *tree.Mode
		if n, ok := f["type"]; ok {
			m = d.mode(n)
		}
		return tree.Display(m, d.list(d.need(value, f, "of"))...)

	case "unite":
		f := d.fields(value, "type", "of")
		return tree.Unite(d.mode(d.need(value, f, "type")), d.required(value, f, "of"))

	case "label":
		f := d.fields(value, "name", "do")
		return tree.Labelled(d.name(value, f, "name"), d.required(value, f, "do"))

	case "goto":
		return tree.Goto(d.text(value))

	case "par":
		return tree.Par(d.list(value)...)

	case "skip", "nil":
		var m *tree.Mode
		if value.Tag != "!!null" {
			m = d.mode(value)
		}
		if kind.Value == "nil" {
			return tree.NilRef(m)
		}
		return tree.SkipUnit(m)

	case "char":
		r := []rune(d.text(value))
		if len(r) != 1 {
			d.errorf(value, "A character denotation holds one character")
			return tree.Lit(' ')
		}
		return tree.Lit(r[0])

	case "str":
		return tree.Lit(d.text(value))
	}

	d.errorf(kind, "Unknown unit '%s'", kind.Value)
	return nil
}

func (d *decoder) routine(parent *yaml.Node, f map[string]*yaml.Node) *tree.Node {
	var params []tree.Param
	if p, ok := f["params"]; ok {
		for _, item := range d.seq(p, 0, -1) {
			if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
				d.errorf(item, "A parameter maps its name to its mode")
				continue
			}
			params = append(params, tree.Param{Name: item.Content[0].Value, Mode: d.mode(item.Content[1])})
		}
	}
	result := tree.Void
	if r, ok := f["result"]; ok {
		result = d.mode(r)
	}
	return tree.Routine(result, params, d.required(parent, f, "body"))
}

// fields reads the named parts of a unit, reporting parts it does not know.
func (d *decoder) fields(n *yaml.Node, known ...string) map[string]*yaml.Node {
	f := map[string]*yaml.Node{}
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "Expected a mapping")
		return f
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		ok := false
		for _, k := range known {
			ok = ok || k == key.Value
		}
		if !ok {
			d.errorf(key, "Unknown part '%s'", key.Value)
			continue
		}
		f[key.Value] = n.Content[i+1]
	}
	return f
}

// need returns a required part, or an empty scalar after reporting it.
func (d *decoder) need(parent *yaml.Node, f map[string]*yaml.Node, key string) *yaml.Node {
	if n, ok := f[key]; ok {
		return n
	}
	d.errorf(parent, "Missing '%s'", key)
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: parent.Line, Column: parent.Column}
}

func (d *decoder) required(parent *yaml.Node, f map[string]*yaml.Node, key string) *tree.Node {
	if n, ok := f[key]; ok {
		return d.must(n)
	}
	d.errorf(parent, "Missing '%s'", key)
	return tree.SkipUnit(nil)
}

// must decodes a unit, standing in a skip for one that failed so that
// decoding can go on.
func (d *decoder) must(n *yaml.Node) *tree.Node {
	if u := d.unit(n); u != nil {
		return u
	}
	return tree.SkipUnit(nil)
}

func (d *decoder) list(n *yaml.Node) []*tree.Node {
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "Expected a sequence of units")
		return nil
	}
	return d.units(n)
}

// seq returns the items of a sequence of lo to hi items; hi < 0 means no
// limit. It returns nil after reporting a mismatch.
func (d *decoder) seq(n *yaml.Node, lo, hi int) []*yaml.Node {
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "Expected a sequence")
		return nil
	}
	if len(n.Content) < lo || (hi >= 0 && len(n.Content) > hi) {
		switch {
		case lo == hi:
			d.errorf(n, "Expected %d items, got %d", lo, len(n.Content))
		case hi < 0:
			d.errorf(n, "Expected at least %d items, got %d", lo, len(n.Content))
		default:
			d.errorf(n, "Expected %d to %d items, got %d", lo, hi, len(n.Content))
		}
		return nil
	}
	return n.Content
}

// parts decodes a sequence of units, padded to lo so callers may index it.
func (d *decoder) parts(n *yaml.Node, lo, hi int) []*tree.Node {
	items := d.seq(n, lo, hi)
	units := make([]*tree.Node, 0, max(lo, len(items)))
	for _, item := range items {
		units = append(units, d.must(item))
	}
	for len(units) < lo {
		units = append(units, tree.SkipUnit(nil))
	}
	return units
}

func (d *decoder) text(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		d.errorf(n, "Expected a name")
		return ""
	}
	return n.Value
}

func (d *decoder) name(parent *yaml.Node, f map[string]*yaml.Node, key string) string {
	return d.text(d.need(parent, f, key))
}

func (d *decoder) mode(n *yaml.Node) *tree.Mode {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		d.errorf(n, "Expected a declarer")
		return tree.Void
	}
	m, err := d.parser(n).Mode()
	if err != nil {
		d.fail(err)
		return tree.Void
	}
	return m
}

func (d *decoder) declarer(n *yaml.Node) *tree.Declarer {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		d.errorf(n, "Expected a declarer")
		return tree.Formal(tree.Void)
	}
	decl, err := d.parser(n).Declarer()
	if err != nil {
		d.fail(err)
		return tree.Formal(tree.Void)
	}
	for _, b := range decl.BoundUnits() {
		b.Line = n.Line
	}
	return decl
}
