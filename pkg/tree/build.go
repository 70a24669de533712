package tree

import "fmt"

// Constructors for unbound trees. Bind resolves names, levels, offsets and
// modes afterwards; modes that cannot be derived (declarers, displays,
// unitings, routine signatures) are given here.

// Lit returns a denotation. Go ints give INT, float64 REAL, bool BOOL, rune
// CHAR and string STRING.
func Lit(v any) *Node {
	n := &Node{Attr: Denotation}
	switch x := v.(type) {
	case int:
		n.Literal, n.Mode = int64(x), Int
	case int64:
		n.Literal, n.Mode = x, Int
	case float64:
		n.Literal, n.Mode = x, Real
	case bool:
		n.Literal, n.Mode = x, Bool
	case rune:
		n.Literal, n.Mode = x, Char
	case string:
		n.Literal, n.Mode = x, String
	default:
		panic(fmt.Sprintf("no denotation for %T", v))
	}
	return n
}

func Ident(name string) *Node {
	return &Node{Attr: Identifier, Name: name}
}

func Deref(n *Node) *Node {
	return &Node{Attr: Dereference, Children: []*Node{n}}
}

func Dyadic(op string, left, right *Node) *Node {
	return &Node{Attr: Formula, Op: op, Children: []*Node{left, right}}
}

func Monad(op string, operand *Node) *Node {
	return &Node{Attr: Monadic, Op: op, Children: []*Node{operand}}
}

func CallOf(primary *Node, args ...*Node) *Node {
	return &Node{Attr: Call, Children: append([]*Node{primary}, args...)}
}

// HoleArg marks an argument left unbound by partial parametrisation.
func HoleArg() *Node {
	return &Node{Attr: Hole, Mode: Void}
}

func SliceOf(primary *Node, indexers ...*Node) *Node {
	return &Node{Attr: Slice, Children: append([]*Node{primary}, indexers...)}
}

// Trim is a trimmer lower:upper; the trimmed dimension gets lower bound 1.
func Trim(lower, upper *Node) *Node {
	return &Node{Attr: Trimmer, Children: []*Node{lower, upper}}
}

func Select(field string, secondary *Node) *Node {
	return &Node{Attr: Selection, Name: field, Children: []*Node{secondary}}
}

func Assign(dst, src *Node) *Node {
	return &Node{Attr: Assignation, Children: []*Node{dst, src}}
}

// Is compares two names for identity; negate gives :/=:.
func Is(left, right *Node, negate bool) *Node {
	op := ":=:"
	if negate {
		op = ":/=:"
	}
	return &Node{Attr: IdentityRelation, Op: op, Children: []*Node{left, right}, Mode: Bool}
}

// Block is a closed clause: a serial clause with its own range.
func Block(units ...*Node) *Node {
	return &Node{Attr: Serial, Children: units, Range: &Range{}}
}

// Sequence is a serial clause evaluated in the enclosing range.
func Sequence(units ...*Node) *Node {
	return &Node{Attr: Serial, Children: units}
}

// If builds a conditional clause; elsePart may be nil.
func If(enquiry, thenPart, elsePart *Node) *Node {
	n := &Node{Attr: Conditional, Children: []*Node{asSequence(enquiry), asBlock(thenPart)}, Range: &Range{}}
	if elsePart != nil {
		n.Out = asBlock(elsePart)
	}
	return n
}

// CaseOf builds an integer case clause; out may be nil.
func CaseOf(enquiry *Node, out *Node, units ...*Node) *Node {
	n := &Node{Attr: Case, Children: []*Node{asSequence(enquiry)}, Range: &Range{}}
	for _, u := range units {
		n.Children = append(n.Children, asBlock(u))
	}
	if out != nil {
		n.Out = asBlock(out)
	}
	return n
}

// Conform builds a conformity clause over a united enquiry.
func Conform(enquiry *Node, out *Node, specifiers ...*Node) *Node {
	n := &Node{Attr: Conformity, Children: append([]*Node{asSequence(enquiry)}, specifiers...), Range: &Range{}}
	if out != nil {
		n.Out = asBlock(out)
	}
	return n
}

// When is a conformity specifier; name may be empty.
func When(mode *Mode, name string, body *Node) *Node {
	n := &Node{Attr: Specifier, Mode: mode, Children: []*Node{body}, Range: &Range{}}
	if name != "" {
		n.Symbol = &Symbol{Name: name, Kind: Identity, Mode: mode}
	}
	return n
}

// For builds a loop clause. Any part may be nil; an empty counter name
// declares an anonymous counter.
func For(counter string, from, by, to, while, body *Node) *Node {
	if counter == "" {
		counter = "%counter"
	}
	return &Node{
		Attr:     Loop,
		Symbol:   &Symbol{Name: counter, Kind: Identity, Mode: Int},
		Children: []*Node{from, by, to, while, asBlock(body)},
		Range:    &Range{},
		Mode:     Void,
	}
}

func Gen(p Placement, d *Declarer) *Node {
	return &Node{Attr: Generator, Placement: p, Declarer: d, Mode: RefTo(d.Mode)}
}

// Var declares a variable; init may be nil.
func Var(name string, d *Declarer, init *Node) *Node {
	n := &Node{Attr: VariableDeclaration, Declarer: d, Symbol: &Symbol{Name: name, Kind: Variable, Mode: RefTo(d.Mode)}, Mode: Void}
	if init != nil {
		n.Children = []*Node{init}
	}
	return n
}

// Let declares an identity.
func Let(name string, mode *Mode, unit *Node) *Node {
	return &Node{Attr: IdentityDeclaration, Symbol: &Symbol{Name: name, Kind: Identity, Mode: mode}, Children: []*Node{unit}, Mode: Void}
}

// Param is a formal parameter of a routine text.
type Param struct {
	Name string
	Mode *Mode
}

// Routine builds a routine text.
func Routine(result *Mode, params []Param, body *Node) *Node {
	n := &Node{Attr: RoutineText, Children: []*Node{body}, Range: &Range{}}
	modes := make([]*Mode, len(params))
	for i, p := range params {
		modes[i] = p.Mode
		n.Params = append(n.Params, &Symbol{Name: p.Name, Kind: Parameter, Mode: p.Mode})
	}
	n.Mode = ProcOf(result, modes...)
	return n
}

// Proc declares a procedure identity.
func Proc(name string, result *Mode, params []Param, body *Node) *Node {
	r := Routine(result, params, body)
	return Let(name, r.Mode, r)
}

// Display is a collateral clause yielding mode: a row display or a
// structure display.
func Display(mode *Mode, units ...*Node) *Node {
	return &Node{Attr: Collateral, Mode: mode, Children: units}
}

func Unite(mode *Mode, unit *Node) *Node {
	return &Node{Attr: Uniting, Mode: mode, Children: []*Node{unit}}
}

func Goto(label string) *Node {
	return &Node{Attr: Jump, Name: label, Mode: Void}
}

// Labelled attaches a label to a unit of a serial clause.
func Labelled(label string, unit *Node) *Node {
	unit.Label = label
	return unit
}

func SkipUnit(mode *Mode) *Node {
	if mode == nil {
		mode = Void
	}
	return &Node{Attr: Skip, Mode: mode}
}

func NilRef(mode *Mode) *Node {
	return &Node{Attr: Nil, Mode: mode}
}

func Par(units ...*Node) *Node {
	return &Node{Attr: Parallel, Children: units, Mode: Void}
}

func asBlock(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Attr == Serial {
		if n.Range == nil {
			n.Range = &Range{}
		}
		return n
	}
	return Block(n)
}

func asSequence(n *Node) *Node {
	if n.Attr == Serial && n.Range == nil {
		return n
	}
	return Sequence(n)
}
