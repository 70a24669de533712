package tree

import "fmt"

type Attribute int

const (
	Denotation Attribute = iota
	Identifier
	Dereference
	Formula
	Monadic
	Call
	Hole
	Slice
	Trimmer
	Selection
	Assignation
	IdentityRelation
	Serial
	Conditional
	Case
	Conformity
	Specifier
	Loop
	Generator
	VariableDeclaration
	IdentityDeclaration
	RoutineText
	Collateral
	Uniting
	Jump
	Skip
	Nil
	Parallel
)

var attributeNames = [...]string{
	Denotation:          "denotation",
	Identifier:          "identifier",
	Dereference:         "dereference",
	Formula:             "formula",
	Monadic:             "monadic formula",
	Call:                "call",
	Hole:                "hole",
	Slice:               "slice",
	Trimmer:             "trimmer",
	Selection:           "selection",
	Assignation:         "assignation",
	IdentityRelation:    "identity relation",
	Serial:              "serial clause",
	Conditional:         "conditional clause",
	Case:                "case clause",
	Conformity:          "conformity clause",
	Specifier:           "specifier",
	Loop:                "loop clause",
	Generator:           "generator",
	VariableDeclaration: "variable declaration",
	IdentityDeclaration: "identity declaration",
	RoutineText:         "routine text",
	Collateral:          "collateral clause",
	Uniting:             "uniting",
	Jump:                "jump",
	Skip:                "skip",
	Nil:                 "nil",
	Parallel:            "parallel clause",
}

func (a Attribute) String() string {
	if int(a) >= 0 && int(a) < len(attributeNames) {
		return attributeNames[a]
	}
	return fmt.Sprintf("Attribute(%d)", int(a))
}

// Placement selects where a generator puts its object.
type Placement int

const (
	Local Placement = iota
	Heap
)

func (p Placement) String() string {
	if p == Heap {
		return "HEAP"
	}
	return "LOC"
}

// Loop children are positional; absent parts are nil.
const (
	LoopFrom = iota
	LoopBy
	LoopTo
	LoopWhile
	LoopBody
)

// Node is one node of the annotated syntax tree. The front end owns it; the
// only part mutated during execution is Dispatch.
//
// Child layout per attribute:
//
//	Formula             [left, right]         Op
//	Monadic             [operand]             Op
//	Call                [primary, args...]    Hole marks an unbound argument
//	Slice               [primary, indexers...] Trimmer children are [lower, upper]
//	Selection           [secondary]           Name is the field
//	Assignation         [destination, source]
//	IdentityRelation    [left, right]         Op is ":=:" or ":/=:"
//	Serial              [units...]            Labels, optional Range
//	Conditional         [enquiry, then]       Out is the else part, Range
//	Case                [enquiry, units...]   Out
//	Conformity          [enquiry, specifiers...] Out
//	Specifier           [unit]                Symbol (optional), Range
//	Loop                [from, by, to, while, body] Symbol is the counter, Range
//	Generator           -                     Declarer, Placement
//	VariableDeclaration [initialiser?]        Symbol, Declarer
//	IdentityDeclaration [unit]                Symbol
//	RoutineText         [body]                Params, Range
//	Collateral          [units...]
//	Uniting             [unit]
//	Jump                -                     Name, Target
//	Parallel            [units...]
type Node struct {
	Attr      Attribute
	Mode      *Mode
	Name      string
	Symbol    *Symbol
	Op        string
	Literal   any
	Children  []*Node
	Out       *Node
	Range     *Range
	Declarer  *Declarer
	Placement Placement
	Params    []*Symbol
	Label     string
	Labels    map[string]int
	Target    *Node
	Line      int

	Dispatch DispatchSlot
}

func (n *Node) String() string {
	switch n.Attr {
	case Identifier:
		return fmt.Sprintf("%s %q", n.Attr, n.Name)
	case Formula, Monadic:
		return fmt.Sprintf("%s %q", n.Attr, n.Op)
	case Denotation:
		return fmt.Sprintf("%s %v", n.Attr, n.Literal)
	}
	return n.Attr.String()
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Walk visits n and its descendants depth first, left to right, until fn
// returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
	Walk(n.Out, fn)
	if n.Declarer != nil {
		n.Declarer.walkBounds(func(b *Node) { Walk(b, fn) })
	}
}
