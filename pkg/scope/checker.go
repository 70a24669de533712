package scope

import (
	"fmt"

	"genie/pkg/stack"
	"genie/pkg/tree"
)

// Check derives the static scope of every value in a bound program and
// reports each place where a name could outlive the frame it refers to.
// Findings accumulate; the walk never stops at the first one.
//
// As a side effect Check binds scopes onto symbols: an identity gets the
// scope of its value, a variable the youngest scope stored into it. The
// interpreter reads the scope of routine identities to decide how long a
// procedure may be called.
//
// A loop or a jump can bring a read of a variable round again after a later
// store, so the walk repeats until no symbol scope changes. Scopes only grow
// and are bounded by the deepest level, so this terminates.
func Check(root *tree.Node) []Diagnostic {
	c := &checker{
		ranges:   stack.NewStack[*tree.Range](),
		routines: stack.NewStack[*routine](),
	}
	tree.Walk(root, func(n *tree.Node) bool {
		switch n.Attr {
		case tree.VariableDeclaration, tree.IdentityDeclaration, tree.Specifier, tree.Loop:
			if n.Symbol != nil {
				n.Symbol.Scope = tree.ScopeUnknown
			}
		}
		return true
	})
	for {
		c.diags, c.changed = nil, false
		c.unit(root)
		if !c.changed {
			return c.diags
		}
	}
}

// routine tracks the routine texts being checked, innermost on top.
type routine struct {
	level int
	uses  int // youngest non-local level named by the body
}

type checker struct {
	ranges   *stack.Stack[*tree.Range]
	routines *stack.Stack[*routine]
	diags    []Diagnostic
	changed  bool // some symbol scope grew during this pass
}

// raise makes level part of the scope of sym.
func (c *checker) raise(sym *tree.Symbol, level int) {
	if level > sym.Scope {
		sym.Scope = level
		c.changed = true
	}
}

func (c *checker) report(kind Kind, n *tree.Node, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Kind: kind,
		Line: n.Line,
		Node: n,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// level is the lexical level of the innermost range.
func (c *checker) level() int {
	if r, ok := c.ranges.Peek(); ok {
		return r.Level
	}
	return tree.PrimalScope
}

func (c *checker) enter(n *tree.Node) func() {
	if n.Range == nil {
		return func() {}
	}
	c.ranges.Push(n.Range)
	return func() { c.ranges.Pop() }
}

// scoped drops the scope of values whose mode cannot refer to a frame.
func scoped(n *tree.Node, t Tuple) Tuple {
	if n.Mode == nil || !n.Mode.HasScope() {
		return primal
	}
	return t
}

func (c *checker) units(ns []*tree.Node) Tuple {
	t := primal
	for _, n := range ns {
		if n != nil {
			t = t.Join(c.unit(n))
		}
	}
	return t
}

func (c *checker) unit(n *tree.Node) Tuple {
	if n == nil {
		return primal
	}

	switch n.Attr {
	case tree.Denotation, tree.Skip, tree.Nil, tree.Hole:
		return primal

	case tree.Jump:
		// a routine that jumps out needs the frame owning the label
		if n.Target != nil && n.Target.Range != nil {
			c.uses(n.Target.Range.Level)
		}
		return primal

	case tree.Identifier:
		return c.identifier(n)

	case tree.Dereference:
		name := n.Children[0]
		t := c.unit(name)
		if name.Attr == tree.Identifier && name.Symbol != nil && name.Symbol.Kind == tree.Variable {
			return scoped(n, Tuple{Level: max(name.Symbol.Scope, tree.PrimalScope)})
		}
		// whatever a name holds is at least as old as the name
		return scoped(n, Tuple{Level: t.Level})

	case tree.Formula, tree.Monadic, tree.IdentityRelation, tree.Trimmer, tree.Parallel:
		c.units(n.Children)
		return primal

	case tree.Call:
		return c.call(n)

	case tree.Slice:
		t := c.unit(n.Children[0])
		c.units(n.Children[1:])
		if throughFlex(n.Children[0].Mode) {
			t.Transient = true
		}
		return scoped(n, t)

	case tree.Selection:
		t := c.unit(n.Children[0])
		if throughFlex(n.Children[0].Mode) {
			t.Transient = true
		}
		return scoped(n, t)

	case tree.Assignation:
		return c.assignation(n)

	case tree.Serial:
		defer c.enter(n)()
		t := primal
		for _, u := range n.Children {
			t = c.unit(u)
		}
		return scoped(n, t)

	case tree.Conditional:
		defer c.enter(n)()
		c.unit(n.Children[0])
		return scoped(n, c.unit(n.Children[1]).Join(c.unit(n.Out)))

	case tree.Case:
		defer c.enter(n)()
		c.unit(n.Children[0])
		return scoped(n, c.units(n.Children[1:]).Join(c.unit(n.Out)))

	case tree.Conformity:
		return c.conformity(n)

	case tree.Specifier:
		return c.specifier(n, primal)

	case tree.Loop:
		c.unit(n.Children[tree.LoopFrom])
		c.unit(n.Children[tree.LoopBy])
		c.unit(n.Children[tree.LoopTo])
		defer c.enter(n)()
		c.raise(n.Symbol, tree.PrimalScope)
		c.unit(n.Children[tree.LoopWhile])
		c.unit(n.Children[tree.LoopBody])
		return primal

	case tree.Generator:
		c.units(n.Declarer.BoundUnits())
		if n.Placement == tree.Heap {
			return primal
		}
		return Tuple{Level: c.level()}

	case tree.VariableDeclaration:
		c.units(n.Declarer.BoundUnits())
		sym := n.Symbol
		if len(n.Children) > 0 {
			t := c.unit(n.Children[0])
			c.store(n, t, Tuple{Level: sym.Level}, "initial value")
			c.raise(sym, t.Level)
		}
		return primal

	case tree.IdentityDeclaration:
		sym := n.Symbol
		t := c.unit(n.Children[0])
		c.store(n, t, Tuple{Level: sym.Level}, "identity")
		c.raise(sym, scoped(n.Children[0], t).Level)
		return primal

	case tree.RoutineText:
		return c.routineText(n)

	case tree.Collateral:
		t := primal
		for _, u := range n.Children {
			ut := c.unit(u)
			if ut.Transient {
				c.report(Transient, u, "a display cannot hold a transient name")
			}
			t = t.Join(Tuple{Level: ut.Level})
		}
		return scoped(n, t)

	case tree.Uniting:
		return scoped(n, c.unit(n.Children[0]))
	}

	return primal
}

func (c *checker) identifier(n *tree.Node) Tuple {
	sym := n.Symbol
	if sym == nil || sym.Kind == tree.Standard {
		return primal
	}
	c.uses(sym.Level)

	t := Tuple{Level: sym.Level}
	switch {
	case sym.Kind == tree.Variable:
	case sym.Scope != tree.ScopeUnknown:
		t.Level = sym.Scope
	case sym.Kind == tree.Parameter:
		// an argument is older than the frame that receives it
		t.Level = sym.Level - 1
	}
	return scoped(n, t)
}

// uses records that the routines being checked depend on a frame at level.
func (c *checker) uses(level int) {
	for _, r := range c.routines.Array() {
		if level < r.level {
			r.uses = max(r.uses, level)
		}
	}
}

func (c *checker) call(n *tree.Node) Tuple {
	t := c.unit(n.Children[0])
	for i, a := range n.Children[1:] {
		if a.Attr == tree.Hole {
			continue
		}
		at := c.unit(a)
		if at.Transient {
			c.report(Transient, a, "argument %d is a transient name", i+1)
		}
		t = t.Join(Tuple{Level: at.Level})
	}
	return scoped(n, Tuple{Level: t.Level})
}

func (c *checker) assignation(n *tree.Node) Tuple {
	dst := c.unit(n.Children[0])
	src := c.unit(n.Children[1])
	c.store(n, src, dst, "value")
	if name := n.Children[0]; name.Attr == tree.Identifier && name.Symbol.Kind == tree.Variable {
		c.raise(name.Symbol, src.Level)
	}
	return scoped(n, dst)
}

// store checks that a value of scope src may be kept at dst.
func (c *checker) store(n *tree.Node, src, dst Tuple, what string) {
	if src.Transient {
		c.report(Transient, n, "%s is a transient name", what)
	}
	if src.Escapes(dst) {
		c.report(Escape, n, "%s of level %d outlives its destination at level %d", what, src.Level, dst.Level)
	}
}

func (c *checker) conformity(n *tree.Node) Tuple {
	defer c.enter(n)()
	enquiry := c.unit(n.Children[0])
	t := primal
	for _, spec := range n.Children[1:] {
		t = t.Join(c.specifier(spec, enquiry))
	}
	return scoped(n, t.Join(c.unit(n.Out)))
}

func (c *checker) specifier(n *tree.Node, enquiry Tuple) Tuple {
	defer c.enter(n)()
	if n.Symbol != nil {
		level := tree.PrimalScope
		if n.Symbol.Mode.HasScope() {
			level = enquiry.Level
		}
		c.raise(n.Symbol, level)
	}
	return c.unit(n.Children[0])
}

// routineText checks the body and yields the scope of the routine itself:
// the youngest non-local level it names, or primal if it names none.
func (c *checker) routineText(n *tree.Node) Tuple {
	r := &routine{level: n.Range.Level}
	c.routines.Push(r)
	leave := c.enter(n)

	body := n.Children[0]
	t := c.unit(body)
	if n.Mode.Sub.HasScope() {
		if t.Transient {
			c.report(Transient, body, "routine yields a transient name")
		}
		if t.Level >= r.level {
			c.report(Escape, body, "result of level %d refers to a frame of the routine at level %d", t.Level, r.level)
		}
	}

	leave()
	c.routines.Pop()
	return Tuple{Level: r.uses}
}

// throughFlex reports whether m is a name of a flexible row: slicing or
// selecting through it yields a name that dies with the next assignment to
// the row.
func throughFlex(m *tree.Mode) bool {
	return m.IsRef() && m.Sub.IsRow() && m.Sub.Flex
}
