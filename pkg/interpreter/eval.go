package interpreter

import (
	"genie/pkg/tree"
)

// Evaluate pushes the value of n onto the evaluation stack: Mode.Size()
// cells, none for VOID. A node starts on the generic path; after its first
// successful evaluation its dispatch slot may be refined to a handler that
// skips the classification work on later visits.
func (rt *Runtime) Evaluate(n *tree.Node) error {
	rt.depth++
	if rt.depth > rt.maxDepth {
		rt.depth--
		return locate(faultf(FaultRecursion, "more than %d nested evaluations", rt.maxDepth), n)
	}

	var err error
	if rt.specialise && n.Dispatch.Specialised() {
		err = rt.specialised(n)
	} else {
		err = rt.generic(n)
		if err == nil && rt.specialise {
			rt.refine(n)
		}
	}
	rt.depth--

	if err != nil {
		return locate(err, n)
	}
	return nil
}

func (rt *Runtime) generic(n *tree.Node) error {
	switch n.Attr {
	case tree.Denotation:
		return rt.denotation(n)
	case tree.Identifier:
		return rt.identifier(n)
	case tree.Dereference:
		return rt.dereference(n)
	case tree.Formula:
		op := lookupDyadic(n.Op, n.Children[0].Mode, n.Children[1].Mode)
		if op == nil {
			internalf("no operator %s for %s and %s", n.Op, n.Children[0].Mode, n.Children[1].Mode)
		}
		return rt.formula(n, op)
	case tree.Monadic:
		op := lookupMonadic(n.Op, n.Children[0].Mode)
		if op == nil {
			internalf("no operator %s for %s", n.Op, n.Children[0].Mode)
		}
		return rt.monadic(n, op)
	case tree.Call:
		return rt.call(n)
	case tree.Slice:
		return rt.slice(n)
	case tree.Selection:
		return rt.selection(n)
	case tree.Assignation:
		return rt.assignation(n)
	case tree.IdentityRelation:
		return rt.identityRelation(n)
	case tree.Serial:
		return rt.serial(n)
	case tree.Conditional:
		return rt.conditional(n)
	case tree.Case:
		return rt.caseClause(n)
	case tree.Conformity:
		return rt.conformity(n)
	case tree.Loop:
		return rt.loop(n)
	case tree.Generator:
		ref, err := rt.Allocate(n.Declarer, n.Placement)
		if err != nil {
			return err
		}
		return rt.push(newRef(ref))
	case tree.VariableDeclaration:
		return rt.variableDeclaration(n)
	case tree.IdentityDeclaration:
		return rt.identityDeclaration(n)
	case tree.RoutineText:
		return rt.push(newProc(rt.procedure(n, tree.ScopeUnknown)))
	case tree.Collateral:
		return rt.collateral(n)
	case tree.Uniting:
		return rt.uniting(n)
	case tree.Jump:
		return rt.jump(n)
	case tree.Skip:
		return rt.reserve(n.Mode.Size())
	case tree.Nil:
		return rt.push(nilRef)
	case tree.Parallel:
		return rt.parallelClause(n)
	case tree.Hole, tree.Trimmer, tree.Specifier:
		internalf("%s evaluated out of context", n)
	}
	internalf("cannot evaluate %s", n)
	return nil
}

// refine picks a specialised strategy for n once its shape is known to be
// fixed. Every case depends only on the tree, never on run-time values.
func (rt *Runtime) refine(n *tree.Node) {
	slot := &n.Dispatch
	switch n.Attr {
	case tree.Denotation:
		if _, isString := n.Literal.(string); !isString {
			cached := make([]Value, n.Mode.Size())
			copy(cached, rt.top(len(cached)))
			slot.Refine(tree.DispatchConstant, cached, n)
		}

	case tree.Identifier:
		sym := n.Symbol
		switch {
		case sym.Kind == tree.Standard:
			slot.Refine(tree.DispatchStandard, rt.top(1)[0], n)
		case sym.Kind == tree.Variable && sym.Level == 1:
			slot.Refine(tree.DispatchGlobalVariable, sym, n)
		case sym.Kind == tree.Variable:
			slot.Refine(tree.DispatchFrameVariable, sym, n)
		case sym.Level == 1:
			slot.Refine(tree.DispatchGlobalIdentity, sym, n)
		default:
			slot.Refine(tree.DispatchFrameIdentity, sym, n)
		}

	case tree.Dereference:
		if child := n.Children[0]; isVariable(child) {
			slot.Refine(tree.DispatchDerefFrameVariable, child.Symbol, child)
		}

	case tree.Formula:
		slot.Refine(tree.DispatchFormula, lookupDyadic(n.Op, n.Children[0].Mode, n.Children[1].Mode), n)

	case tree.Monadic:
		slot.Refine(tree.DispatchMonadic, lookupMonadic(n.Op, n.Children[0].Mode), n)

	case tree.Assignation:
		dst := n.Children[0]
		if isVariable(dst) && !dst.Mode.Sub.Stowed() && !dst.Mode.Sub.HasScope() {
			slot.Refine(tree.DispatchAssignFrameScalar, dst.Symbol, dst)
		}

	case tree.Slice:
		primary := n.Children[0]
		if !isVariable(primary) {
			return
		}
		for _, ix := range n.Children[1:] {
			if ix.Attr == tree.Trimmer {
				return
			}
		}
		slot.Refine(tree.DispatchSliceFrameRow, primary.Symbol, primary)

	case tree.Call:
		primary := n.Children[0]
		if primary.Attr != tree.Identifier || primary.Symbol.Kind != tree.Standard {
			return
		}
		for _, a := range n.Children[1:] {
			if a.Attr == tree.Hole {
				return
			}
		}
		slot.Refine(tree.DispatchCallStandard, primary.Symbol.Name, primary)
	}
}

func isVariable(n *tree.Node) bool {
	return n.Attr == tree.Identifier && n.Symbol != nil && n.Symbol.Kind == tree.Variable
}

// specialised runs the cached strategy of a refined node.
func (rt *Runtime) specialised(n *tree.Node) error {
	slot := n.Dispatch
	switch slot.Kind {
	case tree.DispatchConstant:
		return rt.pushCells(slot.Unit.([]Value))

	case tree.DispatchStandard:
		return rt.push(slot.Unit.(Value))

	case tree.DispatchGlobalVariable:
		sym := slot.Unit.(*tree.Symbol)
		rec := &rt.records[0]
		return rt.push(newRef(Ref{Mode: AddrFrame, Offset: rec.Base + sym.Offset, Scope: rec.DynamicScope}))

	case tree.DispatchFrameVariable:
		ref, err := rt.Resolve(slot.Unit.(*tree.Symbol))
		if err != nil {
			return err
		}
		return rt.push(newRef(ref))

	case tree.DispatchGlobalIdentity:
		sym := slot.Unit.(*tree.Symbol)
		base := rt.records[0].Base + sym.Offset
		return rt.pushCells(rt.frame[base : base+sym.Mode.Size()])

	case tree.DispatchFrameIdentity:
		return rt.pushCells(rt.slot(slot.Unit.(*tree.Symbol)))

	case tree.DispatchDerefFrameVariable:
		sym := slot.Unit.(*tree.Symbol)
		cells := rt.slot(sym)
		if !sym.Mode.Sub.Stowed() && !cells[0].Valid {
			return faultf(FaultUninitialised, "%s is uninitialised", sym.Name)
		}
		return rt.pushCells(cells)

	case tree.DispatchFormula:
		return rt.formula(n, slot.Unit.(dyadic))

	case tree.DispatchMonadic:
		return rt.monadic(n, slot.Unit.(monadic))

	case tree.DispatchAssignFrameScalar:
		sym := slot.Unit.(*tree.Symbol)
		if err := rt.Evaluate(n.Children[1]); err != nil {
			return err
		}
		v := rt.pop()
		ref, err := rt.Resolve(sym)
		if err != nil {
			return err
		}
		rt.frame[ref.Offset] = v
		return rt.push(newRef(ref))

	case tree.DispatchSliceFrameRow:
		sym := slot.Unit.(*tree.Symbol)
		index, err := rt.indices(n.Children[1:])
		if err != nil {
			return err
		}
		ref, err := rt.Resolve(sym)
		if err != nil {
			return err
		}
		d, err := rt.descriptor(rt.frame[ref.Offset])
		if err != nil {
			return err
		}
		elem, err := rt.element(d, index, ref.Scope)
		if err != nil {
			return err
		}
		return rt.push(newRef(elem))

	case tree.DispatchCallStandard:
		sp := rt.sp
		args := n.Children[1:]
		depth := len(rt.anchors)
		defer rt.release(depth)
		for _, a := range args {
			at := rt.sp
			if err := rt.Evaluate(a); err != nil {
				return err
			}
			rt.hold(at, a.Mode)
		}
		values := make([][]Value, len(args))
		off := sp
		for i, a := range args {
			size := a.Mode.Size()
			values[i] = append([]Value(nil), rt.stack[off:off+size]...)
			off += size
		}
		rt.sp = sp
		return rt.standard(slot.Unit.(string), values, args)
	}
	internalf("unknown dispatch %s", slot.Kind)
	return nil
}

// indices evaluates plain index units.
func (rt *Runtime) indices(units []*tree.Node) ([]int64, error) {
	index := make([]int64, len(units))
	for k, u := range units {
		if err := rt.Evaluate(u); err != nil {
			return nil, err
		}
		v := rt.pop()
		if !v.Valid {
			return nil, faultf(FaultUninitialised, "index is uninitialised")
		}
		index[k] = v.I64
	}
	return index, nil
}
