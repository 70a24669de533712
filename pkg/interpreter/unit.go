package interpreter

import (
	"genie/pkg/tree"
)

func (rt *Runtime) denotation(n *tree.Node) error {
	switch x := n.Literal.(type) {
	case int64:
		return rt.push(newInt(x))
	case float64:
		return rt.push(newReal(x))
	case bool:
		return rt.push(newBool(x))
	case rune:
		return rt.push(newChar(x))
	case string:
		row, err := rt.stringRow(x)
		if err != nil {
			return err
		}
		return rt.push(row)
	}
	internalf("bad denotation %T", n.Literal)
	return nil
}

// stringRow builds a fresh [1:n] CHAR row holding s.
func (rt *Runtime) stringRow(s string) (Value, error) {
	chars := []rune(s)
	var row Value
	err := rt.construct(func() error {
		v, d, err := rt.newRowValue([][2]int64{{1, int64(len(chars))}}, tree.Char)
		if err != nil {
			return err
		}
		block := rt.heap.Cells(d.Backing)
		for i, c := range chars {
			block[i] = newChar(c)
		}
		row = v
		return nil
	})
	return row, err
}

func (rt *Runtime) identifier(n *tree.Node) error {
	sym := n.Symbol
	switch sym.Kind {
	case tree.Standard:
		return rt.push(newProc(&Procedure{Standard: sym.Name, Mode: sym.Mode}))
	case tree.Variable:
		ref, err := rt.Resolve(sym)
		if err != nil {
			return err
		}
		return rt.push(newRef(ref))
	}
	return rt.pushCells(rt.slot(sym))
}

func (rt *Runtime) dereference(n *tree.Node) error {
	if err := rt.Evaluate(n.Children[0]); err != nil {
		return err
	}
	name := rt.pop()
	if err := checkName(name); err != nil {
		return err
	}
	cells, err := rt.cells(name.Ref, n.Mode.Size())
	if err != nil {
		return err
	}
	if !n.Mode.Stowed() && len(cells) > 0 && !cells[0].Valid {
		return faultf(FaultUninitialised, "value of mode %s is uninitialised", n.Mode)
	}
	return rt.pushCells(cells)
}

func checkName(v Value) error {
	if !v.Valid {
		return faultf(FaultUninitialised, "name is uninitialised")
	}
	if v.Ref.IsNil() {
		return faultf(FaultNil, "dereferencing NIL")
	}
	return nil
}

func (rt *Runtime) formula(n *tree.Node, op dyadic) error {
	left, right := n.Children[0], n.Children[1]
	sp := rt.sp
	if err := rt.Evaluate(left); err != nil {
		return err
	}
	depth := rt.hold(sp, left.Mode)
	err := rt.Evaluate(right)
	rt.release(depth)
	if err != nil {
		return err
	}
	b := rt.pop()
	a := rt.pop()
	v, err := op(rt, a, b)
	if err != nil {
		return err
	}
	return rt.push(v)
}

func (rt *Runtime) monadic(n *tree.Node, op monadic) error {
	if err := rt.Evaluate(n.Children[0]); err != nil {
		return err
	}
	v, err := op(rt, rt.pop())
	if err != nil {
		return err
	}
	return rt.push(v)
}

// slice indexes or trims a row. Indexing a name yields a name of the
// element; trimming a name yields a transient name of the new row.
func (rt *Runtime) slice(n *tree.Node) error {
	primary := n.Children[0]
	sp := rt.sp
	if err := rt.Evaluate(primary); err != nil {
		return err
	}
	depth := rt.hold(sp, primary.Mode)
	defer rt.release(depth)

	indexers := n.Children[1:]
	index := make([]int64, len(indexers))
	trimmers := make([]*[2]int64, len(indexers))
	for k, ix := range indexers {
		if ix.Attr != tree.Trimmer {
			if err := rt.Evaluate(ix); err != nil {
				return err
			}
			v := rt.pop()
			if !v.Valid {
				return faultf(FaultUninitialised, "index is uninitialised")
			}
			index[k] = v.I64
			continue
		}
		pair := &[2]int64{}
		for j, bound := range ix.Children {
			if bound == nil {
				continue
			}
			if err := rt.Evaluate(bound); err != nil {
				return err
			}
			pair[j] = rt.pop().I64
		}
		trimmers[k] = pair
	}

	pv := rt.stack[sp]
	isName := primary.Mode.IsRef()
	scope := 0
	row := pv
	if isName {
		if err := checkName(pv); err != nil {
			return err
		}
		cells, err := rt.cells(pv.Ref, 1)
		if err != nil {
			return err
		}
		row, scope = cells[0], pv.Ref.Scope
	}
	d, err := rt.descriptor(row)
	if err != nil {
		return err
	}

	trimmed := false
	for k, pair := range trimmers {
		if pair == nil {
			continue
		}
		trimmed = true
		ix := indexers[k]
		if ix.Children[0] == nil {
			pair[0] = d.Tuples[k].Lower
		}
		if ix.Children[1] == nil {
			pair[1] = d.Tuples[k].Upper
		}
	}

	if !trimmed {
		elem, err := rt.element(d, index, scope)
		if err != nil {
			return err
		}
		if isName {
			rt.sp = sp
			return rt.push(newRef(elem))
		}
		cells, err := rt.cells(elem, n.Mode.Size())
		if err != nil {
			return err
		}
		rt.sp = sp
		return rt.pushCells(cells)
	}

	nd, err := trim(d, index, trimmers)
	if err != nil {
		return err
	}
	result, err := rt.transient(nd, isName, scope)
	if err != nil {
		return err
	}
	rt.sp = sp
	return rt.push(result)
}

// transient stores a derived descriptor. For names the new row also gets a
// one-cell heap holder so that it can be referred to.
func (rt *Runtime) transient(d *Descriptor, isName bool, scope int) (Value, error) {
	var result Value
	err := rt.construct(func() error {
		row, err := rt.storeDescriptor(d)
		if err != nil {
			return err
		}
		if !isName {
			result = row
			return nil
		}
		holder, err := rt.heapAlloc(1)
		if err != nil {
			return err
		}
		rt.heap.Cells(holder)[0] = row
		result = newRef(Ref{Mode: AddrHeap, Handle: holder, Scope: scope})
		return nil
	})
	return result, err
}

func (rt *Runtime) selection(n *tree.Node) error {
	sec := n.Children[0]
	sp := rt.sp
	if err := rt.Evaluate(sec); err != nil {
		return err
	}
	depth := rt.hold(sp, sec.Mode)
	defer rt.release(depth)

	m := sec.Mode
	isName := m.IsRef()
	if isName {
		m = m.Sub
	}
	if m.IsRow() {
		return rt.selectRow(n, m, sp, isName)
	}

	field, _, _ := m.Field(n.Name)
	if isName {
		v := rt.pop()
		if err := checkName(v); err != nil {
			return err
		}
		return rt.push(newRef(v.Ref.Add(field.Offset)))
	}
	size := field.Mode.Size()
	copy(rt.stack[sp:sp+size], rt.stack[sp+field.Offset:sp+field.Offset+size])
	rt.sp = sp + size
	return nil
}

// selectRow selects a field from every element of a row of structures,
// giving a row that shares the original elements.
func (rt *Runtime) selectRow(n *tree.Node, m *tree.Mode, sp int, isName bool) error {
	field, _, _ := m.Sub.Field(n.Name)
	pv := rt.stack[sp]
	row, scope := pv, 0
	if isName {
		if err := checkName(pv); err != nil {
			return err
		}
		cells, err := rt.cells(pv.Ref, 1)
		if err != nil {
			return err
		}
		row, scope = cells[0], pv.Ref.Scope
	}
	d, err := rt.descriptor(row)
	if err != nil {
		return err
	}
	d.FieldOffset += field.Offset
	result, err := rt.transient(d, isName, scope)
	if err != nil {
		return err
	}
	rt.sp = sp
	return rt.push(result)
}

func (rt *Runtime) assignation(n *tree.Node) error {
	dst, src := n.Children[0], n.Children[1]
	m := dst.Mode.Sub
	sp := rt.sp
	if err := rt.Evaluate(dst); err != nil {
		return err
	}
	depth := rt.hold(sp, dst.Mode)
	defer rt.release(depth)
	if err := rt.Evaluate(src); err != nil {
		return err
	}
	rt.hold(sp+1, m)

	name := rt.stack[sp]
	if err := checkName(name); err != nil {
		return err
	}
	value := append([]Value(nil), rt.stack[sp+1:sp+1+m.Size()]...)
	if err := rt.checkScope(value, m, name.Ref.Scope, "value"); err != nil {
		return err
	}
	if err := rt.assign(name.Ref, value, m, false); err != nil {
		return err
	}
	rt.sp = sp + 1
	return nil
}

func (rt *Runtime) identityRelation(n *tree.Node) error {
	sp := rt.sp
	if err := rt.Evaluate(n.Children[0]); err != nil {
		return err
	}
	depth := rt.hold(sp, n.Children[0].Mode)
	err := rt.Evaluate(n.Children[1])
	rt.release(depth)
	if err != nil {
		return err
	}
	b, a := rt.pop(), rt.pop()
	same := a.Ref.Same(b.Ref)
	if n.Op == ":/=:" {
		same = !same
	}
	return rt.push(newBool(same))
}

func (rt *Runtime) variableDeclaration(n *tree.Node) error {
	sym := n.Symbol
	m := sym.SlotMode()
	ref, err := rt.Resolve(sym)
	if err != nil {
		return err
	}
	if m.NeedsAllocation() {
		bounds, err := rt.evaluateBounds(n.Declarer)
		if err != nil {
			return err
		}
		if err := rt.construct(func() error { return rt.initialise(ref, n.Declarer, bounds) }); err != nil {
			return err
		}
	}
	if len(n.Children) == 0 {
		return nil
	}

	sp := rt.sp
	if err := rt.Evaluate(n.Children[0]); err != nil {
		return err
	}
	depth := rt.hold(sp, m)
	defer rt.release(depth)
	value := append([]Value(nil), rt.stack[sp:sp+m.Size()]...)
	if err := rt.checkScope(value, m, ref.Scope, "initial value"); err != nil {
		return err
	}
	// a declarer without bounds takes its bounds from the initial value
	fresh := n.Declarer.BoundCount() == 0
	err = rt.assign(ref, value, m, fresh)
	rt.sp = sp
	return err
}

func (rt *Runtime) identityDeclaration(n *tree.Node) error {
	sym := n.Symbol
	unit := n.Children[0]
	if unit.Attr == tree.RoutineText {
		rt.slot(sym)[0] = newProc(rt.procedure(unit, sym.Scope))
		return nil
	}

	sp := rt.sp
	if err := rt.Evaluate(unit); err != nil {
		return err
	}
	value := rt.stack[sp:rt.sp]
	scope := rt.records[rt.frameAt(sym.Level)].DynamicScope
	if err := rt.checkScope(value, sym.Mode, scope, "identity"); err != nil {
		return err
	}
	copy(rt.slot(sym), value)
	rt.sp = sp
	return nil
}

func (rt *Runtime) collateral(n *tree.Node) error {
	sp := rt.sp
	depth := len(rt.anchors)
	defer rt.release(depth)
	for _, u := range n.Children {
		at := rt.sp
		if err := rt.Evaluate(u); err != nil {
			return err
		}
		rt.hold(at, u.Mode)
	}
	if n.Mode.Kind == tree.StructMode {
		// the fields already lie in order on the stack
		return nil
	}

	elem := n.Mode.Sub
	size := elem.Size()
	var row Value
	err := rt.construct(func() error {
		v, d, err := rt.newRowValue([][2]int64{{1, int64(len(n.Children))}}, elem)
		if err != nil {
			return err
		}
		for i := range n.Children {
			to, _ := d.Offset([]int64{int64(i + 1)})
			src := rt.stack[sp+i*size : sp+(i+1)*size]
			if err := rt.store(Ref{Mode: AddrHeap, Handle: d.Backing, Offset: to}, src, elem, true); err != nil {
				return err
			}
		}
		row = v
		return nil
	})
	if err != nil {
		return err
	}
	rt.sp = sp
	return rt.push(row)
}

func (rt *Runtime) uniting(n *tree.Node) error {
	unit := n.Children[0]
	sp := rt.sp
	if err := rt.Evaluate(unit); err != nil {
		return err
	}
	variant := n.Mode.Variant(unit.Mode)
	if variant < 0 {
		internalf("%s is not a variant of %s", unit.Mode, n.Mode)
	}
	vsize := unit.Mode.Size()
	if err := rt.reserve(n.Mode.Size() - vsize); err != nil {
		return err
	}
	copy(rt.stack[sp+1:sp+1+vsize], rt.stack[sp:sp+vsize])
	clear(rt.stack[sp+1+vsize : rt.sp])
	rt.stack[sp] = newTag(variant)
	return nil
}

// jump finds the frame whose serial clause owns the label and unwinds to it.
func (rt *Runtime) jump(n *tree.Node) error {
	for i := rt.current(); i >= 0; i = rt.records[i].DynamicLink {
		if rt.records[i].LabelTarget == n.Target {
			return &Jump{Target: n.Target, Label: n.Name, Frame: i}
		}
	}
	// a procedure called after the clause holding the label was left
	return faultf(FaultScope, "jump to label %s after its clause was left", n.Name)
}
