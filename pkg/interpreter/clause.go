package interpreter

import (
	"errors"

	"genie/pkg/tree"
)

// serial evaluates the units of a serial clause in order, voiding all but
// the last. A labelled clause registers itself as its frame's label target
// and absorbs jumps aimed at it by restarting at the labelled unit.
func (rt *Runtime) serial(n *tree.Node) error {
	if n.Range != nil {
		if _, err := rt.OpenFrame(n); err != nil {
			return err
		}
		defer rt.CloseFrame()
	}

	frame := rt.current()
	if n.Labels != nil {
		prev := rt.records[frame].LabelTarget
		rt.records[frame].LabelTarget = n
		defer func() { rt.records[frame].LabelTarget = prev }()
	}

	sp, anchors := rt.sp, len(rt.anchors)
	start := 0
	for {
		err := rt.units(n, start)
		var jump *Jump
		if errors.As(err, &jump) && jump.Target == n && jump.Frame == frame {
			rt.unwind(frame, sp, anchors)
			start = n.Labels[jump.Label]
			continue
		}
		return err
	}
}

func (rt *Runtime) units(n *tree.Node, start int) error {
	last := len(n.Children) - 1
	for i := start; i <= last; i++ {
		if i > start {
			if err := rt.ctx.Err(); err != nil {
				return err
			}
			rt.preempt()
		}
		sp := rt.sp
		if err := rt.Evaluate(n.Children[i]); err != nil {
			return err
		}
		if i < last {
			rt.sp = sp
		}
	}
	return nil
}

// enquire evaluates an enquiry clause and pops its single-cell result.
func (rt *Runtime) enquire(n *tree.Node) (Value, error) {
	if err := rt.Evaluate(n); err != nil {
		return Value{}, err
	}
	v := rt.pop()
	if !v.Valid {
		return Value{}, faultf(FaultUninitialised, "enquiry yields an uninitialised value")
	}
	return v, nil
}

func (rt *Runtime) conditional(n *tree.Node) error {
	if _, err := rt.OpenFrame(n); err != nil {
		return err
	}
	defer rt.CloseFrame()

	sp := rt.sp
	c, err := rt.enquire(n.Children[0])
	if err != nil {
		return err
	}
	branch := n.Out
	if c.Bool {
		branch = n.Children[1]
	}
	return rt.choose(n, branch, sp)
}

// choose evaluates the selected branch of a choice clause, if any, and
// voids it when the clause as a whole yields nothing.
func (rt *Runtime) choose(n, branch *tree.Node, sp int) error {
	if branch != nil {
		if err := rt.Evaluate(branch); err != nil {
			return err
		}
	}
	if n.Mode.IsVoid() {
		rt.sp = sp
	}
	return nil
}

func (rt *Runtime) caseClause(n *tree.Node) error {
	if _, err := rt.OpenFrame(n); err != nil {
		return err
	}
	defer rt.CloseFrame()

	sp := rt.sp
	k, err := rt.enquire(n.Children[0])
	if err != nil {
		return err
	}
	branch := n.Out
	if units := n.Children[1:]; k.I64 >= 1 && k.I64 <= int64(len(units)) {
		branch = units[k.I64-1]
	}
	return rt.choose(n, branch, sp)
}

func (rt *Runtime) conformity(n *tree.Node) error {
	if _, err := rt.OpenFrame(n); err != nil {
		return err
	}
	defer rt.CloseFrame()

	enquiry := n.Children[0]
	sp := rt.sp
	if err := rt.Evaluate(enquiry); err != nil {
		return err
	}
	united := enquiry.Mode
	value := rt.popCells(united.Size())
	tag := value[0]
	if !tag.Valid {
		return faultf(FaultUninitialised, "united value is uninitialised")
	}
	actual := united.Variants[tag.I64]

	for _, spec := range n.Children[1:] {
		if !tree.Equal(spec.Mode, actual) {
			continue
		}
		if err := rt.specifier(spec, value[1:1+actual.Size()]); err != nil {
			return err
		}
		if n.Mode.IsVoid() {
			rt.sp = sp
		}
		return nil
	}
	return rt.choose(n, n.Out, sp)
}

func (rt *Runtime) specifier(spec *tree.Node, value []Value) error {
	if _, err := rt.OpenFrame(spec); err != nil {
		return err
	}
	defer rt.CloseFrame()
	if spec.Symbol != nil {
		copy(rt.slot(spec.Symbol), value)
	}
	return rt.Evaluate(spec.Children[0])
}

func (rt *Runtime) loop(n *tree.Node) error {
	from, by := int64(1), int64(1)
	var to *int64
	parts := []struct {
		index int
		set   func(int64)
	}{
		{tree.LoopFrom, func(v int64) { from = v }},
		{tree.LoopBy, func(v int64) { by = v }},
		{tree.LoopTo, func(v int64) { to = &v }},
	}
	for _, part := range parts {
		if u := n.Children[part.index]; u != nil {
			v, err := rt.enquire(u)
			if err != nil {
				return err
			}
			part.set(v.I64)
		}
	}

	if _, err := rt.OpenFrame(n); err != nil {
		return err
	}
	defer rt.CloseFrame()

	counter := rt.slot(n.Symbol)
	while, body := n.Children[tree.LoopWhile], n.Children[tree.LoopBody]
	sp := rt.sp
	for i := from; to == nil || (by >= 0 && i <= *to) || (by < 0 && i >= *to); i += by {
		if err := rt.ctx.Err(); err != nil {
			return err
		}
		counter[0] = newInt(i)
		if while != nil {
			c, err := rt.enquire(while)
			if err != nil {
				return err
			}
			if !c.Bool {
				break
			}
		}
		if err := rt.Evaluate(body); err != nil {
			return err
		}
		rt.sp = sp
		rt.preempt()
	}
	return nil
}
