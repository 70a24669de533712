package interpreter

import (
	"genie/pkg/tree"
)

// Allocate generates an object for declarer d, locally in the current frame
// or on the heap, and returns a name for it. Bound units of the declarer are
// evaluated first, outer dimension before inner and left to right.
func (rt *Runtime) Allocate(d *tree.Declarer, p tree.Placement) (Ref, error) {
	bounds, err := rt.evaluateBounds(d)
	if err != nil {
		return Ref{}, err
	}

	if p == tree.Local {
		ref, err := rt.bump(d.Mode)
		if err != nil {
			return Ref{}, err
		}
		if d.Mode.NeedsAllocation() {
			err = rt.construct(func() error { return rt.initialise(ref, d, bounds) })
		}
		return ref, err
	}

	var ref Ref
	err = rt.construct(func() error {
		h, err := rt.heapAlloc(d.Mode.Size())
		if err != nil {
			return err
		}
		ref = Ref{Mode: AddrHeap, Handle: h}
		return rt.initialise(ref, d, bounds)
	})
	return ref, err
}

// evaluateBounds evaluates every bound unit of d into scratch space on the
// evaluation stack and returns them in declarer order.
func (rt *Runtime) evaluateBounds(d *tree.Declarer) ([]int64, error) {
	units := d.BoundUnits()
	if len(units) == 0 {
		return nil, nil
	}
	sp := rt.sp
	for _, u := range units {
		if err := rt.Evaluate(u); err != nil {
			return nil, err
		}
	}
	bounds := make([]int64, len(units))
	for i, v := range rt.stack[sp:rt.sp] {
		if !v.Valid {
			return nil, faultf(FaultUninitialised, "bound is uninitialised")
		}
		bounds[i] = v.I64
	}
	rt.sp = sp
	return bounds, nil
}

// initialise builds the rows inside a freshly reserved object. Cells that
// hold plain values are left uninitialised.
func (rt *Runtime) initialise(target Ref, d *tree.Declarer, bounds []int64) error {
	m := d.Mode
	switch m.Kind {
	case tree.RowMode:
		pairs := make([][2]int64, m.Dim)
		if len(d.Bounds) > 0 {
			for k := range pairs {
				pairs[k] = [2]int64{bounds[2*k], bounds[2*k+1]}
			}
			bounds = bounds[2*m.Dim:]
		} else {
			// a row declared without bounds starts empty
			for k := range pairs {
				pairs[k] = [2]int64{1, 0}
			}
		}

		v, desc, err := rt.newRowValue(pairs, m.Sub)
		if err != nil {
			return err
		}
		if m.Sub.NeedsAllocation() {
			elem := d.ElemDeclarer()
			err := desc.Each(func(index []int64) error {
				off, _ := desc.Offset(index)
				return rt.initialise(Ref{Mode: AddrHeap, Handle: desc.Backing, Offset: off}, elem, bounds)
			})
			if err != nil {
				return err
			}
		}
		cells, err := rt.cells(target, 1)
		if err != nil {
			return err
		}
		cells[0] = v

	case tree.StructMode:
		next := 0
		for i, f := range m.Fields {
			fd := d.FieldDeclarer(i)
			n := fd.BoundCount()
			if f.Mode.NeedsAllocation() {
				if err := rt.initialise(target.Add(f.Offset), fd, bounds[next:next+n]); err != nil {
					return err
				}
			}
			next += n
		}
	}
	return nil
}
