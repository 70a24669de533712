package interpreter

import (
	"genie/pkg/tree"
)

// assign stores src, a value of mode m, into the object named by dst.
// Plain values are copied cell by cell. Rows in a fixed, initialised
// destination are copied element-wise and must agree in bounds; flexible or
// uninitialised destinations receive a fresh copy.
func (rt *Runtime) assign(dst Ref, src []Value, m *tree.Mode, fresh bool) error {
	if !m.Stowed() {
		cells, err := rt.cells(dst, len(src))
		if err != nil {
			return err
		}
		copy(cells, src)
		return nil
	}
	return rt.construct(func() error { return rt.store(dst, src, m, fresh) })
}

func (rt *Runtime) store(dst Ref, src []Value, m *tree.Mode, fresh bool) error {
	switch m.Kind {
	case tree.StructMode:
		for _, f := range m.Fields {
			part := src[f.Offset : f.Offset+f.Mode.Size()]
			if err := rt.store(dst.Add(f.Offset), part, f.Mode, fresh); err != nil {
				return err
			}
		}
		return nil

	case tree.UnionMode:
		cells, err := rt.cells(dst, m.Size())
		if err != nil {
			return err
		}
		tag := src[0]
		if !tag.Valid {
			copy(cells, src)
			return nil
		}
		// the variant may differ from what the destination held
		clear(cells)
		cells[0] = tag
		variant := m.Variants[tag.I64]
		return rt.store(dst.Add(1), src[1:1+variant.Size()], variant, true)

	case tree.RowMode:
		v := src[0]
		if !v.Valid {
			cells, err := rt.cells(dst, 1)
			if err != nil {
				return err
			}
			cells[0] = v
			return nil
		}
		cells, err := rt.cells(dst, 1)
		if err != nil {
			return err
		}
		old := cells[0]
		if fresh || m.Flex || !old.Valid {
			row, err := rt.copyRow(v, m)
			if err != nil {
				return err
			}
			cells, err = rt.cells(dst, 1)
			if err != nil {
				return err
			}
			cells[0] = row
			return nil
		}
		return rt.copyInto(old, v, m)

	default:
		cells, err := rt.cells(dst, len(src))
		if err != nil {
			return err
		}
		copy(cells, src)
		return nil
	}
}

// copyInto copies the elements of row src into the existing row dst.
func (rt *Runtime) copyInto(dst, src Value, m *tree.Mode) error {
	dd, err := rt.descriptor(dst)
	if err != nil {
		return err
	}
	sd, err := rt.descriptor(src)
	if err != nil {
		return err
	}
	if !dd.SameBounds(sd) {
		return faultf(FaultBounds, "rows differ in bounds")
	}

	// read everything first so that overlapping rows copy correctly
	var elems [][]Value
	err = sd.Each(func(index []int64) error {
		off, _ := sd.Offset(index)
		cells, err := rt.load(Ref{Mode: AddrHeap, Handle: sd.Backing, Offset: off}, m.Sub)
		elems = append(elems, cells)
		return err
	})
	if err != nil {
		return err
	}

	i := 0
	return dd.Each(func(index []int64) error {
		off, _ := dd.Offset(index)
		err := rt.store(Ref{Mode: AddrHeap, Handle: dd.Backing, Offset: off}, elems[i], m.Sub, false)
		i++
		return err
	})
}

// copyRow makes a fresh row with the bounds and contents of v.
func (rt *Runtime) copyRow(v Value, m *tree.Mode) (Value, error) {
	sd, err := rt.descriptor(v)
	if err != nil {
		return Value{}, err
	}
	pairs := make([][2]int64, sd.Dim)
	for k, t := range sd.Tuples {
		pairs[k] = [2]int64{t.Lower, t.Upper}
	}
	row, dd, err := rt.newRowValue(pairs, m.Sub)
	if err != nil {
		return Value{}, err
	}

	err = sd.Each(func(index []int64) error {
		from, _ := sd.Offset(index)
		to, _ := dd.Offset(index)
		elem, err := rt.load(Ref{Mode: AddrHeap, Handle: sd.Backing, Offset: from}, m.Sub)
		if err != nil {
			return err
		}
		return rt.store(Ref{Mode: AddrHeap, Handle: dd.Backing, Offset: to}, elem, m.Sub, true)
	})
	return row, err
}
