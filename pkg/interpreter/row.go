package interpreter

import (
	"genie/pkg/heap"
	"genie/pkg/tree"
)

// Tuple holds the bounds of one row dimension with its precomputed span and
// shift.
type Tuple struct {
	Lower, Upper int64
	Span, Shift  int64
}

func (t Tuple) Extent() int64 {
	if t.Upper < t.Lower {
		return 0
	}
	return t.Upper - t.Lower + 1
}

// Descriptor describes the shape of a row and where its elements live.
// Offsets are in cells.
type Descriptor struct {
	Dim         int
	Stride      int
	SliceOffset int
	FieldOffset int
	Backing     heap.Handle
	Tuples      []Tuple
}

const (
	descHeader = 5
	tupleCells = 4
)

// NewDescriptor lays out a fresh row with the given bounds. Spans grow from
// the first dimension: span[0] is 1 and span[k] is span[k-1] times the
// extent of dimension k-1.
func NewDescriptor(bounds [][2]int64, stride int) *Descriptor {
	d := &Descriptor{Dim: len(bounds), Stride: stride, Tuples: make([]Tuple, len(bounds))}
	span := int64(1)
	for k, b := range bounds {
		t := Tuple{Lower: b[0], Upper: b[1], Span: span}
		t.Shift = t.Lower * t.Span
		d.Tuples[k] = t
		span *= t.Extent()
	}
	return d
}

// Elements is the number of elements the row has.
func (d *Descriptor) Elements() int64 {
	n := int64(1)
	for _, t := range d.Tuples {
		n *= t.Extent()
	}
	return n
}

// Index returns the linear element index for an index vector without
// checking bounds.
func (d *Descriptor) Index(index []int64) int64 {
	var sum int64
	for k, t := range d.Tuples {
		sum += t.Span*index[k] - t.Shift
	}
	return sum
}

// Offset returns the cell offset of an element in the backing block, or
// false when an index is outside its bounds.
func (d *Descriptor) Offset(index []int64) (int, bool) {
	for k, t := range d.Tuples {
		if index[k] < t.Lower || index[k] > t.Upper {
			return 0, false
		}
	}
	return int(d.Index(index))*d.Stride + d.SliceOffset + d.FieldOffset, true
}

// Each calls fn for every index vector, last dimension fastest. The vector is
// reused between calls.
func (d *Descriptor) Each(fn func(index []int64) error) error {
	if d.Elements() == 0 {
		return nil
	}
	index := make([]int64, d.Dim)
	for k, t := range d.Tuples {
		index[k] = t.Lower
	}
	for {
		if err := fn(index); err != nil {
			return err
		}
		k := d.Dim - 1
		for ; k >= 0; k-- {
			if index[k] < d.Tuples[k].Upper {
				index[k]++
				break
			}
			index[k] = d.Tuples[k].Lower
		}
		if k < 0 {
			return nil
		}
	}
}

// SameBounds reports whether two rows have identical bounds.
func (d *Descriptor) SameBounds(o *Descriptor) bool {
	if d.Dim != o.Dim {
		return false
	}
	for k := range d.Tuples {
		if d.Tuples[k].Lower != o.Tuples[k].Lower || d.Tuples[k].Upper != o.Tuples[k].Upper {
			return false
		}
	}
	return true
}

func (d *Descriptor) encode(cells []Value) {
	cells[0] = newInt(int64(d.Dim))
	cells[1] = newInt(int64(d.Stride))
	cells[2] = newInt(int64(d.SliceOffset))
	cells[3] = newInt(int64(d.FieldOffset))
	cells[4] = newRef(Ref{Mode: AddrHeap, Handle: d.Backing})
	for k, t := range d.Tuples {
		c := cells[descHeader+tupleCells*k:]
		c[0], c[1], c[2], c[3] = newInt(t.Lower), newInt(t.Upper), newInt(t.Span), newInt(t.Shift)
	}
}

func decode(cells []Value) *Descriptor {
	d := &Descriptor{
		Dim:         int(cells[0].I64),
		Stride:      int(cells[1].I64),
		SliceOffset: int(cells[2].I64),
		FieldOffset: int(cells[3].I64),
		Backing:     cells[4].Ref.Handle,
	}
	d.Tuples = make([]Tuple, d.Dim)
	for k := range d.Tuples {
		c := cells[descHeader+tupleCells*k:]
		d.Tuples[k] = Tuple{Lower: c[0].I64, Upper: c[1].I64, Span: c[2].I64, Shift: c[3].I64}
	}
	return d
}

// descriptor reads the descriptor a row cell refers to.
func (rt *Runtime) descriptor(v Value) (*Descriptor, error) {
	if !v.Valid {
		return nil, faultf(FaultUninitialised, "row is uninitialised")
	}
	if v.Kind != KindRow || v.Ref.Mode != AddrHeap {
		internalf("row cell holds %s", v.Kind)
	}
	if !rt.heap.Valid(v.Ref.Handle) {
		internalf("row descriptor %d was released", v.Ref.Handle)
	}
	return decode(rt.heap.Cells(v.Ref.Handle)), nil
}

// storeDescriptor allocates a heap block for d and returns the row cell.
func (rt *Runtime) storeDescriptor(d *Descriptor) (Value, error) {
	h, err := rt.heapAlloc(descHeader + tupleCells*d.Dim)
	if err != nil {
		return Value{}, err
	}
	d.encode(rt.heap.Cells(h))
	return newRow(h), nil
}

// newRow allocates a descriptor and a zeroed backing block for a row with
// the given bounds.
func (rt *Runtime) newRowValue(bounds [][2]int64, elem *tree.Mode) (Value, *Descriptor, error) {
	d := NewDescriptor(bounds, elem.Size())
	backing, err := rt.heapAlloc(int(d.Elements()) * d.Stride)
	if err != nil {
		return Value{}, nil, err
	}
	d.Backing = backing
	v, err := rt.storeDescriptor(d)
	if err != nil {
		return Value{}, nil, err
	}
	return v, d, nil
}

// element returns a reference to the element of d at index.
func (rt *Runtime) element(d *Descriptor, index []int64, scope int) (Ref, error) {
	off, ok := d.Offset(index)
	if !ok {
		return Ref{}, indexFault(d, index)
	}
	return Ref{Mode: AddrHeap, Handle: d.Backing, Offset: off, Scope: scope}, nil
}

func indexFault(d *Descriptor, index []int64) *Fault {
	for k, t := range d.Tuples {
		if index[k] < t.Lower || index[k] > t.Upper {
			return faultf(FaultIndex, "index %d not in [%d:%d] of dimension %d", index[k], t.Lower, t.Upper, k+1)
		}
	}
	return faultf(FaultIndex, "index out of bounds")
}

// trim derives the descriptor of a slice. For each dimension either an index
// is given, which drops the dimension, or a trimmer [lo:hi], which keeps it
// with new lower bound 1.
func trim(d *Descriptor, index []int64, trimmers []*[2]int64) (*Descriptor, error) {
	out := &Descriptor{Stride: d.Stride, SliceOffset: d.SliceOffset, FieldOffset: d.FieldOffset, Backing: d.Backing}
	for k, t := range d.Tuples {
		if tr := trimmers[k]; tr != nil {
			lo, hi := tr[0], tr[1]
			if hi >= lo && (lo < t.Lower || hi > t.Upper) {
				return nil, faultf(FaultIndex, "trimmer [%d:%d] not in [%d:%d] of dimension %d", lo, hi, t.Lower, t.Upper, k+1)
			}
			nt := Tuple{Lower: 1, Upper: hi - lo + 1, Span: t.Span}
			if nt.Upper < 0 {
				nt.Upper = 0
			}
			nt.Shift = nt.Lower * nt.Span
			if hi >= lo {
				out.SliceOffset += int(t.Span*(lo-t.Lower)) * d.Stride
			}
			out.Tuples = append(out.Tuples, nt)
			continue
		}
		if index[k] < t.Lower || index[k] > t.Upper {
			return nil, faultf(FaultIndex, "index %d not in [%d:%d] of dimension %d", index[k], t.Lower, t.Upper, k+1)
		}
		out.SliceOffset += int(t.Span*index[k]-t.Shift) * d.Stride
	}
	out.Dim = len(out.Tuples)
	return out, nil
}
