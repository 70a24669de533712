package tree

// Bound is the pair of bound units of one row dimension.
type Bound struct {
	Lower, Upper *Node
}

// Declarer is an actual declarer: a mode plus the bound units a generator
// evaluates before allocating. Elem describes row elements and Fields the
// members of a structure, when those need bounds of their own.
type Declarer struct {
	Mode   *Mode
	Bounds []Bound
	Elem   *Declarer
	Fields []*Declarer
}

// Formal returns a declarer without bounds for m.
func Formal(m *Mode) *Declarer {
	return &Declarer{Mode: m}
}

// BoundCount is the number of bound values the declarer tree consumes: two
// per row dimension, then the element declarer, then each field in order.
func (d *Declarer) BoundCount() int {
	if d == nil {
		return 0
	}
	n := 2 * len(d.Bounds)
	n += d.Elem.BoundCount()
	for _, f := range d.Fields {
		n += f.BoundCount()
	}
	return n
}

// FieldDeclarer returns the declarer for field i, or a formal one.
func (d *Declarer) FieldDeclarer(i int) *Declarer {
	if i < len(d.Fields) && d.Fields[i] != nil {
		return d.Fields[i]
	}
	return Formal(d.Mode.Fields[i].Mode)
}

// ElemDeclarer returns the declarer for row elements, or a formal one.
func (d *Declarer) ElemDeclarer() *Declarer {
	if d.Elem != nil {
		return d.Elem
	}
	return Formal(d.Mode.Sub)
}

// walkBounds visits bound units in evaluation order.
func (d *Declarer) walkBounds(fn func(*Node)) {
	if d == nil {
		return
	}
	for _, b := range d.Bounds {
		fn(b.Lower)
		fn(b.Upper)
	}
	d.Elem.walkBounds(fn)
	for _, f := range d.Fields {
		f.walkBounds(fn)
	}
}

// BoundUnits returns the bound units in evaluation order.
func (d *Declarer) BoundUnits() []*Node {
	var units []*Node
	d.walkBounds(func(n *Node) { units = append(units, n) })
	return units
}
