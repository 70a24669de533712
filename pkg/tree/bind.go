package tree

import (
	"errors"
	"fmt"

	"genie/pkg/stack"
)

// ErrBound is returned when Bind is given a tree it has already bound.
// Binding rewrites the tree in place, so a program is bound once.
var ErrBound = errors.New("program is already bound")

// Bind resolves an unbound program: it gives every range a lexical level and
// frame layout, binds identifiers and jumps, inserts dereferencing coercions
// where a value is wanted, and derives the mode of each node. The root must
// be a serial clause; it becomes the outermost range at level 1.
func Bind(root *Node) error {
	if root == nil || root.Attr != Serial {
		return errors.New("program must be a serial clause")
	}
	if root.Range != nil && root.Range.Owner == root {
		return ErrBound
	}
	if root.Range == nil {
		root.Range = &Range{}
	}

	b := &binder{labels: stack.NewStack[*Node]()}
	b.bind(root)

	return errors.Join(b.errs...)
}

type binder struct {
	cur    *Range
	labels *stack.Stack[*Node]
	errs   []error
}

func (b *binder) errorf(n *Node, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if n != nil && n.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", n.Line, msg)
	}
	b.errs = append(b.errs, errors.New(msg))
}

// enter replaces a placeholder range with a fresh one nested in the current
// range and makes it current; the returned function restores the previous one.
func (b *binder) enter(n *Node) func() {
	rng := NewRange(b.cur)
	rng.Owner = n
	n.Range = rng
	prev := b.cur
	b.cur = rng
	return func() { b.cur = prev }
}

func (b *binder) bind(n *Node) {
	if n == nil {
		return
	}

	switch n.Attr {
	case Denotation, Skip, Hole:
		if n.Mode == nil {
			n.Mode = Void
		}

	case Nil:
		if n.Mode == nil {
			n.Mode = RefTo(Void)
		}

	case Identifier:
		b.bindIdentifier(n)

	case Dereference:
		b.bind(n.Children[0])
		if m := n.Children[0].Mode; m != nil && m.IsRef() {
			n.Mode = m.Sub
		} else {
			b.errorf(n, "cannot dereference a value of mode %s", m)
			n.Mode = Void
		}

	case Formula:
		b.bindFormula(n)

	case Monadic:
		b.bind(n.Children[0])
		n.Children[0] = b.coerce(n.Children[0], nil)
		n.Mode = MonadicResult(n.Op, n.Children[0].Mode)
		if n.Mode == nil {
			b.errorf(n, "operator %s is not defined for %s", n.Op, n.Children[0].Mode)
			n.Mode = Void
		}

	case Call:
		b.bindCall(n)

	case Slice:
		b.bindSlice(n)

	case Trimmer:
		for i := range n.Children {
			b.bind(n.Children[i])
			n.Children[i] = b.coerce(n.Children[i], Int)
		}
		n.Mode = Void

	case Selection:
		b.bindSelection(n)

	case Assignation:
		b.bind(n.Children[0])
		b.bind(n.Children[1])
		dst := n.Children[0].Mode
		if !dst.IsRef() {
			b.errorf(n, "destination of mode %s is not a name", dst)
			n.Mode = Void
			return
		}
		n.Children[1] = b.coerce(n.Children[1], dst.Sub)
		b.expect(n.Children[1], dst.Sub)
		n.Mode = dst

	case IdentityRelation:
		b.bindIdentityRelation(n)

	case Serial:
		b.bindSerial(n)

	case Conditional:
		defer b.enter(n)()
		b.bindEnquiry(n.Children[0], Bool)
		b.bind(n.Children[1])
		b.bind(n.Out)
		n.Mode = b.balance(n.Out != nil, n.Children[1], n.Out)

	case Case:
		defer b.enter(n)()
		b.bindEnquiry(n.Children[0], Int)
		for _, u := range n.Children[1:] {
			b.bind(u)
		}
		b.bind(n.Out)
		n.Mode = b.balance(n.Out != nil, append(n.Children[1:len(n.Children):len(n.Children)], n.Out)...)

	case Conformity:
		b.bindConformity(n)

	case Specifier:
		defer b.enter(n)()
		if n.Symbol != nil {
			b.cur.Adopt(n.Symbol)
		}
		b.bind(n.Children[0])

	case Loop:
		b.bindLoop(n)

	case Generator:
		b.bindDeclarer(n.Declarer)
		n.Mode = RefTo(n.Declarer.Mode)

	case VariableDeclaration:
		b.declare(n)
		b.bindDeclarer(n.Declarer)
		if len(n.Children) > 0 {
			b.bind(n.Children[0])
			n.Children[0] = b.coerce(n.Children[0], n.Declarer.Mode)
			b.expect(n.Children[0], n.Declarer.Mode)
		}
		n.Mode = Void

	case IdentityDeclaration:
		b.declare(n)
		b.bind(n.Children[0])
		n.Children[0] = b.coerce(n.Children[0], n.Symbol.Mode)
		b.expect(n.Children[0], n.Symbol.Mode)
		n.Mode = Void

	case RoutineText:
		b.bindRoutine(n)

	case Collateral:
		b.bindCollateral(n)

	case Uniting:
		b.bind(n.Children[0])
		n.Children[0] = b.coerce(n.Children[0], nil)
		if n.Mode == nil || n.Mode.Kind != UnionMode {
			b.errorf(n, "uniting needs a united mode")
			n.Mode = Void
		} else if n.Mode.Variant(n.Children[0].Mode) < 0 {
			b.errorf(n, "%s is not a variant of %s", n.Children[0].Mode, n.Mode)
		}

	case Jump:
		target, ok := b.labels.Find(func(s *Node) bool {
			_, ok := s.Labels[n.Name]
			return ok
		})
		if !ok {
			b.errorf(n, "label %s is not declared", n.Name)
			return
		}
		n.Target = target
		n.Mode = Void

	case Parallel:
		for _, u := range n.Children {
			b.bind(u)
		}
		n.Mode = Void

	default:
		b.errorf(n, "cannot bind %s", n.Attr)
	}
}

func (b *binder) bindIdentifier(n *Node) {
	if b.cur != nil {
		if sym, ok := b.cur.Lookup(n.Name); ok {
			n.Symbol = sym
			n.Mode = sym.Mode
			return
		}
	}
	if sym, _, ok := LookupStandard(n.Name); ok {
		n.Symbol = sym
		n.Mode = sym.Mode
		return
	}
	b.errorf(n, "identifier %s is not declared", n.Name)
	n.Mode = Void
}

func (b *binder) bindFormula(n *Node) {
	b.bind(n.Children[0])
	b.bind(n.Children[1])
	n.Children[0] = b.coerce(n.Children[0], nil)
	n.Children[1] = b.coerce(n.Children[1], nil)
	n.Mode = DyadicResult(n.Op, n.Children[0].Mode, n.Children[1].Mode)
	if n.Mode == nil {
		b.errorf(n, "operator %s is not defined for %s and %s", n.Op, n.Children[0].Mode, n.Children[1].Mode)
		n.Mode = Void
	}
}

func (b *binder) bindCall(n *Node) {
	primary := n.Children[0]
	b.bind(primary)
	n.Children[0] = b.coerceProc(primary)
	primary = n.Children[0]
	args := n.Children[1:]
	for _, a := range args {
		b.bind(a)
	}

	pm := primary.Mode
	if pm == nil || pm.Kind != ProcMode {
		b.errorf(n, "cannot call a value of mode %s", pm)
		n.Mode = Void
		return
	}

	if primary.Symbol != nil && primary.Symbol.Kind == Standard {
		if _, proc, _ := LookupStandard(primary.Symbol.Name); proc.Polymorphic {
			for i := range args {
				n.Children[i+1] = b.coerce(args[i], nil)
			}
			n.Mode = pm.Sub
			return
		}
	}

	if len(args) != len(pm.Params) {
		b.errorf(n, "%s expects %d arguments, got %d", pm, len(pm.Params), len(args))
		n.Mode = Void
		return
	}
	var unbound []*Mode
	for i, a := range args {
		if a.Attr == Hole {
			unbound = append(unbound, pm.Params[i])
			continue
		}
		n.Children[i+1] = b.coerce(a, pm.Params[i])
		b.expect(n.Children[i+1], pm.Params[i])
	}
	if len(unbound) > 0 {
		n.Mode = ProcOf(pm.Sub, unbound...)
		return
	}
	n.Mode = pm.Sub
}

func (b *binder) bindSlice(n *Node) {
	b.bind(n.Children[0])
	primary := b.coerceName(n.Children[0], RowMode)
	n.Children[0] = primary

	row := primary.Mode
	isName := row.IsRef()
	if isName {
		row = row.Sub
	}
	if !row.IsRow() {
		b.errorf(n, "cannot slice a value of mode %s", primary.Mode)
		n.Mode = Void
		return
	}

	indexers := n.Children[1:]
	if len(indexers) != row.Dim {
		b.errorf(n, "%s has %d dimensions, got %d indexers", row, row.Dim, len(indexers))
	}
	trimmed := 0
	for i, ix := range indexers {
		b.bind(ix)
		if ix.Attr == Trimmer {
			trimmed++
			continue
		}
		n.Children[i+1] = b.coerce(ix, Int)
		b.expect(n.Children[i+1], Int)
	}

	result := row.Sub
	if trimmed > 0 {
		result = RowOf(row.Sub, trimmed)
	}
	if isName {
		result = RefTo(result)
	}
	n.Mode = result
}

func (b *binder) bindSelection(n *Node) {
	b.bind(n.Children[0])
	sec := n.Children[0]
	// dereference REF REF STRUCT and friends down to a single name
	for sec.Mode.IsRef() && sec.Mode.Sub.IsRef() {
		sec = b.deref(sec)
	}
	n.Children[0] = sec

	m := sec.Mode
	isName := m.IsRef()
	if isName {
		m = m.Sub
	}
	var dim int
	if m.IsRow() {
		dim = m.Dim
		m = m.Sub
	}
	field, _, ok := m.Field(n.Name)
	if !ok {
		b.errorf(n, "%s has no field %s", sec.Mode, n.Name)
		n.Mode = Void
		return
	}
	result := field.Mode
	if dim > 0 {
		result = RowOf(result, dim)
	}
	if isName {
		result = RefTo(result)
	}
	n.Mode = result
}

func (b *binder) bindIdentityRelation(n *Node) {
	b.bind(n.Children[0])
	b.bind(n.Children[1])
	left, right := n.Children[0], n.Children[1]
	if left.Attr == Nil {
		left.Mode = right.Mode
	}
	if right.Attr == Nil {
		right.Mode = left.Mode
	}
	for depth(left.Mode) > depth(right.Mode) && depth(right.Mode) > 0 {
		left = b.deref(left)
	}
	for depth(right.Mode) > depth(left.Mode) && depth(left.Mode) > 0 {
		right = b.deref(right)
	}
	n.Children[0], n.Children[1] = left, right
	if !left.Mode.IsRef() || !right.Mode.IsRef() {
		b.errorf(n, "identity relation needs names, got %s and %s", left.Mode, right.Mode)
	}
	n.Mode = Bool
}

func depth(m *Mode) int {
	d := 0
	for ; m != nil && m.IsRef(); m = m.Sub {
		d++
	}
	return d
}

func (b *binder) bindSerial(n *Node) {
	for i, u := range n.Children {
		if u.Label == "" {
			continue
		}
		if n.Labels == nil {
			n.Labels = map[string]int{}
		}
		if _, dup := n.Labels[u.Label]; dup {
			b.errorf(u, "label %s declared twice", u.Label)
		}
		n.Labels[u.Label] = i
	}

	// a labelled clause owns a frame so that jumps can find it
	if n.Labels != nil && n.Range == nil {
		n.Range = &Range{}
	}
	if n.Range != nil {
		defer b.enter(n)()
	}

	// declarations are visible throughout the range
	for _, u := range n.Children {
		b.declare(u)
	}

	if n.Labels != nil {
		b.labels.Push(n)
		defer b.labels.Pop()
	}

	for _, u := range n.Children {
		b.bind(u)
	}

	n.Mode = Void
	if len(n.Children) > 0 {
		if last := n.Children[len(n.Children)-1]; last.Mode != nil {
			n.Mode = last.Mode
		}
	}
}

// declare places a declaration's symbol in the current range once.
func (b *binder) declare(n *Node) {
	if n.Attr != VariableDeclaration && n.Attr != IdentityDeclaration {
		return
	}
	if n.Symbol.Range != nil {
		return
	}
	if b.cur == nil {
		b.errorf(n, "declaration of %s outside a range", n.Symbol.Name)
		return
	}
	if _, dup := b.cur.LookupLocal(n.Symbol.Name); dup {
		b.errorf(n, "%s declared twice in the same range", n.Symbol.Name)
	}
	b.cur.Adopt(n.Symbol)
	if n.Attr == IdentityDeclaration && len(n.Children) > 0 && n.Children[0].Attr == RoutineText {
		b.cur.Routines = append(b.cur.Routines, n)
	}
}

func (b *binder) bindEnquiry(n *Node, want *Mode) {
	b.bind(n)
	if len(n.Children) == 0 {
		b.errorf(n, "empty enquiry clause")
		return
	}
	last := len(n.Children) - 1
	n.Children[last] = b.coerce(n.Children[last], want)
	b.expect(n.Children[last], want)
	n.Mode = n.Children[last].Mode
}

func (b *binder) bindConformity(n *Node) {
	defer b.enter(n)()
	b.bindEnquiry(n.Children[0], nil)
	united := n.Children[0].Mode
	if united.Kind != UnionMode {
		b.errorf(n, "conformity clause needs a united enquiry, got %s", united)
	}
	for _, spec := range n.Children[1:] {
		if spec.Attr != Specifier {
			b.errorf(spec, "conformity clause expects specifiers")
			continue
		}
		if united.Kind == UnionMode && united.Variant(spec.Mode) < 0 {
			b.errorf(spec, "%s is not a variant of %s", spec.Mode, united)
		}
		b.bind(spec)
	}
	b.bind(n.Out)

	// specifier nodes carry the variant mode; balance over their bodies
	bodies := make([]*Node, 0, len(n.Children))
	for _, spec := range n.Children[1:] {
		bodies = append(bodies, spec.Children[0])
	}
	bodies = append(bodies, n.Out)
	n.Mode = b.balance(n.Out != nil, bodies...)
}

func (b *binder) bindLoop(n *Node) {
	for _, i := range []int{LoopFrom, LoopBy, LoopTo} {
		if n.Children[i] != nil {
			b.bind(n.Children[i])
			n.Children[i] = b.coerce(n.Children[i], Int)
			b.expect(n.Children[i], Int)
		}
	}

	defer b.enter(n)()
	b.cur.Adopt(n.Symbol)
	if w := n.Children[LoopWhile]; w != nil {
		b.bind(w)
		n.Children[LoopWhile] = b.coerce(w, Bool)
		b.expect(n.Children[LoopWhile], Bool)
	}
	b.bind(n.Children[LoopBody])
	n.Mode = Void
}

func (b *binder) bindRoutine(n *Node) {
	defer b.enter(n)()
	for _, p := range n.Params {
		b.cur.Adopt(p)
	}
	b.bind(n.Children[0])
	result := n.Mode.Sub
	if !result.IsVoid() {
		n.Children[0] = b.coerce(n.Children[0], result)
		b.expect(n.Children[0], result)
	}
}

func (b *binder) bindCollateral(n *Node) {
	for i := range n.Children {
		b.bind(n.Children[i])
	}
	if n.Mode == nil {
		if len(n.Children) == 0 {
			b.errorf(n, "empty display needs a mode")
			n.Mode = Void
			return
		}
		n.Children[0] = b.coerce(n.Children[0], nil)
		n.Mode = RowOf(n.Children[0].Mode, 1)
	}

	switch n.Mode.Kind {
	case RowMode:
		if n.Mode.Dim != 1 {
			b.errorf(n, "row displays are one-dimensional, got %s", n.Mode)
		}
		for i := range n.Children {
			n.Children[i] = b.coerce(n.Children[i], n.Mode.Sub)
			b.expect(n.Children[i], n.Mode.Sub)
		}
	case StructMode:
		if len(n.Children) != len(n.Mode.Fields) {
			b.errorf(n, "%s has %d fields, display has %d units", n.Mode, len(n.Mode.Fields), len(n.Children))
			return
		}
		for i := range n.Children {
			want := n.Mode.Fields[i].Mode
			n.Children[i] = b.coerce(n.Children[i], want)
			b.expect(n.Children[i], want)
		}
	default:
		b.errorf(n, "display of mode %s", n.Mode)
	}
}

func (b *binder) bindDeclarer(d *Declarer) {
	if d == nil {
		return
	}
	for i := range d.Bounds {
		b.bind(d.Bounds[i].Lower)
		b.bind(d.Bounds[i].Upper)
		d.Bounds[i].Lower = b.coerce(d.Bounds[i].Lower, Int)
		d.Bounds[i].Upper = b.coerce(d.Bounds[i].Upper, Int)
		b.expect(d.Bounds[i].Lower, Int)
		b.expect(d.Bounds[i].Upper, Int)
	}
	if len(d.Bounds) > 0 && d.Mode.IsRow() && len(d.Bounds) != d.Mode.Dim {
		b.errorf(nil, "%s needs %d bound pairs, got %d", d.Mode, d.Mode.Dim, len(d.Bounds))
	}
	b.bindDeclarer(d.Elem)
	for _, f := range d.Fields {
		b.bindDeclarer(f)
	}
}

// balance derives the mode of a choice clause: the common mode of its
// branches when all are present and agree, VOID otherwise.
func (b *binder) balance(complete bool, branches ...*Node) *Mode {
	if !complete {
		return Void
	}
	var m *Mode
	for _, br := range branches {
		if br == nil {
			continue
		}
		if m == nil {
			m = br.Mode
			continue
		}
		if !Equal(m, br.Mode) {
			return Void
		}
	}
	if m == nil {
		return Void
	}
	return m
}

func (b *binder) deref(n *Node) *Node {
	return &Node{Attr: Dereference, Children: []*Node{n}, Mode: n.Mode.Sub, Line: n.Line}
}

// coerce dereferences n until its mode is want; a nil want dereferences
// all the way to a plain value.
func (b *binder) coerce(n *Node, want *Mode) *Node {
	if n == nil || n.Attr == Hole || n.Attr == Skip || n.Attr == Nil {
		if n != nil && (n.Attr == Skip || n.Attr == Nil) && want != nil {
			n.Mode = want
		}
		return n
	}
	for n.Mode.IsRef() && (want == nil || !Equal(n.Mode, want)) {
		n = b.deref(n)
	}
	return n
}

// coerceName dereferences n while it is a name of a name whose innermost
// referent has the given kind.
func (b *binder) coerceName(n *Node, kind ModeKind) *Node {
	for n.Mode.IsRef() && n.Mode.Sub.IsRef() {
		n = b.deref(n)
	}
	if n.Mode.IsRef() && n.Mode.Sub.Kind != kind {
		n = b.deref(n)
	}
	return n
}

func (b *binder) coerceProc(n *Node) *Node {
	for n.Mode.IsRef() {
		n = b.deref(n)
	}
	return n
}

func (b *binder) expect(n *Node, want *Mode) {
	if n == nil || want == nil || n.Attr == Hole {
		return
	}
	if !Equal(n.Mode, want) {
		b.errorf(n, "expected %s, got %s", want, n.Mode)
	}
}
