package interpreter

import (
	"fmt"

	"genie/pkg/tree"
)

// ActivationRecord is one open frame. Its cells are frame[Base:Base+Size];
// only the topmost frame grows, when LOC generators bump-allocate in it.
type ActivationRecord struct {
	StaticLink   int // record of the lexically enclosing range, -1 for none
	DynamicLink  int // record that was on top when this one opened
	DynamicScope int
	Level        int
	Number       int
	Node         *tree.Node
	LabelTarget  *tree.Node

	Base      int
	Size      int
	StackBase int
	Anonymous []local
}

// local is an anonymous object generated by LOC inside a frame.
type local struct {
	offset int
	mode   *tree.Mode
}

// current returns the index of the topmost record, -1 if none is open.
func (rt *Runtime) current() int {
	return len(rt.records) - 1
}

// Depth is the number of open frames.
func (rt *Runtime) Depth() int { return len(rt.records) }

// FramePointer is the first free frame cell.
func (rt *Runtime) FramePointer() int { return rt.fp }

// StackPointer is the first free evaluation stack cell.
func (rt *Runtime) StackPointer() int { return rt.sp }

// Record returns a copy of the i-th open frame.
func (rt *Runtime) Record(i int) ActivationRecord { return rt.records[i] }

// OpenFrame opens the frame of a ranged node. Its static link is the nearest
// frame on the static chain of the current frame that belongs to the
// enclosing lexical level.
func (rt *Runtime) OpenFrame(n *tree.Node) (int, error) {
	if n.Range == nil {
		internalf("%s has no range", n)
	}
	link := rt.current()
	for link >= 0 && rt.records[link].Level >= n.Range.Level {
		link = rt.records[link].StaticLink
	}
	if link >= 0 && rt.records[link].Level != n.Range.Level-1 {
		internalf("no frame at level %d for %s", n.Range.Level-1, n)
	}
	if link < 0 && n.Range.Level > 1 {
		internalf("no enclosing frame for %s at level %d", n, n.Range.Level)
	}
	return rt.openFrame(n, link)
}

func (rt *Runtime) openFrame(n *tree.Node, staticLink int) (int, error) {
	size := n.Range.Size
	if rt.fp+size > len(rt.frame) || len(rt.records) >= len(rt.frame) {
		return -1, faultf(FaultStackOverflow, "frame stack exhausted at %d cells", len(rt.frame))
	}

	index := len(rt.records)
	rt.number++
	rt.records = append(rt.records, ActivationRecord{
		StaticLink:   staticLink,
		DynamicLink:  index - 1,
		DynamicScope: index + 1,
		Level:        n.Range.Level,
		Number:       rt.number,
		Node:         n,
		Base:         rt.fp,
		Size:         size,
		StackBase:    rt.sp,
	})
	clear(rt.frame[rt.fp : rt.fp+size])
	rt.fp += size

	// routine identities are usable throughout their range
	for _, decl := range n.Range.Routines {
		sym := decl.Symbol
		routine := decl.Children[0]
		rt.frame[rt.records[index].Base+sym.Offset] = newProc(rt.procedure(routine, sym.Scope))
	}
	return index, nil
}

// CloseFrame closes the topmost frame and releases its cells.
func (rt *Runtime) CloseFrame() {
	if len(rt.records) == 0 {
		internalf("close without open frame")
	}
	rec := rt.records[len(rt.records)-1]
	rt.fp = rec.Base
	rt.records = rt.records[:len(rt.records)-1]
}

// frameAt follows static links from the current frame to lexical level.
func (rt *Runtime) frameAt(level int) int {
	if level == 1 && len(rt.records) > 0 {
		// the program frame is always the bottom record
		return 0
	}
	i := rt.current()
	for i >= 0 && rt.records[i].Level > level {
		i = rt.records[i].StaticLink
	}
	if i < 0 || rt.records[i].Level != level {
		internalf("no frame at level %d", level)
	}
	return i
}

// Resolve returns the address of a declared name's frame cells.
func (rt *Runtime) Resolve(sym *tree.Symbol) (Ref, error) {
	if sym.Kind == tree.Standard {
		return Ref{}, fmt.Errorf("%s belongs to the standard environ", sym.Name)
	}
	i := rt.frameAt(sym.Level)
	return Ref{Mode: AddrFrame, Offset: rt.records[i].Base + sym.Offset, Scope: rt.records[i].DynamicScope}, nil
}

// slot returns the cells of a declared name.
func (rt *Runtime) slot(sym *tree.Symbol) []Value {
	i := rt.frameAt(sym.Level)
	base := rt.records[i].Base + sym.Offset
	size := sym.SlotMode().Size()
	return rt.frame[base : base+size : base+size]
}

// bump allocates an anonymous object of mode m in the topmost frame.
func (rt *Runtime) bump(m *tree.Mode) (Ref, error) {
	size := m.Size()
	if rt.fp+size > len(rt.frame) {
		return Ref{}, faultf(FaultStackOverflow, "frame stack exhausted at %d cells", len(rt.frame))
	}
	top := &rt.records[rt.current()]
	offset := rt.fp
	clear(rt.frame[offset : offset+size])
	rt.fp += size
	top.Size += size
	top.Anonymous = append(top.Anonymous, local{offset: offset, mode: m})
	return Ref{Mode: AddrFrame, Offset: offset, Scope: top.DynamicScope}, nil
}

// dynamicScope converts a lexical level bound by the scope checker into the
// dynamic scope of the frame at that level on the chain starting at env.
func (rt *Runtime) dynamicScope(level, env int) int {
	if level <= tree.PrimalScope {
		return 0
	}
	for i := env; i >= 0; i = rt.records[i].StaticLink {
		if rt.records[i].Level <= level {
			return rt.records[i].DynamicScope
		}
	}
	return 0
}

// procedure makes a routine value whose environ is the current frame. A
// known static scope narrows the dynamic scope to the frame of the youngest
// name the routine uses; otherwise it is the environ itself.
func (rt *Runtime) procedure(routine *tree.Node, staticScope int) *Procedure {
	env := rt.frameAt(routine.Range.Level - 1)
	scope := rt.records[env].DynamicScope
	if staticScope != tree.ScopeUnknown {
		scope = rt.dynamicScope(staticScope, env)
	}
	home := Environ{Index: -1}
	if scope > 0 {
		home = Environ{Index: scope - 1, Number: rt.records[scope-1].Number}
	}
	return &Procedure{
		Routine: routine,
		Mode:    routine.Mode,
		Env:     Environ{Index: env, Number: rt.records[env].Number},
		Home:    home,
		Scope:   scope,
	}
}

// alive reports whether the frame e names is still open.
func (rt *Runtime) alive(e Environ) bool {
	return e.Index >= 0 && e.Index < len(rt.records) && rt.records[e.Index].Number == e.Number
}

// unwind closes frames above record i and restores the stack cursor the way
// it was when the serial clause owning a label started.
func (rt *Runtime) unwind(i, sp, anchors int) {
	for len(rt.records)-1 > i {
		rt.CloseFrame()
	}
	rt.sp = sp
	rt.release(anchors)
}
