package interpreter

import (
	"genie/pkg/tree"
)

// anchor keeps cells that are reachable only from the evaluation stack (or a
// block under construction) visible to the collector.
type anchor struct {
	ref  Ref
	mode *tree.Mode
}

func (rt *Runtime) push(v Value) error {
	if rt.sp >= len(rt.stack) {
		return faultf(FaultStackOverflow, "evaluation stack exhausted at %d cells", len(rt.stack))
	}
	rt.stack[rt.sp] = v
	rt.sp++
	return nil
}

func (rt *Runtime) pushCells(cells []Value) error {
	if rt.sp+len(cells) > len(rt.stack) {
		return faultf(FaultStackOverflow, "evaluation stack exhausted at %d cells", len(rt.stack))
	}
	copy(rt.stack[rt.sp:], cells)
	rt.sp += len(cells)
	return nil
}

// reserve pushes n uninitialised cells.
func (rt *Runtime) reserve(n int) error {
	if rt.sp+n > len(rt.stack) {
		return faultf(FaultStackOverflow, "evaluation stack exhausted at %d cells", len(rt.stack))
	}
	clear(rt.stack[rt.sp : rt.sp+n])
	rt.sp += n
	return nil
}

func (rt *Runtime) pop() Value {
	if rt.sp == 0 {
		internalf("evaluation stack underflow")
	}
	rt.sp--
	return rt.stack[rt.sp]
}

// popCells removes the top n cells and returns a copy of them.
func (rt *Runtime) popCells(n int) []Value {
	if rt.sp < n {
		internalf("evaluation stack underflow: want %d cells, have %d", n, rt.sp)
	}
	rt.sp -= n
	out := make([]Value, n)
	copy(out, rt.stack[rt.sp:rt.sp+n])
	return out
}

// top returns the n cells on top of the stack without popping them.
func (rt *Runtime) top(n int) []Value {
	return rt.stack[rt.sp-n : rt.sp]
}

// hold anchors the value of mode m that starts at stack offset sp. It
// returns the anchor depth to release to.
func (rt *Runtime) hold(sp int, m *tree.Mode) int {
	depth := len(rt.anchors)
	if m.HasReferences() {
		rt.anchors = append(rt.anchors, anchor{ref: Ref{Mode: AddrStack, Offset: sp}, mode: m})
	}
	return depth
}

func (rt *Runtime) release(depth int) {
	rt.anchors = rt.anchors[:depth]
}

// cells returns the n cells addressed by ref. Frame and stack references
// must lie in the live part of their arena; heap references in their block.
// The slice aliases the arena and is invalidated by the next collection.
func (rt *Runtime) cells(ref Ref, n int) ([]Value, error) {
	switch ref.Mode {
	case AddrNil:
		return nil, faultf(FaultNil, "access through NIL")
	case AddrFrame:
		if ref.Offset < 0 || ref.Offset+n > rt.fp {
			return nil, faultf(FaultScope, "frame reference %d outlived its frame", ref.Offset)
		}
		return rt.frame[ref.Offset : ref.Offset+n : ref.Offset+n], nil
	case AddrStack:
		if ref.Offset < 0 || ref.Offset+n > rt.sp {
			return nil, faultf(FaultScope, "stack reference %d outlived its value", ref.Offset)
		}
		return rt.stack[ref.Offset : ref.Offset+n : ref.Offset+n], nil
	case AddrHeap:
		if !rt.heap.Valid(ref.Handle) {
			internalf("reference to released handle %d", ref.Handle)
		}
		block := rt.heap.Cells(ref.Handle)
		if ref.Offset < 0 || ref.Offset+n > len(block) {
			internalf("heap reference %s+%d beyond block of %d cells", ref, n, len(block))
		}
		return block[ref.Offset : ref.Offset+n : ref.Offset+n], nil
	}
	internalf("bad addressing mode %d", ref.Mode)
	return nil, nil
}

// load copies the value of mode m stored at ref.
func (rt *Runtime) load(ref Ref, m *tree.Mode) ([]Value, error) {
	src, err := rt.cells(ref, m.Size())
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(src))
	copy(out, src)
	return out, nil
}
