// Package heap is a handle-indirected, compacting cell store. Objects are
// reached through handles, so blocks can move during compaction without
// rewriting the references that name them.
package heap

import (
	"errors"
	"fmt"
)

// Handle names a heap object. The zero handle is nil.
type Handle int32

const Nil Handle = 0

type flags uint8

const (
	allocated flags = 1 << iota
	marked
	pinned
)

var (
	ErrExhausted = errors.New("heap exhausted")
	ErrNoHandles = errors.New("handle pool exhausted")
)

type handle struct {
	pointer    int
	size       int
	flags      flags
	prev, next Handle // busy list, address order
}

// Policy sets the thresholds that make a preemptive collection worthwhile.
type Policy struct {
	HighWater  float64 // fraction of cells in use
	LowHandles int     // free handles left
}

// Heap stores cells of type C.
type Heap[C any] struct {
	cells   []C
	top     int
	handles []handle
	free    []Handle
	head    Handle
	tail    Handle
	live    int
	suspend int
	policy  Policy

	// usage right after the last compaction
	compacted bool
	lastTop   int
	lastFree  int
}

// New returns a heap with the given cell and handle capacity.
func New[C any](cells, handles int, policy Policy) *Heap[C] {
	h := &Heap[C]{
		cells:   make([]C, cells),
		handles: make([]handle, handles+1),
		free:    make([]Handle, 0, handles),
		policy:  policy,
	}
	for i := handles; i >= 1; i-- {
		h.free = append(h.free, Handle(i))
	}
	return h
}

// Alloc reserves size contiguous cells and returns a fresh handle for them.
// The cells are zeroed.
func (h *Heap[C]) Alloc(size int) (Handle, error) {
	if size < 0 {
		return Nil, fmt.Errorf("negative allocation of %d cells", size)
	}
	if len(h.free) == 0 {
		return Nil, ErrNoHandles
	}
	if h.top+size > len(h.cells) {
		return Nil, fmt.Errorf("%w: %d cells requested, %d free", ErrExhausted, size, len(h.cells)-h.top)
	}

	id := h.free[len(h.free)-1]
	h.free = h.free[:len(h.free)-1]

	var zero C
	for i := h.top; i < h.top+size; i++ {
		h.cells[i] = zero
	}
	h.handles[id] = handle{pointer: h.top, size: size, flags: allocated, prev: h.tail}
	if h.tail != Nil {
		h.handles[h.tail].next = id
	} else {
		h.head = id
	}
	h.tail = id
	h.top += size
	h.live++
	return id, nil
}

// Cells returns the block of an allocated handle. The slice is valid until
// the next compaction.
func (h *Heap[C]) Cells(id Handle) []C {
	e := h.entry(id)
	return h.cells[e.pointer : e.pointer+e.size : e.pointer+e.size]
}

// Valid reports whether id names an allocated object.
func (h *Heap[C]) Valid(id Handle) bool {
	return id > 0 && int(id) < len(h.handles) && h.handles[id].flags&allocated != 0
}

func (h *Heap[C]) entry(id Handle) *handle {
	if !h.Valid(id) {
		panic(fmt.Sprintf("heap: invalid handle %d", id))
	}
	return &h.handles[id]
}

// Pointer returns the current address of the block.
func (h *Heap[C]) Pointer(id Handle) int { return h.entry(id).pointer }

// Size returns the block size in cells.
func (h *Heap[C]) Size(id Handle) int { return h.entry(id).size }

// Pin keeps an object alive across collections regardless of reachability.
func (h *Heap[C]) Pin(id Handle) { h.entry(id).flags |= pinned }

func (h *Heap[C]) Unpin(id Handle) { h.entry(id).flags &^= pinned }

// Suspend prevents collection until the matching Resume. Calls nest.
func (h *Heap[C]) Suspend() { h.suspend++ }

func (h *Heap[C]) Resume() {
	if h.suspend == 0 {
		panic("heap: resume without suspend")
	}
	h.suspend--
}

// Suspended reports whether collection is currently blocked.
func (h *Heap[C]) Suspended() bool { return h.suspend > 0 }

// ClearMarks resets the mark bit on every allocated handle.
func (h *Heap[C]) ClearMarks() {
	for id := h.head; id != Nil; id = h.handles[id].next {
		h.handles[id].flags &^= marked
	}
}

// Mark colours id and reports whether it was white before.
func (h *Heap[C]) Mark(id Handle) bool {
	e := h.entry(id)
	if e.flags&marked != 0 {
		return false
	}
	e.flags |= marked
	return true
}

// Marked reports whether id has been coloured in this cycle.
func (h *Heap[C]) Marked(id Handle) bool {
	return h.entry(id).flags&marked != 0
}

// Sweep releases every handle that is neither marked nor pinned and returns
// the number of handles and cells freed.
func (h *Heap[C]) Sweep() (handles, cells int) {
	for id := h.head; id != Nil; {
		e := &h.handles[id]
		next := e.next
		if e.flags&(marked|pinned) == 0 {
			h.unlink(id)
			handles++
			cells += e.size
			*e = handle{}
			h.free = append(h.free, id)
			h.live--
		}
		id = next
	}
	return handles, cells
}

func (h *Heap[C]) unlink(id Handle) {
	e := &h.handles[id]
	if e.prev != Nil {
		h.handles[e.prev].next = e.next
	} else {
		h.head = e.next
	}
	if e.next != Nil {
		h.handles[e.next].prev = e.prev
	} else {
		h.tail = e.prev
	}
}

// Compact slides live blocks down in address order so that free space forms
// one region above Top. Vacated cells are zeroed.
func (h *Heap[C]) Compact() {
	dst := 0
	for id := h.head; id != Nil; id = h.handles[id].next {
		e := &h.handles[id]
		if e.pointer != dst {
			copy(h.cells[dst:dst+e.size], h.cells[e.pointer:e.pointer+e.size])
			e.pointer = dst
		}
		dst += e.size
	}
	var zero C
	for i := dst; i < h.top; i++ {
		h.cells[i] = zero
	}
	h.top = dst
	h.compacted, h.lastTop, h.lastFree = true, h.top, len(h.free)
}

// Verify checks that busy blocks are contiguous from address zero and that
// the handle pool accounts for every handle.
func (h *Heap[C]) Verify() error {
	addr, count := 0, 0
	for id := h.head; id != Nil; id = h.handles[id].next {
		e := h.handles[id]
		if e.flags&allocated == 0 {
			return fmt.Errorf("handle %d on the busy list is not allocated", id)
		}
		if e.pointer != addr {
			return fmt.Errorf("handle %d at %d, expected %d", id, e.pointer, addr)
		}
		addr += e.size
		count++
	}
	if addr != h.top {
		return fmt.Errorf("busy blocks end at %d, top is %d", addr, h.top)
	}
	if count != h.live {
		return fmt.Errorf("%d busy handles, %d live", count, h.live)
	}
	if count+len(h.free) != len(h.handles)-1 {
		return fmt.Errorf("%d busy and %d free handles out of %d", count, len(h.free), len(h.handles)-1)
	}
	return nil
}

// Top is the first free cell.
func (h *Heap[C]) Top() int { return h.top }

// Capacity is the total number of cells.
func (h *Heap[C]) Capacity() int { return len(h.cells) }

// FreeHandles is the number of handles available for allocation.
func (h *Heap[C]) FreeHandles() int { return len(h.free) }

// Live is the number of allocated handles.
func (h *Heap[C]) Live() int { return h.live }

// Each calls fn for every allocated handle in address order.
func (h *Heap[C]) Each(fn func(Handle)) {
	for id := h.head; id != Nil; id = h.handles[id].next {
		fn(id)
	}
}

// NeedsCollection reports whether usage has crossed the policy thresholds.
// After a compaction it stays quiet until the heap has grown again, so a
// heap that is mostly live data is not collected at every check.
func (h *Heap[C]) NeedsCollection() bool {
	if h.suspend > 0 {
		return false
	}
	if h.compacted && !h.grown() {
		return false
	}
	if h.policy.HighWater > 0 && len(h.cells) > 0 && float64(h.top) >= h.policy.HighWater*float64(len(h.cells)) {
		return true
	}
	return h.policy.LowHandles > 0 && len(h.free) < h.policy.LowHandles
}

// grown reports whether a quarter of the room left by the last compaction
// has since been used, in cells or in handles.
func (h *Heap[C]) grown() bool {
	room := max((len(h.cells)-h.lastTop)/4, 1)
	handles := max(h.lastFree/4, 1)
	return h.top-h.lastTop >= room || h.lastFree-len(h.free) >= handles
}
