package interpreter

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"genie/pkg/heap"
	"genie/pkg/tree"
)

// errHeapFull reports an allocation that failed while collection was
// suspended. The outermost construction collects and retries.
var errHeapFull = errors.New("heap full during construction")

type visit struct {
	handle heap.Handle
	offset int
	mode   *tree.Mode
}

// heapAlloc reserves size cells. Outside a construction a failed request
// triggers one collection and a retry; a second failure is fatal.
func (rt *Runtime) heapAlloc(size int) (heap.Handle, error) {
	h, err := rt.heap.Alloc(size)
	if err == nil {
		return h, nil
	}
	if rt.heap.Suspended() {
		return heap.Nil, errHeapFull
	}
	rt.collect("allocation")
	if h, err = rt.heap.Alloc(size); err != nil {
		return heap.Nil, faultf(FaultHeap, "%v", err)
	}
	return h, nil
}

// construct runs a multi-step heap mutation with collection suspended, so
// the collector never sees a half-built object. If the heap fills up the
// outermost construction collects and runs fn once more; fn must anchor or
// root everything it reads.
func (rt *Runtime) construct(fn func() error) error {
	nested := rt.heap.Suspended()
	for attempt := 0; ; attempt++ {
		err := rt.suspended(fn)
		if !errors.Is(err, errHeapFull) || nested {
			return err
		}
		if attempt > 0 {
			return faultf(FaultHeap, "%d of %d cells in use", rt.heap.Top(), rt.heap.Capacity())
		}
		rt.collect("construction")
	}
}

func (rt *Runtime) suspended(fn func() error) error {
	rt.heap.Suspend()
	defer rt.heap.Resume()
	return fn()
}

// Collect runs a full collection.
func (rt *Runtime) Collect() {
	rt.collect("explicit")
}

// preempt collects when heap usage has crossed the policy thresholds.
func (rt *Runtime) preempt() {
	if rt.heap.NeedsCollection() {
		rt.stats.Preemptive++
		rt.collect("preemptive")
	}
}

func (rt *Runtime) collect(reason string) {
	if rt.heap.Suspended() {
		return
	}
	start := time.Now()
	before := rt.heap.Top()

	rt.heap.ClearMarks()
	rt.visited = make(map[visit]struct{})
	rt.colourRoots()
	rt.visited = nil

	handles, cells := rt.heap.Sweep()
	rt.heap.Compact()
	if err := rt.heap.Verify(); err != nil {
		internalf("heap inconsistent after compaction: %v", err)
	}

	elapsed := time.Since(start)
	rt.stats.Collections++
	rt.stats.HandlesFreed += handles
	rt.stats.CellsFreed += cells
	rt.stats.Elapsed += elapsed

	rt.logger.Debug("collected heap",
		"reason", reason,
		"before", humanize.Comma(int64(before)),
		"after", humanize.Comma(int64(rt.heap.Top())),
		"freed", humanize.Comma(int64(cells)),
		"handles", handles,
		"elapsed", elapsed,
	)
}

// colourRoots marks everything reachable from open frames and anchors.
func (rt *Runtime) colourRoots() {
	for i := range rt.records {
		rec := &rt.records[i]
		for _, sym := range rec.Node.Range.Symbols {
			m := sym.SlotMode()
			if !m.HasReferences() {
				continue
			}
			base := rec.Base + sym.Offset
			rt.colour(rt.frame[base:base+m.Size()], m)
		}
		for _, obj := range rec.Anonymous {
			if obj.mode.HasReferences() {
				rt.colour(rt.frame[obj.offset:obj.offset+obj.mode.Size()], obj.mode)
			}
		}
	}
	for _, a := range rt.anchors {
		cells, err := rt.cells(a.ref, a.mode.Size())
		if err != nil {
			continue
		}
		rt.colour(cells, a.mode)
	}
}

// colour marks the heap objects a value of mode m reaches.
func (rt *Runtime) colour(cells []Value, m *tree.Mode) {
	switch m.Kind {
	case tree.RefMode:
		v := cells[0]
		if v.Valid && v.Ref.Mode == AddrHeap {
			rt.colourBlock(v.Ref.Handle, v.Ref.Offset, m.Sub)
		}

	case tree.RowMode:
		v := cells[0]
		if !v.Valid || v.Kind != KindRow {
			return
		}
		key := visit{handle: v.Ref.Handle, mode: m}
		if _, seen := rt.visited[key]; seen {
			return
		}
		rt.visited[key] = struct{}{}
		rt.heap.Mark(v.Ref.Handle)
		d := decode(rt.heap.Cells(v.Ref.Handle))
		if !rt.heap.Valid(d.Backing) {
			return
		}
		rt.heap.Mark(d.Backing)
		if !m.Sub.HasReferences() {
			return
		}
		size := m.Sub.Size()
		block := rt.heap.Cells(d.Backing)
		d.Each(func(index []int64) error {
			off, _ := d.Offset(index)
			rt.colour(block[off:off+size], m.Sub)
			return nil
		})

	case tree.StructMode:
		for _, f := range m.Fields {
			if f.Mode.HasReferences() {
				rt.colour(cells[f.Offset:f.Offset+f.Mode.Size()], f.Mode)
			}
		}

	case tree.UnionMode:
		tag := cells[0]
		if !tag.Valid || int(tag.I64) >= len(m.Variants) {
			return
		}
		variant := m.Variants[tag.I64]
		if variant.HasReferences() {
			rt.colour(cells[1:1+variant.Size()], variant)
		}

	case tree.ProcMode:
		v := cells[0]
		if !v.Valid || v.Proc == nil {
			return
		}
		for i, arg := range v.Proc.Locale {
			if arg != nil {
				rt.colour(arg, v.Proc.Mode.Params[i])
			}
		}
	}
}

func (rt *Runtime) colourBlock(h heap.Handle, offset int, m *tree.Mode) {
	if !rt.heap.Valid(h) {
		internalf("live reference to released handle %d", h)
	}
	key := visit{handle: h, offset: offset, mode: m}
	if _, seen := rt.visited[key]; seen {
		return
	}
	rt.visited[key] = struct{}{}
	rt.heap.Mark(h)
	if m.HasReferences() {
		rt.colour(rt.heap.Cells(h)[offset:offset+m.Size()], m)
	}
}
