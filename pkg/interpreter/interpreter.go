package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"genie/pkg/heap"
	"genie/pkg/tree"
)

const (
	DefaultFrameCells = 1 << 16
	DefaultStackCells = 1 << 16
	DefaultHeapCells  = 1 << 18
	DefaultHandles    = 1 << 14
	DefaultMaxDepth   = 4096
)

// Runtime evaluates annotated trees. It owns the frame arena, the evaluation
// stack and the heap; one Runtime runs one program at a time.
type Runtime struct {
	mu sync.Mutex

	frame   []Value // frame cells
	fp      int     // first free frame cell
	records []ActivationRecord
	number  int // frame numbers handed out so far

	stack   []Value // evaluation stack
	sp      int
	anchors []anchor

	heap    *heap.Heap[Value]
	visited map[visit]struct{}

	out        io.Writer
	logger     *log.Logger
	ctx        context.Context
	depth      int
	maxDepth   int
	specialise bool
	parallel   bool
	running    bool

	frameCells, stackCells, heapCells, handles int
	policy                                     heap.Policy

	stats Stats
}

// Stats describes collector activity since the runtime was created.
type Stats struct {
	Collections  int
	Preemptive   int
	HandlesFreed int
	CellsFreed   int
	Elapsed      time.Duration
	HeapUsed     int
	HeapCapacity int
	LiveHandles  int
}

type Option func(*Runtime)

// WithWriter sets the output writer for print
func WithWriter(w io.Writer) Option {
	return func(rt *Runtime) { rt.out = w }
}

// WithLogger sets the logger used for collector and scheduling messages
func WithLogger(l *log.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithFrameStack sets the frame arena capacity in cells
func WithFrameStack(cells int) Option {
	return func(rt *Runtime) { rt.frameCells = cells }
}

// WithEvalStack sets the evaluation stack capacity in cells
func WithEvalStack(cells int) Option {
	return func(rt *Runtime) { rt.stackCells = cells }
}

// WithHeap sets heap capacity in cells and the size of the handle pool
func WithHeap(cells, handles int) Option {
	return func(rt *Runtime) {
		rt.heapCells = cells
		rt.handles = handles
	}
}

// WithMaxDepth bounds the nesting of evaluation
func WithMaxDepth(n int) Option {
	return func(rt *Runtime) { rt.maxDepth = n }
}

// WithPolicy sets the thresholds for preemptive collection
func WithPolicy(p heap.Policy) Option {
	return func(rt *Runtime) { rt.policy = p }
}

// WithoutSpecialization keeps every node on the generic evaluation path
func WithoutSpecialization() Option {
	return func(rt *Runtime) { rt.specialise = false }
}

// New creates a runtime with the given options applied over the defaults
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		frameCells: DefaultFrameCells,
		stackCells: DefaultStackCells,
		heapCells:  DefaultHeapCells,
		handles:    DefaultHandles,
		maxDepth:   DefaultMaxDepth,
		policy:     heap.Policy{HighWater: 0.9, LowHandles: 16},
		specialise: true,
	}
	for _, o := range opts {
		o(rt)
	}

	if rt.out == nil {
		rt.out = os.Stdout
	}
	if rt.logger == nil {
		rt.logger = log.New(io.Discard)
	}

	rt.frame = make([]Value, rt.frameCells)
	rt.stack = make([]Value, rt.stackCells)
	rt.heap = heap.New[Value](rt.heapCells, rt.handles, rt.policy)
	rt.ctx = context.Background()
	return rt
}

// Run evaluates a bound program. The root must be a serial clause with a
// range; its frame becomes the global frame. Frames and the evaluation stack
// are reset first, the heap is kept.
func (rt *Runtime) Run(ctx context.Context, root *tree.Node) (err error) {
	if root == nil {
		return ErrNoProgram
	}
	if root.Range == nil {
		return fmt.Errorf("program has no range")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.ctx = ctx
	rt.records = rt.records[:0]
	rt.fp, rt.sp, rt.depth = 0, 0, 0
	rt.anchors = rt.anchors[:0]
	rt.parallel = false
	rt.running = true
	defer func() { rt.running = false }()

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			err = ie
		}
	}()

	if err := rt.Evaluate(root); err != nil {
		var jump *Jump
		if errors.As(err, &jump) {
			internalf("jump to %s escaped the program", jump.Label)
		}
		return err
	}
	rt.sp = 0
	return nil
}

// Stats returns collector statistics and current heap occupancy.
func (rt *Runtime) Stats() Stats {
	s := rt.stats
	s.HeapUsed = rt.heap.Top()
	s.HeapCapacity = rt.heap.Capacity()
	s.LiveHandles = rt.heap.Live()
	return s
}

// Output returns the writer used for print
func (rt *Runtime) Output() io.Writer {
	return rt.out
}

// Heap exposes the heap arena, for inspection by tools and tests.
func (rt *Runtime) Heap() *heap.Heap[Value] {
	return rt.heap
}

// Load copies the value of mode m stored at ref.
func (rt *Runtime) Load(ref Ref, m *tree.Mode) ([]Value, error) {
	return rt.load(ref, m)
}
