package heap_test

import (
	"errors"
	"genie/pkg/heap"
	"testing"
)

func TestAllocZeroesCells(t *testing.T) {
	h := heap.New[int](16, 4, heap.Policy{})
	a, err := h.Alloc(4)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	for i := range h.Cells(a) {
		h.Cells(a)[i] = 7
	}
	h.Sweep()
	h.Compact()

	b, err := h.Alloc(4)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	for i, c := range h.Cells(b) {
		if c != 0 {
			t.Errorf("cell %d not zeroed: %d", i, c)
		}
	}
}

func TestAllocErrors(t *testing.T) {
	h := heap.New[int](4, 2, heap.Policy{})
	if _, err := h.Alloc(5); !errors.Is(err, heap.ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	h.Alloc(0)
	h.Alloc(1)
	if _, err := h.Alloc(1); !errors.Is(err, heap.ErrNoHandles) {
		t.Errorf("expected ErrNoHandles, got %v", err)
	}
}

func TestCollectRoundTrip(t *testing.T) {
	h := heap.New[int](32, 8, heap.Policy{})

	var keep, drop []heap.Handle
	for i := 0; i < 6; i++ {
		id, err := h.Alloc(i + 1)
		if err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		for j := range h.Cells(id) {
			h.Cells(id)[j] = 100*int(id) + j
		}
		if i%2 == 0 {
			drop = append(drop, id)
		} else {
			keep = append(keep, id)
		}
	}

	h.ClearMarks()
	for _, id := range keep {
		if !h.Mark(id) {
			t.Errorf("handle %d was already marked", id)
		}
		if h.Mark(id) {
			t.Errorf("handle %d marked twice", id)
		}
	}
	handles, cells := h.Sweep()
	if handles != len(drop) || cells != 1+3+5 {
		t.Errorf("expected %d handles and 9 cells freed, got %d and %d", len(drop), handles, cells)
	}
	h.Compact()
	if err := h.Verify(); err != nil {
		t.Fatalf("heap inconsistent after compaction: %v", err)
	}

	if h.Top() != 2+4+6 {
		t.Errorf("expected live cells to be packed into 12 cells, top is %d", h.Top())
	}
	for _, id := range keep {
		for j, c := range h.Cells(id) {
			if c != 100*int(id)+j {
				t.Errorf("handle %d cell %d: expected %d, got %d", id, j, 100*int(id)+j, c)
			}
		}
	}
	for _, id := range drop {
		if h.Valid(id) {
			t.Errorf("handle %d should have been released", id)
		}
	}
}

func TestPinnedSurvives(t *testing.T) {
	h := heap.New[int](8, 4, heap.Policy{})
	id, _ := h.Alloc(2)
	h.Pin(id)
	h.ClearMarks()
	h.Sweep()
	if !h.Valid(id) {
		t.Fatalf("pinned handle was released")
	}
	h.Unpin(id)
	h.ClearMarks()
	h.Sweep()
	if h.Valid(id) {
		t.Errorf("unpinned unreachable handle survived")
	}
}

func TestPolicy(t *testing.T) {
	h := heap.New[int](10, 10, heap.Policy{HighWater: 0.5, LowHandles: 2})
	h.Alloc(4)
	if h.NeedsCollection() {
		t.Errorf("40%% usage is below the high-water mark")
	}
	h.Alloc(1)
	if !h.NeedsCollection() {
		t.Errorf("50%% usage reaches the high-water mark")
	}
	h.Suspend()
	if h.NeedsCollection() || !h.Suspended() {
		t.Errorf("a suspended heap never asks for collection")
	}
	h.Resume()
	if h.Suspended() {
		t.Errorf("resume must lift the suspension")
	}
}

func TestPolicyWaitsForGrowthAfterCompaction(t *testing.T) {
	tests := []struct {
		name  string
		after []int
		want  bool
	}{
		{"right after compaction", nil, false},
		{"below a quarter of the room", []int{9}, false},
		{"a quarter of the room", []int{9, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := heap.New[int](100, 100, heap.Policy{HighWater: 0.5})
			live, _ := h.Alloc(60)
			if !h.NeedsCollection() {
				t.Fatalf("60%% usage reaches the high-water mark")
			}
			h.ClearMarks()
			h.Mark(live)
			h.Sweep()
			h.Compact()
			for _, n := range tt.after {
				if _, err := h.Alloc(n); err != nil {
					t.Fatalf("alloc %d: %v", n, err)
				}
			}
			if got := h.NeedsCollection(); got != tt.want {
				t.Errorf("expected NeedsCollection %v at top %d, got %v", tt.want, h.Top(), got)
			}
		})
	}
}
