package interpreter

import (
	"fmt"
	"strconv"

	"genie/pkg/heap"
	"genie/pkg/tree"
)

type ValueKind uint8

const (
	KindUnknown ValueKind = iota
	KindInt
	KindReal
	KindBool
	KindChar
	KindRef
	KindRow
	KindProc
	KindTag
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindInt:     "int",
	KindReal:    "real",
	KindBool:    "bool",
	KindChar:    "char",
	KindRef:     "ref",
	KindRow:     "row",
	KindProc:    "proc",
	KindTag:     "tag",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "ValueKind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one storage cell. Frames, the evaluation stack and the heap are
// all arrays of cells; a cell that was never written is not Valid.
//
// A row cell holds a heap reference to its descriptor. A union occupies a
// tag cell, whose I64 is the variant index, followed by the variant's cells.
type Value struct {
	Kind  ValueKind
	I64   int64
	F64   float64
	Bool  bool
	Ref   Ref
	Proc  *Procedure
	Valid bool
}

// Addressing tells which arena a reference points into.
type Addressing uint8

const (
	AddrNil Addressing = iota
	AddrFrame
	AddrStack
	AddrHeap
)

func (a Addressing) String() string {
	switch a {
	case AddrFrame:
		return "frame"
	case AddrStack:
		return "stack"
	case AddrHeap:
		return "heap"
	}
	return "nil"
}

// Ref is a fat pointer. Offset is absolute for frame and stack references
// and relative to the block for heap references. Scope is the dynamic scope
// of the referenced storage: zero for the heap, one more than the frame index
// for frame storage.
type Ref struct {
	Mode   Addressing
	Offset int
	Handle heap.Handle
	Scope  int
}

func (r Ref) IsNil() bool { return r.Mode == AddrNil }

// Add returns r displaced by n cells.
func (r Ref) Add(n int) Ref {
	r.Offset += n
	return r
}

// Same reports whether two references name the same cell.
func (r Ref) Same(o Ref) bool {
	if r.Mode != o.Mode {
		return false
	}
	switch r.Mode {
	case AddrNil:
		return true
	case AddrHeap:
		return r.Handle == o.Handle && r.Offset == o.Offset
	}
	return r.Offset == o.Offset
}

func (r Ref) String() string {
	switch r.Mode {
	case AddrNil:
		return "NIL"
	case AddrHeap:
		return fmt.Sprintf("heap#%d+%d", r.Handle, r.Offset)
	}
	return fmt.Sprintf("%s@%d", r.Mode, r.Offset)
}

// Environ identifies the frame a routine was created in. The number guards
// against the index having been reused by a later frame.
type Environ struct {
	Index  int
	Number int
}

// Procedure is a routine value. Locale holds the arguments bound so far by
// partial parametrisation; a nil entry is still open.
type Procedure struct {
	Routine  *tree.Node
	Standard string
	Mode     *tree.Mode // full signature
	Env      Environ
	Home     Environ // frame of the youngest name the body uses; -1 for none
	Scope    int
	Locale   [][]Value
}

// Bind returns a copy of p with the open parameters filled from args in
// order. Entries of args that are nil stay open.
func (p *Procedure) Bind(args [][]Value) *Procedure {
	q := *p
	q.Locale = make([][]Value, len(p.Mode.Params))
	copy(q.Locale, p.Locale)
	next := 0
	for i := range q.Locale {
		if q.Locale[i] != nil {
			continue
		}
		if next < len(args) {
			q.Locale[i] = args[next]
		}
		next++
	}
	return &q
}

// Open returns the modes of parameters not yet bound.
func (p *Procedure) Open() []*tree.Mode {
	var open []*tree.Mode
	for i, m := range p.Mode.Params {
		if p.Locale == nil || p.Locale[i] == nil {
			open = append(open, m)
		}
	}
	return open
}

func newInt(i int64) Value {
	return Value{Kind: KindInt, I64: i, Valid: true}
}

func newReal(f float64) Value {
	return Value{Kind: KindReal, F64: f, Valid: true}
}

func newBool(b bool) Value {
	return Value{Kind: KindBool, Bool: b, Valid: true}
}

func newChar(c rune) Value {
	return Value{Kind: KindChar, I64: int64(c), Valid: true}
}

func newRef(r Ref) Value {
	return Value{Kind: KindRef, Ref: r, Valid: true}
}

func newRow(descriptor heap.Handle) Value {
	return Value{Kind: KindRow, Ref: Ref{Mode: AddrHeap, Handle: descriptor}, Valid: true}
}

func newProc(p *Procedure) Value {
	return Value{Kind: KindProc, Proc: p, Valid: true}
}

func newTag(variant int) Value {
	return Value{Kind: KindTag, I64: int64(variant), Valid: true}
}

var nilRef = newRef(Ref{})

// AsFloat64 widens numeric values.
func (v Value) AsFloat64() (float64, error) {
	switch v.Kind {
	case KindReal:
		return v.F64, nil
	case KindInt:
		return float64(v.I64), nil
	default:
		return 0, fmt.Errorf("cannot convert %v to real", v.Kind)
	}
}

// String renders scalar cells; rows and structures are rendered by the
// runtime, which can read their storage.
func (v Value) String() string {
	if !v.Valid {
		return "<uninitialised>"
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindReal:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindChar:
		return string(rune(v.I64))
	case KindRef:
		return v.Ref.String()
	case KindRow:
		return "row " + v.Ref.String()
	case KindProc:
		if v.Proc.Standard != "" {
			return "proc " + v.Proc.Standard
		}
		return "proc"
	case KindTag:
		return "tag " + strconv.FormatInt(v.I64, 10)
	}
	return "<unknown>"
}
