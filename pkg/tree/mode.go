package tree

import (
	"fmt"
	"strings"
)

type ModeKind int

const (
	VoidMode ModeKind = iota
	IntMode
	RealMode
	BoolMode
	CharMode
	RefMode
	RowMode
	StructMode
	UnionMode
	ProcMode
)

var modeKindNames = map[ModeKind]string{
	VoidMode:   "VOID",
	IntMode:    "INT",
	RealMode:   "REAL",
	BoolMode:   "BOOL",
	CharMode:   "CHAR",
	RefMode:    "REF",
	RowMode:    "ROW",
	StructMode: "STRUCT",
	UnionMode:  "UNION",
	ProcMode:   "PROC",
}

func (k ModeKind) String() string {
	if name, ok := modeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ModeKind(%d)", int(k))
}

// Field is one member of a structure mode. Offset is in cells from the start
// of the structure and is fixed once the mode is laid out.
type Field struct {
	Name   string
	Mode   *Mode
	Offset int
}

// Mode is the type descriptor attached to every node. Sizes are counted in
// storage cells: scalars, references, rows and procedures take one cell,
// structures the sum of their fields, unions a tag cell plus their largest
// variant.
type Mode struct {
	Kind     ModeKind
	Name     string  // name for declared modes, empty otherwise
	Sub      *Mode   // REF target, row element, PROC result
	Dim      int     // row dimensions
	Flex     bool    // flexible row
	Fields   []Field // STRUCT
	Variants []*Mode // UNION
	Params   []*Mode // PROC

	laidOut bool
	sizing  bool
	size    int
	refs    int8 // 0 unknown, 1 no, 2 yes
	scoped  int8
}

var (
	Void   = &Mode{Kind: VoidMode}
	Int    = &Mode{Kind: IntMode}
	Real   = &Mode{Kind: RealMode}
	Bool   = &Mode{Kind: BoolMode}
	Char   = &Mode{Kind: CharMode}
	String = &Mode{Kind: RowMode, Name: "STRING", Sub: Char, Dim: 1, Flex: true}
)

// RefTo returns the mode REF m.
func RefTo(m *Mode) *Mode {
	return &Mode{Kind: RefMode, Sub: m}
}

// RowOf returns the mode [,..] m with dim dimensions.
func RowOf(m *Mode, dim int) *Mode {
	return &Mode{Kind: RowMode, Sub: m, Dim: dim}
}

// FlexRowOf returns the mode FLEX [,..] m.
func FlexRowOf(m *Mode, dim int) *Mode {
	return &Mode{Kind: RowMode, Sub: m, Dim: dim, Flex: true}
}

// StructOf returns a structure mode; offsets are assigned lazily so that
// fields may refer to modes that are completed later.
func StructOf(fields ...Field) *Mode {
	return &Mode{Kind: StructMode, Fields: fields}
}

// UnionOf returns a united mode over the given variants.
func UnionOf(variants ...*Mode) *Mode {
	return &Mode{Kind: UnionMode, Variants: variants}
}

// ProcOf returns PROC (params) result.
func ProcOf(result *Mode, params ...*Mode) *Mode {
	return &Mode{Kind: ProcMode, Sub: result, Params: params}
}

// Size returns the number of cells a value of mode m occupies.
func (m *Mode) Size() int {
	m.layout()
	return m.size
}

func (m *Mode) layout() {
	if m.laidOut {
		return
	}
	if m.sizing {
		panic(fmt.Sprintf("mode %s contains itself", m))
	}
	m.sizing = true
	defer func() { m.sizing = false }()

	switch m.Kind {
	case VoidMode:
		m.size = 0
	case StructMode:
		offset := 0
		for i := range m.Fields {
			m.Fields[i].Offset = offset
			offset += m.Fields[i].Mode.Size()
		}
		m.size = offset
	case UnionMode:
		largest := 0
		for _, v := range m.Variants {
			largest = max(largest, v.Size())
		}
		m.size = 1 + largest
	default:
		m.size = 1
	}
	m.laidOut = true
}

// Field returns the named field and its index, laying the structure out first.
func (m *Mode) Field(name string) (Field, int, bool) {
	if m.Kind != StructMode {
		return Field{}, -1, false
	}
	m.layout()
	for i, f := range m.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// IsRef reports whether m is a REF mode.
func (m *Mode) IsRef() bool { return m != nil && m.Kind == RefMode }

// IsRow reports whether m is a row mode.
func (m *Mode) IsRow() bool { return m != nil && m.Kind == RowMode }

// IsVoid reports whether m yields nothing.
func (m *Mode) IsVoid() bool { return m == nil || m.Kind == VoidMode }

// Stowed reports whether values of m are composite and need deep copies.
func (m *Mode) Stowed() bool {
	switch m.Kind {
	case RowMode, StructMode, UnionMode:
		return true
	}
	return false
}

// NeedsAllocation reports whether a generator for m has more to do than
// reserve cells: rows need a descriptor and backing block, and structures
// need it when one of their fields does.
func (m *Mode) NeedsAllocation() bool {
	switch m.Kind {
	case RowMode:
		return true
	case StructMode:
		for _, f := range m.Fields {
			if f.Mode.NeedsAllocation() {
				return true
			}
		}
	}
	return false
}

// HasReferences reports whether values of m can lead the collector to heap
// storage.
func (m *Mode) HasReferences() bool {
	if m.refs == 0 {
		m.refs = memo(m.walk(map[*Mode]bool{}, func(k *Mode) bool {
			switch k.Kind {
			case RefMode, RowMode, ProcMode:
				return true
			}
			return false
		}))
	}
	return m.refs == 2
}

// HasScope reports whether values of m carry a scope that must be checked
// when they are stored: names, routines, or composites containing them.
func (m *Mode) HasScope() bool {
	if m.scoped == 0 {
		m.scoped = memo(m.walk(map[*Mode]bool{}, func(k *Mode) bool {
			return k.Kind == RefMode || k.Kind == ProcMode
		}))
	}
	return m.scoped == 2
}

func memo(b bool) int8 {
	if b {
		return 2
	}
	return 1
}

func (m *Mode) walk(seen map[*Mode]bool, pred func(*Mode) bool) bool {
	if m == nil || seen[m] {
		return false
	}
	seen[m] = true
	if pred(m) {
		return true
	}
	switch m.Kind {
	case RowMode:
		return m.Sub.walk(seen, pred)
	case StructMode:
		for _, f := range m.Fields {
			if f.Mode.walk(seen, pred) {
				return true
			}
		}
	case UnionMode:
		for _, v := range m.Variants {
			if v.walk(seen, pred) {
				return true
			}
		}
	}
	return false
}

// Variant returns the index of the union variant equal to v.
func (m *Mode) Variant(v *Mode) int {
	for i, variant := range m.Variants {
		if Equal(variant, v) {
			return i
		}
	}
	return -1
}

// Equal reports structural equivalence of two modes.
func Equal(a, b *Mode) bool {
	return equal(a, b, map[[2]*Mode]bool{})
}

func equal(a, b *Mode, assumed map[[2]*Mode]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	key := [2]*Mode{a, b}
	if assumed[key] {
		return true
	}
	assumed[key] = true

	switch a.Kind {
	case RefMode:
		return equal(a.Sub, b.Sub, assumed)
	case RowMode:
		return a.Dim == b.Dim && a.Flex == b.Flex && equal(a.Sub, b.Sub, assumed)
	case StructMode:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !equal(a.Fields[i].Mode, b.Fields[i].Mode, assumed) {
				return false
			}
		}
		return true
	case UnionMode:
		if len(a.Variants) != len(b.Variants) {
			return false
		}
		for i := range a.Variants {
			if !equal(a.Variants[i], b.Variants[i], assumed) {
				return false
			}
		}
		return true
	case ProcMode:
		if len(a.Params) != len(b.Params) || !equal(a.Sub, b.Sub, assumed) {
			return false
		}
		for i := range a.Params {
			if !equal(a.Params[i], b.Params[i], assumed) {
				return false
			}
		}
		return true
	}
	return true
}

func (m *Mode) String() string {
	return m.format(map[*Mode]bool{})
}

func (m *Mode) format(seen map[*Mode]bool) string {
	if m == nil {
		return "VOID"
	}
	if m.Name != "" {
		return m.Name
	}
	if seen[m] {
		return "..."
	}
	seen[m] = true
	defer delete(seen, m)

	switch m.Kind {
	case RefMode:
		return "REF " + m.Sub.format(seen)
	case RowMode:
		row := "[" + strings.Repeat(",", m.Dim-1) + "] " + m.Sub.format(seen)
		if m.Flex {
			return "FLEX " + row
		}
		return row
	case StructMode:
		parts := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			parts[i] = f.Mode.format(seen) + " " + f.Name
		}
		return "STRUCT (" + strings.Join(parts, ", ") + ")"
	case UnionMode:
		parts := make([]string, len(m.Variants))
		for i, v := range m.Variants {
			parts[i] = v.format(seen)
		}
		return "UNION (" + strings.Join(parts, ", ") + ")"
	case ProcMode:
		if len(m.Params) == 0 {
			return "PROC " + m.Sub.format(seen)
		}
		parts := make([]string, len(m.Params))
		for i, p := range m.Params {
			parts[i] = p.format(seen)
		}
		return "PROC (" + strings.Join(parts, ", ") + ") " + m.Sub.format(seen)
	}
	return m.Kind.String()
}
