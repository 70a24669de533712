package tree

// SymbolKind tells how a declared name is stored.
type SymbolKind int

const (
	// Variable names own their frame cells: the identifier yields a name
	// (REF) to the slot and the slot holds the referenced value.
	Variable SymbolKind = iota
	// Identity names hold their value directly in the slot.
	Identity
	// Parameter is an identity bound by a call.
	Parameter
	// Standard names belong to the standard environ and have no slot.
	Standard
)

// PrimalScope is the scope of values that outlive every frame: heap
// objects, denotations, and values without names in them.
const PrimalScope = 0

// ScopeUnknown marks a symbol whose scope has not been derived yet.
const ScopeUnknown = -1

// Symbol is the binding of a declared identifier.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Mode   *Mode // mode yielded by the identifier
	Level  int   // lexical level of the declaring range
	Offset int   // first frame cell
	Range  *Range

	// Scope is the permanent scope bound by the scope checker: for identities
	// the scope of the bound value, for variables the youngest scope stored
	// into them.
	Scope int

	// Constant identities carry a folded value the evaluator may push
	// without touching the frame.
	Constant bool
	Value    any
}

// SlotMode returns the mode of the value held in the symbol's frame cells.
func (s *Symbol) SlotMode() *Mode {
	if s.Kind == Variable {
		return s.Mode.Sub
	}
	return s.Mode
}

// Range is a lexical scope that owns a frame.
type Range struct {
	Level   int
	Size    int // frame cells
	Symbols []*Symbol
	// Routines are identity declarations of routine texts, installed when
	// the frame opens so that procedures may be called before their
	// declaration is reached.
	Routines []*Node
	Owner    *Node
	Parent   *Range

	names map[string]*Symbol
}

// NewRange returns an empty range nested in parent.
func NewRange(parent *Range) *Range {
	level := 1
	if parent != nil {
		level = parent.Level + 1
	}
	return &Range{Level: level, Parent: parent, names: map[string]*Symbol{}}
}

// Declare adds a symbol to the range, reserving its frame cells.
func (r *Range) Declare(name string, kind SymbolKind, mode *Mode) *Symbol {
	return r.Adopt(&Symbol{Name: name, Kind: kind, Mode: mode})
}

// Adopt places an existing symbol in the range.
func (r *Range) Adopt(sym *Symbol) *Symbol {
	sym.Level = r.Level
	sym.Offset = r.Size
	sym.Range = r
	sym.Scope = ScopeUnknown
	name := sym.Name
	r.Size += sym.SlotMode().Size()
	r.Symbols = append(r.Symbols, sym)
	if r.names == nil {
		r.names = map[string]*Symbol{}
	}
	r.names[name] = sym
	return sym
}

// Lookup finds name in r or an enclosing range.
func (r *Range) Lookup(name string) (*Symbol, bool) {
	for rng := r; rng != nil; rng = rng.Parent {
		if sym, ok := rng.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal finds name in r only.
func (r *Range) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := r.names[name]
	return sym, ok
}
