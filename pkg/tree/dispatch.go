package tree

// DispatchKind names the evaluation strategy cached on a node.
type DispatchKind uint8

const (
	DispatchGeneric DispatchKind = iota
	DispatchConstant
	DispatchStandard
	DispatchFrameVariable
	DispatchGlobalVariable
	DispatchFrameIdentity
	DispatchGlobalIdentity
	DispatchDerefFrameVariable
	DispatchFormula
	DispatchMonadic
	DispatchAssignFrameScalar
	DispatchSliceFrameRow
	DispatchCallStandard
)

var dispatchNames = [...]string{
	DispatchGeneric:            "generic",
	DispatchConstant:           "constant",
	DispatchStandard:           "standard",
	DispatchFrameVariable:      "frame variable",
	DispatchGlobalVariable:     "global variable",
	DispatchFrameIdentity:      "frame identity",
	DispatchGlobalIdentity:     "global identity",
	DispatchDerefFrameVariable: "dereference frame variable",
	DispatchFormula:            "formula",
	DispatchMonadic:            "monadic",
	DispatchAssignFrameScalar:  "assign frame scalar",
	DispatchSliceFrameRow:      "slice frame row",
	DispatchCallStandard:       "call standard",
}

func (k DispatchKind) String() string {
	if int(k) < len(dispatchNames) {
		return dispatchNames[k]
	}
	return "unknown"
}

// DispatchSlot is a node's propagator: the chosen strategy, the data cached
// for it, and the node the strategy reads from. A slot starts generic and is
// refined at most once.
type DispatchSlot struct {
	Kind   DispatchKind
	Unit   any
	Source *Node
}

// Refine moves a generic slot to kind. It reports whether the slot changed;
// a slot that is already specialised keeps its strategy.
func (s *DispatchSlot) Refine(kind DispatchKind, unit any, source *Node) bool {
	if s.Kind != DispatchGeneric || kind == DispatchGeneric {
		return false
	}
	s.Kind = kind
	s.Unit = unit
	s.Source = source
	return true
}

// Specialised reports whether the slot left the generic strategy.
func (s *DispatchSlot) Specialised() bool {
	return s.Kind != DispatchGeneric
}
