package scope

import (
	"fmt"

	"genie/pkg/tree"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// Escape reports a value stored where it could outlive the frame it
	// refers to.
	Escape Kind = iota
	// Transient reports a name into a flexible row kept beyond the unit
	// that produced it.
	Transient
)

func (k Kind) String() string {
	if k == Transient {
		return "transient name"
	}
	return "scope violation"
}

// Diagnostic is one finding of the checker.
type Diagnostic struct {
	Kind Kind
	Line int
	Node *tree.Node
	Msg  string
}

func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", d.Line, d.Kind, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
}
