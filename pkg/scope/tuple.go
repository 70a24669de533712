package scope

import (
	"fmt"

	"genie/pkg/tree"
)

// Tuple is the static scope of a value: the lexical level of the youngest
// frame it may refer to, and whether it is a transient name. Level 0 is the
// primal scope of values that outlive every frame.
type Tuple struct {
	Level     int
	Transient bool
}

var primal = Tuple{Level: tree.PrimalScope}

// Join returns the younger of the two levels, transient if either is.
func (t Tuple) Join(u Tuple) Tuple {
	return Tuple{Level: max(t.Level, u.Level), Transient: t.Transient || u.Transient}
}

// Escapes reports whether a value of scope t may not be kept in a location
// of scope dst.
func (t Tuple) Escapes(dst Tuple) bool {
	return t.Level > dst.Level
}

func (t Tuple) String() string {
	if t.Transient {
		return fmt.Sprintf("level %d (transient)", t.Level)
	}
	return fmt.Sprintf("level %d", t.Level)
}
