package interpreter

import (
	"errors"
	"fmt"

	"genie/pkg/tree"
)

type FaultKind int

const (
	FaultIndex FaultKind = iota
	FaultDivision
	FaultNil
	FaultUninitialised
	FaultStackOverflow
	FaultRecursion
	FaultHeap
	FaultScope
	FaultBounds
)

var faultNames = [...]string{
	FaultIndex:         "index out of bounds",
	FaultDivision:      "division by zero",
	FaultNil:           "nil dereference",
	FaultUninitialised: "uninitialised value",
	FaultStackOverflow: "stack overflow",
	FaultRecursion:     "recursion too deep",
	FaultHeap:          "heap exhausted",
	FaultScope:         "scope violation",
	FaultBounds:        "bounds mismatch",
}

func (k FaultKind) String() string {
	if int(k) >= 0 && int(k) < len(faultNames) {
		return faultNames[k]
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is a runtime error. It unwinds the whole evaluation.
type Fault struct {
	Kind FaultKind
	Line int
	Msg  string
}

func (f *Fault) Error() string {
	msg := f.Kind.String()
	if f.Msg != "" {
		msg += ": " + f.Msg
	}
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s", f.Line, msg)
	}
	return msg
}

func faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Jump transfers control to a labelled unit of a serial clause. It travels
// up the evaluator as an error until the serial clause owning the label
// absorbs it.
type Jump struct {
	Target *tree.Node
	Label  string
	Frame  int
}

func (j *Jump) Error() string {
	return "jump to " + j.Label
}

// InternalError reports a broken invariant of the runtime itself. The core
// panics with it; Run turns it back into an error.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

func internalf(format string, args ...any) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// ErrNoProgram is returned by Run when given nothing to run.
var ErrNoProgram = errors.New("no program")

// locate attaches the line of n to a fault that has none yet.
func locate(err error, n *tree.Node) error {
	var f *Fault
	if errors.As(err, &f) && f.Line == 0 {
		f.Line = n.Line
	}
	return err
}
