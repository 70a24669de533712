package tree

// StandardProc describes a procedure of the standard environ. Polymorphic
// procedures accept any argument modes.
type StandardProc struct {
	Name        string
	Mode        *Mode
	Polymorphic bool
}

var standardProcs = map[string]StandardProc{
	"print":    {Name: "print", Mode: ProcOf(Void), Polymorphic: true},
	"newline":  {Name: "newline", Mode: ProcOf(Void)},
	"collect":  {Name: "collect", Mode: ProcOf(Void)},
	"heapused": {Name: "heapused", Mode: ProcOf(Int)},
}

var standardSymbols = map[string]*Symbol{}

func init() {
	for name, proc := range standardProcs {
		standardSymbols[name] = &Symbol{Name: name, Kind: Standard, Mode: proc.Mode, Level: 0, Scope: PrimalScope, Constant: true}
	}
}

// LookupStandard returns the standard environ binding for name.
func LookupStandard(name string) (*Symbol, StandardProc, bool) {
	sym, ok := standardSymbols[name]
	if !ok {
		return nil, StandardProc{}, false
	}
	return sym, standardProcs[name], true
}

// DyadicResult returns the mode yielded by a standard dyadic operator, or nil
// if the operator is not defined for the operands.
func DyadicResult(op string, left, right *Mode) *Mode {
	numeric := func(m *Mode) bool { return m.Kind == IntMode || m.Kind == RealMode }
	switch op {
	case "+", "-", "*":
		if left.Kind == IntMode && right.Kind == IntMode {
			return Int
		}
		if numeric(left) && numeric(right) {
			return Real
		}
	case "/":
		if numeric(left) && numeric(right) {
			return Real
		}
	case "%", "MOD", "**":
		if left.Kind == IntMode && right.Kind == IntMode {
			return Int
		}
	case "=", "/=":
		if numeric(left) && numeric(right) {
			return Bool
		}
		if left.Kind == right.Kind && (left.Kind == BoolMode || left.Kind == CharMode) {
			return Bool
		}
	case "<", "<=", ">", ">=":
		if numeric(left) && numeric(right) {
			return Bool
		}
		if left.Kind == CharMode && right.Kind == CharMode {
			return Bool
		}
	case "AND", "OR":
		if left.Kind == BoolMode && right.Kind == BoolMode {
			return Bool
		}
	case "UPB", "LWB":
		if left.Kind == IntMode && right.Kind == RowMode {
			return Int
		}
	}
	return nil
}

// MonadicResult returns the mode yielded by a standard monadic operator.
func MonadicResult(op string, operand *Mode) *Mode {
	switch op {
	case "-", "+", "ABS":
		if operand.Kind == IntMode || operand.Kind == RealMode {
			return operand
		}
		if op == "ABS" && (operand.Kind == CharMode || operand.Kind == BoolMode) {
			return Int
		}
	case "NOT":
		if operand.Kind == BoolMode {
			return Bool
		}
	case "UPB", "LWB":
		if operand.Kind == RowMode {
			return Int
		}
	}
	return nil
}
