package interpreter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"genie/pkg/tree"
)

type dyadic func(rt *Runtime, a, b Value) (Value, error)

type monadic func(rt *Runtime, a Value) (Value, error)

// lookupDyadic returns the standard operator for the operand modes, or nil.
func lookupDyadic(op string, l, r *tree.Mode) dyadic {
	ints := l.Kind == tree.IntMode && r.Kind == tree.IntMode
	numeric := isNumeric(l) && isNumeric(r)

	var fn dyadic
	switch op {
	case "+", "-", "*":
		switch {
		case ints:
			fn = intArith(op)
		case numeric:
			fn = realArith(op)
		}
	case "/":
		if numeric {
			fn = realArith(op)
		}
	case "%", "MOD", "**":
		if ints {
			fn = intArith(op)
		}
	case "=", "/=", "<", "<=", ">", ">=":
		switch {
		case ints || (l.Kind == tree.CharMode && r.Kind == tree.CharMode):
			fn = compareInts(op)
		case numeric:
			fn = compareReals(op)
		case l.Kind == tree.BoolMode && r.Kind == tree.BoolMode && (op == "=" || op == "/="):
			fn = func(_ *Runtime, a, b Value) (Value, error) {
				return newBool((a.Bool == b.Bool) == (op == "=")), nil
			}
		}
	case "AND":
		fn = func(_ *Runtime, a, b Value) (Value, error) { return newBool(a.Bool && b.Bool), nil }
	case "OR":
		fn = func(_ *Runtime, a, b Value) (Value, error) { return newBool(a.Bool || b.Bool), nil }
	case "UPB", "LWB":
		if l.Kind == tree.IntMode && r.IsRow() {
			fn = bound(op == "UPB")
		}
	}
	if fn == nil {
		return nil
	}
	return func(rt *Runtime, a, b Value) (Value, error) {
		if !a.Valid || !b.Valid {
			return Value{}, faultf(FaultUninitialised, "operand of %s is uninitialised", op)
		}
		return fn(rt, a, b)
	}
}

func isNumeric(m *tree.Mode) bool {
	return m.Kind == tree.IntMode || m.Kind == tree.RealMode
}

func intArith(op string) dyadic {
	return func(_ *Runtime, a, b Value) (Value, error) {
		x, y := a.I64, b.I64
		switch op {
		case "+":
			return newInt(x + y), nil
		case "-":
			return newInt(x - y), nil
		case "*":
			return newInt(x * y), nil
		case "%":
			if y == 0 {
				return Value{}, faultf(FaultDivision, "%d %% 0", x)
			}
			return newInt(x / y), nil
		case "MOD":
			if y == 0 {
				return Value{}, faultf(FaultDivision, "%d MOD 0", x)
			}
			m := x % y
			if m < 0 {
				if y < 0 {
					m -= y
				} else {
					m += y
				}
			}
			return newInt(m), nil
		case "**":
			if y < 0 {
				return Value{}, faultf(FaultDivision, "negative exponent %d", y)
			}
			r := int64(1)
			for ; y > 0; y-- {
				r *= x
			}
			return newInt(r), nil
		}
		internalf("no integer operator %s", op)
		return Value{}, nil
	}
}

func realArith(op string) dyadic {
	return func(_ *Runtime, a, b Value) (Value, error) {
		x, _ := a.AsFloat64()
		y, _ := b.AsFloat64()
		switch op {
		case "+":
			return newReal(x + y), nil
		case "-":
			return newReal(x - y), nil
		case "*":
			return newReal(x * y), nil
		case "/":
			if y == 0 {
				return Value{}, faultf(FaultDivision, "%g / 0", x)
			}
			return newReal(x / y), nil
		}
		internalf("no real operator %s", op)
		return Value{}, nil
	}
}

func compareInts(op string) dyadic {
	return func(_ *Runtime, a, b Value) (Value, error) {
		return newBool(compare(op, a.I64, b.I64)), nil
	}
}

func compareReals(op string) dyadic {
	return func(_ *Runtime, a, b Value) (Value, error) {
		x, _ := a.AsFloat64()
		y, _ := b.AsFloat64()
		return newBool(compare(op, x, y)), nil
	}
}

func compare[T int64 | float64](op string, x, y T) bool {
	switch op {
	case "=":
		return x == y
	case "/=":
		return x != y
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	}
	return x >= y
}

// bound implements k UPB row and k LWB row.
func bound(upper bool) dyadic {
	return func(rt *Runtime, a, b Value) (Value, error) {
		d, err := rt.descriptor(b)
		if err != nil {
			return Value{}, err
		}
		k := a.I64
		if k < 1 || k > int64(d.Dim) {
			return Value{}, faultf(FaultIndex, "dimension %d of a %d-dimensional row", k, d.Dim)
		}
		t := d.Tuples[k-1]
		if upper {
			return newInt(t.Upper), nil
		}
		return newInt(t.Lower), nil
	}
}

func lookupMonadic(op string, m *tree.Mode) monadic {
	var fn monadic
	switch op {
	case "-":
		switch m.Kind {
		case tree.IntMode:
			fn = func(_ *Runtime, a Value) (Value, error) { return newInt(-a.I64), nil }
		case tree.RealMode:
			fn = func(_ *Runtime, a Value) (Value, error) { return newReal(-a.F64), nil }
		}
	case "+":
		if isNumeric(m) {
			fn = func(_ *Runtime, a Value) (Value, error) { return a, nil }
		}
	case "ABS":
		switch m.Kind {
		case tree.IntMode:
			fn = func(_ *Runtime, a Value) (Value, error) {
				if a.I64 < 0 {
					return newInt(-a.I64), nil
				}
				return a, nil
			}
		case tree.RealMode:
			fn = func(_ *Runtime, a Value) (Value, error) { return newReal(math.Abs(a.F64)), nil }
		case tree.CharMode:
			fn = func(_ *Runtime, a Value) (Value, error) { return newInt(a.I64), nil }
		case tree.BoolMode:
			fn = func(_ *Runtime, a Value) (Value, error) {
				if a.Bool {
					return newInt(1), nil
				}
				return newInt(0), nil
			}
		}
	case "NOT":
		if m.Kind == tree.BoolMode {
			fn = func(_ *Runtime, a Value) (Value, error) { return newBool(!a.Bool), nil }
		}
	case "UPB", "LWB":
		if m.IsRow() {
			b := bound(op == "UPB")
			fn = func(rt *Runtime, a Value) (Value, error) { return b(rt, newInt(1), a) }
		}
	}
	if fn == nil {
		return nil
	}
	return func(rt *Runtime, a Value) (Value, error) {
		if !a.Valid {
			return Value{}, faultf(FaultUninitialised, "operand of %s is uninitialised", op)
		}
		return fn(rt, a)
	}
}

// standard runs a procedure of the standard environ. Arguments arrive
// already evaluated; their nodes give the modes.
func (rt *Runtime) standard(name string, args [][]Value, nodes []*tree.Node) error {
	switch name {
	case "print":
		var b strings.Builder
		for i, arg := range args {
			if err := rt.format(&b, arg, nodes[i].Mode); err != nil {
				return err
			}
		}
		_, err := io.WriteString(rt.out, b.String())
		return err
	case "newline":
		_, err := io.WriteString(rt.out, "\n")
		return err
	case "collect":
		rt.Collect()
		return nil
	case "heapused":
		return rt.push(newInt(int64(rt.heap.Top())))
	}
	internalf("unknown standard procedure %s", name)
	return nil
}

// format renders a value of mode m. Rows of characters print as text;
// other rows and structures print their elements separated by spaces.
func (rt *Runtime) format(w *strings.Builder, cells []Value, m *tree.Mode) error {
	switch m.Kind {
	case tree.RowMode:
		d, err := rt.descriptor(cells[0])
		if err != nil {
			return err
		}
		size := m.Sub.Size()
		first := true
		return d.Each(func(index []int64) error {
			off, _ := d.Offset(index)
			elem, err := rt.load(Ref{Mode: AddrHeap, Handle: d.Backing, Offset: off}, m.Sub)
			if err != nil {
				return err
			}
			if !first && m.Sub.Kind != tree.CharMode {
				w.WriteByte(' ')
			}
			first = false
			return rt.format(w, elem[:size], m.Sub)
		})

	case tree.StructMode:
		for i, f := range m.Fields {
			if i > 0 {
				w.WriteByte(' ')
			}
			if err := rt.format(w, cells[f.Offset:f.Offset+f.Mode.Size()], f.Mode); err != nil {
				return err
			}
		}
		return nil

	case tree.UnionMode:
		if !cells[0].Valid {
			return faultf(FaultUninitialised, "printing an uninitialised %s", m)
		}
		variant := m.Variants[cells[0].I64]
		return rt.format(w, cells[1:1+variant.Size()], variant)

	case tree.VoidMode:
		return nil
	}

	v := cells[0]
	if !v.Valid {
		return faultf(FaultUninitialised, "printing an uninitialised %s", m)
	}
	fmt.Fprint(w, v.String())
	return nil
}
