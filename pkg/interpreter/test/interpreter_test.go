package interpreter_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"genie/pkg/interpreter"
	"genie/pkg/tree"
)

func run(t *testing.T, root *tree.Node, opts ...interpreter.Option) (string, *interpreter.Runtime, error) {
	t.Helper()
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	var out bytes.Buffer
	rt := interpreter.New(append([]interpreter.Option{interpreter.WithWriter(&out)}, opts...)...)
	err := rt.Run(context.Background(), root)
	return out.String(), rt, err
}

func show(args ...*tree.Node) *tree.Node {
	return tree.CallOf(tree.Ident("print"), args...)
}

func add(l, r *tree.Node) *tree.Node {
	return tree.Dyadic("+", l, r)
}

func intRow(bounds ...int) *tree.Declarer {
	d := &tree.Declarer{Mode: tree.RowOf(tree.Int, len(bounds)/2)}
	for i := 0; i < len(bounds); i += 2 {
		d.Bounds = append(d.Bounds, tree.Bound{Lower: tree.Lit(bounds[i]), Upper: tree.Lit(bounds[i+1])})
	}
	return d
}

func display(values ...int) *tree.Node {
	units := make([]*tree.Node, len(values))
	for i, v := range values {
		units[i] = tree.Lit(v)
	}
	return tree.Display(tree.RowOf(tree.Int, 1), units...)
}

func TestAssignAndAdd(t *testing.T) {
	root := tree.Block(
		tree.Var("x", tree.Formal(tree.Int), nil),
		tree.Assign(tree.Ident("x"), tree.Lit(5)),
		tree.Assign(tree.Ident("x"), add(tree.Ident("x"), tree.Lit(3))),
		show(tree.Ident("x")),
	)
	out, rt, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "8" {
		t.Errorf("expected 8, got %q", out)
	}
	if rt.Depth() != 0 || rt.FramePointer() != 0 {
		t.Errorf("frames left open: depth %d, fp %d", rt.Depth(), rt.FramePointer())
	}
}

func TestPrograms(t *testing.T) {
	point := tree.StructOf(tree.Field{Name: "x", Mode: tree.Int}, tree.Field{Name: "y", Mode: tree.Int})
	number := tree.UnionOf(tree.Int, tree.Real)
	n := func() *tree.Node { return tree.Ident("n") }

	tests := []struct {
		name    string
		program func() *tree.Node
		want    string
	}{
		{"arithmetic", func() *tree.Node {
			return tree.Block(show(
				tree.Dyadic("%", tree.Lit(7), tree.Lit(2)), tree.Lit(" "),
				tree.Dyadic("MOD", tree.Monad("-", tree.Lit(7)), tree.Lit(3)), tree.Lit(" "),
				tree.Dyadic("/", tree.Lit(7), tree.Lit(2)), tree.Lit(" "),
				tree.Dyadic("**", tree.Lit(2), tree.Lit(10)), tree.Lit(" "),
				tree.Dyadic("<", tree.Lit(1.5), tree.Lit(2)), tree.Lit(" "),
				tree.Monad("ABS", tree.Lit('A')),
			))
		}, "3 2 3.5 1024 TRUE 65"},
		{"conditional", func() *tree.Node {
			return tree.Block(tree.If(tree.Dyadic(">", tree.Lit(2), tree.Lit(1)), show(tree.Lit("yes")), show(tree.Lit("no"))))
		}, "yes"},
		{"case", func() *tree.Node {
			return tree.Block(
				tree.CaseOf(tree.Lit(2), show(tree.Lit("out")), show(tree.Lit("one")), show(tree.Lit("two"))),
				tree.CaseOf(tree.Lit(5), show(tree.Lit("out")), show(tree.Lit("one"))),
			)
		}, "twoout"},
		{"counting loop", func() *tree.Node {
			return tree.Block(
				tree.Var("s", tree.Formal(tree.Int), tree.Lit(0)),
				tree.For("i", tree.Lit(1), nil, tree.Lit(10), nil,
					tree.Assign(tree.Ident("s"), add(tree.Ident("s"), tree.Ident("i")))),
				show(tree.Ident("s")),
			)
		}, "55"},
		{"downward loop", func() *tree.Node {
			return tree.Block(
				tree.For("i", tree.Lit(3), tree.Lit(-1), tree.Lit(1), nil, show(tree.Ident("i"))),
			)
		}, "321"},
		{"while loop", func() *tree.Node {
			return tree.Block(
				tree.Var("n", tree.Formal(tree.Int), tree.Lit(0)),
				tree.For("", nil, nil, nil, tree.Dyadic("<", n(), tree.Lit(5)),
					tree.Assign(n(), add(n(), tree.Lit(1)))),
				show(n()),
			)
		}, "5"},
		{"rows", func() *tree.Node {
			return tree.Block(
				tree.Var("a", intRow(1, 3), display(1, 2, 3)),
				tree.Assign(tree.SliceOf(tree.Ident("a"), tree.Lit(2)), tree.Lit(20)),
				show(tree.Ident("a"), tree.Lit(";"),
					tree.SliceOf(tree.Ident("a"), tree.Trim(tree.Lit(2), tree.Lit(3))), tree.Lit(";"),
					tree.Monad("UPB", tree.Ident("a"))),
			)
		}, "1 20 3;20 3;3"},
		{"flexible rows take new bounds", func() *tree.Node {
			flex := &tree.Declarer{Mode: tree.FlexRowOf(tree.Int, 1), Bounds: []tree.Bound{{Lower: tree.Lit(1), Upper: tree.Lit(0)}}}
			return tree.Block(
				tree.Var("f", flex, nil),
				tree.Assign(tree.Ident("f"), tree.Display(tree.FlexRowOf(tree.Int, 1), tree.Lit(4), tree.Lit(5))),
				show(tree.Ident("f"), tree.Lit(";"), tree.Monad("UPB", tree.Ident("f"))),
			)
		}, "4 5;2"},
		{"strings", func() *tree.Node {
			return tree.Block(
				tree.Var("s", tree.Formal(tree.String), tree.Lit("hello")),
				show(tree.Ident("s"), tree.Lit(' '), tree.SliceOf(tree.Ident("s"), tree.Lit(2))),
			)
		}, "hello e"},
		{"structures", func() *tree.Node {
			return tree.Block(
				tree.Var("p", tree.Formal(point), tree.Display(point, tree.Lit(1), tree.Lit(2))),
				tree.Assign(tree.Select("x", tree.Ident("p")), tree.Lit(10)),
				show(tree.Select("y", tree.Ident("p")), tree.Lit(" "), tree.Ident("p")),
			)
		}, "2 10 2"},
		{"conformity", func() *tree.Node {
			return tree.Block(
				tree.Var("u", tree.Formal(number), tree.Unite(number, tree.Lit(1.5))),
				tree.Conform(tree.Ident("u"), nil,
					tree.When(tree.Int, "i", show(tree.Lit("int"))),
					tree.When(tree.Real, "r", show(tree.Lit("real "), tree.Ident("r"))),
				),
				tree.Assign(tree.Ident("u"), tree.Unite(number, tree.Lit(4))),
				tree.Conform(tree.Ident("u"), show(tree.Lit(" other")),
					tree.When(tree.Real, "", show(tree.Lit(" real"))),
				),
			)
		}, "real 1.5 other"},
		{"procedures", func() *tree.Node {
			return tree.Block(
				tree.Proc("sq", tree.Int, []tree.Param{{Name: "n", Mode: tree.Int}}, tree.Dyadic("*", n(), n())),
				show(tree.CallOf(tree.Ident("sq"), tree.Lit(7))),
			)
		}, "49"},
		{"recursion", func() *tree.Node {
			body := tree.If(tree.Dyadic("<=", n(), tree.Lit(1)),
				tree.Lit(1),
				tree.Dyadic("*", n(), tree.CallOf(tree.Ident("fact"), tree.Dyadic("-", n(), tree.Lit(1)))))
			return tree.Block(
				show(tree.CallOf(tree.Ident("fact"), tree.Lit(10))),
				tree.Proc("fact", tree.Int, []tree.Param{{Name: "n", Mode: tree.Int}}, body),
			)
		}, "3628800"},
		{"partial parametrisation", func() *tree.Node {
			params := []tree.Param{{Name: "a", Mode: tree.Int}, {Name: "b", Mode: tree.Int}}
			return tree.Block(
				tree.Proc("sub", tree.Int, params, tree.Dyadic("-", tree.Ident("a"), tree.Ident("b"))),
				tree.Let("dec", tree.ProcOf(tree.Int, tree.Int), tree.CallOf(tree.Ident("sub"), tree.HoleArg(), tree.Lit(1))),
				show(tree.CallOf(tree.Ident("dec"), tree.Lit(43))),
			)
		}, "42"},
		{"goto", func() *tree.Node {
			i := func() *tree.Node { return tree.Ident("i") }
			return tree.Block(
				tree.Var("i", tree.Formal(tree.Int), tree.Lit(0)),
				tree.Labelled("again", tree.Assign(i(), add(i(), tree.Lit(1)))),
				tree.If(tree.Dyadic("<", i(), tree.Lit(3)), tree.Goto("again"), nil),
				show(i()),
			)
		}, "3"},
		{"identity relation", func() *tree.Node {
			ref := tree.RefTo(tree.Int)
			return tree.Block(
				tree.Var("x", tree.Formal(tree.Int), tree.Lit(1)),
				tree.Let("r", ref, tree.Ident("x")),
				tree.Var("nothing", tree.Formal(ref), tree.NilRef(nil)),
				show(tree.Is(tree.Ident("r"), tree.Ident("x"), false), tree.Lit(" "),
					tree.Is(tree.Deref(tree.Ident("nothing")), tree.NilRef(nil), false), tree.Lit(" "),
					tree.Is(tree.Ident("r"), tree.Deref(tree.Ident("nothing")), false)),
			)
		}, "TRUE TRUE FALSE"},
		{"heap generators", func() *tree.Node {
			return tree.Block(
				tree.Let("r", tree.RefTo(tree.Int), tree.Assign(tree.Gen(tree.Heap, tree.Formal(tree.Int)), tree.Lit(5))),
				tree.Assign(tree.Ident("r"), add(tree.Ident("r"), tree.Lit(1))),
				show(tree.Ident("r")),
			)
		}, "6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.program())
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("expected %q, got %q", tt.want, out)
			}
		})
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name    string
		program func() *tree.Node
		kind    interpreter.FaultKind
	}{
		{"division", func() *tree.Node {
			return tree.Block(show(tree.Dyadic("%", tree.Lit(1), tree.Lit(0))))
		}, interpreter.FaultDivision},
		{"index", func() *tree.Node {
			return tree.Block(
				tree.Var("a", intRow(1, 3), nil),
				show(tree.SliceOf(tree.Ident("a"), tree.Lit(4))),
			)
		}, interpreter.FaultIndex},
		{"nil", func() *tree.Node {
			return tree.Block(
				tree.Var("r", tree.Formal(tree.RefTo(tree.Int)), tree.NilRef(nil)),
				show(tree.Ident("r")),
			)
		}, interpreter.FaultNil},
		{"uninitialised", func() *tree.Node {
			return tree.Block(
				tree.Var("x", tree.Formal(tree.Int), nil),
				show(tree.Ident("x")),
			)
		}, interpreter.FaultUninitialised},
		{"bounds", func() *tree.Node {
			return tree.Block(
				tree.Var("a", intRow(1, 3), nil),
				tree.Assign(tree.Ident("a"), display(1, 2)),
			)
		}, interpreter.FaultBounds},
		{"local name escapes its block", func() *tree.Node {
			return tree.Block(
				tree.Var("r", tree.Formal(tree.RefTo(tree.Int)), nil),
				tree.Block(
					tree.Var("y", tree.Formal(tree.Int), tree.Lit(1)),
					tree.Assign(tree.Ident("r"), tree.Ident("y")),
				),
			)
		}, interpreter.FaultScope},
		{"routine escapes its environ", func() *tree.Node {
			return tree.Block(
				tree.Var("f", tree.Formal(tree.ProcOf(tree.Int)), nil),
				tree.Block(
					tree.Var("y", tree.Formal(tree.Int), tree.Lit(3)),
					tree.Assign(tree.Ident("f"), tree.Routine(tree.Int, nil, tree.Ident("y"))),
				),
			)
		}, interpreter.FaultScope},
		{"result refers to the routine's frame", func() *tree.Node {
			body := tree.Block(
				tree.Var("x", tree.Formal(tree.Int), tree.Lit(1)),
				tree.Ident("x"),
			)
			return tree.Block(
				tree.Proc("leak", tree.RefTo(tree.Int), nil, body),
				show(tree.CallOf(tree.Ident("leak"))),
			)
		}, interpreter.FaultScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.program())
			var fault *interpreter.Fault
			if !errors.As(err, &fault) {
				t.Fatalf("expected a fault, got %v", err)
			}
			if fault.Kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, fault)
			}
		})
	}
}

func TestHeapNameMayLeaveRoutine(t *testing.T) {
	root := tree.Block(
		tree.Proc("fresh", tree.RefTo(tree.Int), nil,
			tree.Assign(tree.Gen(tree.Heap, tree.Formal(tree.Int)), tree.Lit(7))),
		tree.Var("r", tree.Formal(tree.RefTo(tree.Int)), nil),
		tree.Block(tree.Assign(tree.Ident("r"), tree.CallOf(tree.Ident("fresh")))),
		show(tree.Ident("r")),
	)
	out, _, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "7" {
		t.Errorf("expected 7, got %q", out)
	}
}

func TestFaultCarriesLine(t *testing.T) {
	division := tree.Dyadic("/", tree.Lit(1), tree.Lit(0))
	division.Line = 12
	_, _, err := run(t, tree.Block(show(division)))
	if err == nil || !strings.HasPrefix(err.Error(), "line 12:") {
		t.Errorf("expected a fault at line 12, got %v", err)
	}
}

func TestParallelClause(t *testing.T) {
	root := tree.Block(
		tree.Var("x", tree.Formal(tree.Int), tree.Lit(0)),
		tree.Par(
			show(tree.Lit("a")),
			show(tree.Lit("b")),
			tree.Assign(tree.Ident("x"), tree.Lit(1)),
		),
		show(tree.Ident("x")),
	)
	out, _, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(out) != 3 || !strings.Contains(out, "a") || !strings.Contains(out, "b") || !strings.HasSuffix(out, "1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCancelledRun(t *testing.T) {
	root := tree.Block(tree.For("", nil, nil, nil, nil, tree.SkipUnit(nil)))
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := interpreter.New().Run(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}
