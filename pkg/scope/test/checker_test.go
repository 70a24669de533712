package scope_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"genie/pkg/interpreter"
	"genie/pkg/scope"
	"genie/pkg/tree"
)

func check(t *testing.T, root *tree.Node) []scope.Diagnostic {
	t.Helper()
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	return scope.Check(root)
}

func kinds(diags []scope.Diagnostic) []scope.Kind {
	var ks []scope.Kind
	for _, d := range diags {
		ks = append(ks, d.Kind)
	}
	return ks
}

func refInt() *tree.Declarer {
	return tree.Formal(tree.RefTo(tree.Int))
}

func loc() *tree.Node {
	return tree.Gen(tree.Local, tree.Formal(tree.Int))
}

func heap() *tree.Node {
	return tree.Gen(tree.Heap, tree.Formal(tree.Int))
}

// nest wraps unit in depth closed clauses.
func nest(depth int, unit *tree.Node) *tree.Node {
	for i := 0; i < depth; i++ {
		unit = tree.Block(unit)
	}
	return unit
}

func TestStoringLocalNamesIntoOuterNames(t *testing.T) {
	for depth := 0; depth <= 3; depth++ {
		for _, placement := range []tree.Placement{tree.Local, tree.Heap} {
			gen := loc()
			if placement == tree.Heap {
				gen = heap()
			}
			root := tree.Block(
				tree.Var("r", refInt(), nil),
				nest(depth, tree.Assign(tree.Ident("r"), gen)),
			)
			diags := check(t, root)

			flagged := placement == tree.Local && depth > 0
			if got := len(diags) > 0; got != flagged {
				t.Errorf("%s generator %d blocks deep: flagged %v, diagnostics %v", placement, depth, got, diags)
			}
			for _, d := range diags {
				if d.Kind != scope.Escape {
					t.Errorf("expected an escape, got %v", d)
				}
			}
		}
	}
}

func TestCheckerFindings(t *testing.T) {
	flex := &tree.Declarer{
		Mode:   tree.FlexRowOf(tree.Int, 1),
		Bounds: []tree.Bound{{Lower: tree.Lit(1), Upper: tree.Lit(3)}},
	}
	element := func() *tree.Node { return tree.SliceOf(tree.Ident("f"), tree.Lit(1)) }

	tests := []struct {
		name string
		root *tree.Node
		want []scope.Kind
	}{
		{
			"same level",
			tree.Block(
				tree.Var("y", tree.Formal(tree.Int), nil),
				tree.Var("r", refInt(), tree.Ident("y")),
			),
			nil,
		},
		{
			"inner variable into outer name",
			tree.Block(
				tree.Var("r", refInt(), nil),
				tree.Block(
					tree.Var("y", tree.Formal(tree.Int), nil),
					tree.Assign(tree.Ident("r"), tree.Ident("y")),
				),
			),
			[]scope.Kind{scope.Escape},
		},
		{
			"through an intermediate variable",
			tree.Block(
				tree.Var("r", refInt(), nil),
				tree.Block(
					tree.Var("y", tree.Formal(tree.Int), nil),
					tree.Var("p", refInt(), tree.Ident("y")),
					tree.Assign(tree.Ident("r"), tree.Ident("p")),
				),
			),
			[]scope.Kind{scope.Escape},
		},
		{
			"outer name kept in inner variable",
			tree.Block(
				tree.Var("x", tree.Formal(tree.Int), nil),
				tree.Block(
					tree.Var("p", refInt(), tree.Ident("x")),
					tree.Assign(tree.Ident("p"), tree.Ident("x")),
				),
			),
			nil,
		},
		{
			"identity bound to a block's local",
			tree.Block(
				tree.Let("r", tree.RefTo(tree.Int), tree.Block(
					tree.Var("y", tree.Formal(tree.Int), nil),
					tree.Ident("y"),
				)),
			),
			[]scope.Kind{scope.Escape},
		},
		{
			"heap object cannot hold a local name",
			tree.Block(
				tree.Let("cell", tree.RefTo(tree.RefTo(tree.Int)), tree.Gen(tree.Heap, refInt())),
				tree.Assign(tree.Ident("cell"), loc()),
			),
			[]scope.Kind{scope.Escape},
		},
		{
			"every finding is reported",
			tree.Block(
				tree.Var("r", refInt(), nil),
				tree.Block(
					tree.Assign(tree.Ident("r"), loc()),
					tree.Assign(tree.Ident("r"), loc()),
				),
			),
			[]scope.Kind{scope.Escape, scope.Escape},
		},
		{
			"identity of a flexible row element",
			tree.Block(
				tree.Var("f", flex, nil),
				tree.Let("e", tree.RefTo(tree.Int), element()),
			),
			[]scope.Kind{scope.Transient},
		},
		{
			"flexible row element as an argument",
			tree.Block(
				tree.Var("f", flex, nil),
				tree.Proc("zero", tree.Void, []tree.Param{{Name: "n", Mode: tree.RefTo(tree.Int)}},
					tree.Assign(tree.Ident("n"), tree.Lit(0))),
				tree.CallOf(tree.Ident("zero"), element()),
			),
			[]scope.Kind{scope.Transient},
		},
		{
			"assigning to a flexible row element",
			tree.Block(
				tree.Var("f", flex, nil),
				tree.Assign(element(), tree.Lit(7)),
			),
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := check(t, tt.root)
			got := kinds(diags)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, diags)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("finding %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestStoresSeenAgainThroughLoops(t *testing.T) {
	n := func() *tree.Node { return tree.Ident("n") }
	tests := []struct {
		name  string
		build func(leak *tree.Node) *tree.Node
	}{
		{"backward jump", func(leak *tree.Node) *tree.Node {
			return tree.Block(
				tree.Var("g", refInt(), nil),
				tree.Block(
					tree.Var("v", refInt(), heap()),
					tree.Var("n", tree.Formal(tree.Int), tree.Lit(0)),
					tree.Labelled("top", leak),
					tree.Assign(tree.Ident("v"), loc()),
					tree.Assign(n(), add(n(), tree.Lit(1))),
					tree.If(tree.Dyadic("<", n(), tree.Lit(2)), tree.Goto("top"), nil),
				),
			)
		}},
		{"loop", func(leak *tree.Node) *tree.Node {
			return tree.Block(
				tree.Var("g", refInt(), nil),
				tree.Block(
					tree.Var("v", refInt(), heap()),
					tree.Let("l", tree.RefTo(tree.Int), loc()),
					tree.For("k", tree.Lit(1), nil, tree.Lit(2), nil, tree.Sequence(
						leak,
						tree.Assign(tree.Ident("v"), tree.Ident("l")),
					)),
				),
			)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leak := tree.Assign(tree.Ident("g"), tree.Ident("v"))
			diags := check(t, tt.build(leak))
			if len(diags) != 1 || diags[0].Kind != scope.Escape || diags[0].Node != leak {
				t.Fatalf("expected one escape at g := v, got %v", diags)
			}
		})
	}
}

func TestRoutineResults(t *testing.T) {
	ref := tree.RefTo(tree.Int)
	tests := []struct {
		name string
		body *tree.Node
		bad  bool
	}{
		{"local generator", loc(), true},
		{"local variable", tree.Block(tree.Var("x", tree.Formal(tree.Int), nil), tree.Ident("x")), true},
		{"heap generator", heap(), false},
		{"heap name held locally", tree.Block(
			tree.Let("x", ref, heap()),
			tree.Ident("x"),
		), false},
		{"global variable", tree.Ident("g"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tree.Block(
				tree.Var("g", tree.Formal(tree.Int), nil),
				tree.Proc("leak", ref, nil, tt.body),
				tree.CallOf(tree.Ident("leak")),
			)
			diags := check(t, root)
			if tt.bad && (len(diags) != 1 || diags[0].Kind != scope.Escape) {
				t.Fatalf("expected one escape, got %v", diags)
			}
			if !tt.bad && len(diags) > 0 {
				t.Fatalf("expected no findings, got %v", diags)
			}
			if tt.bad && !strings.Contains(diags[0].Error(), "routine") {
				t.Errorf("unexpected message %q", diags[0].Error())
			}
		})
	}
}

func TestRoutineScopeIsYoungestNameUsed(t *testing.T) {
	pure := tree.Proc("pure", tree.Int, nil, tree.Lit(1))
	global := tree.Proc("global", tree.Int, nil, tree.Ident("g"))
	self := tree.Proc("self", tree.Int, []tree.Param{{Name: "n", Mode: tree.Int}},
		tree.CallOf(tree.Ident("self"), tree.Ident("n")))
	inner := tree.Proc("inner", tree.Int, nil, add(tree.Ident("g"), tree.Ident("l")))
	jumper := tree.Proc("jumper", tree.Void, nil, tree.Goto("end"))
	root := tree.Block(
		tree.Var("g", tree.Formal(tree.Int), tree.Lit(1)),
		pure, global, self, jumper,
		tree.Block(
			tree.Var("l", tree.Formal(tree.Int), tree.Lit(2)),
			inner,
		),
		tree.Labelled("end", tree.SkipUnit(nil)),
	)
	if diags := check(t, root); len(diags) > 0 {
		t.Fatalf("unexpected findings %v", diags)
	}

	tests := []struct {
		decl *tree.Node
		want int
	}{
		{pure, tree.PrimalScope},
		{global, 1},
		{self, 1},
		{inner, 2},
		{jumper, 1},
	}
	for _, tt := range tests {
		if got := tt.decl.Symbol.Scope; got != tt.want {
			t.Errorf("%s: expected scope %d, got %d", tt.decl.Symbol.Name, tt.want, got)
		}
	}
}

func add(l, r *tree.Node) *tree.Node {
	return tree.Dyadic("+", l, r)
}

func TestCheckedProcedureOutlivesItsBlock(t *testing.T) {
	build := func() *tree.Node {
		return tree.Block(
			tree.Var("g", tree.Formal(tree.ProcOf(tree.Int)), nil),
			tree.Var("x", tree.Formal(tree.Int), tree.Lit(5)),
			tree.Block(
				tree.Proc("get", tree.Int, nil, tree.Ident("x")),
				tree.Assign(tree.Ident("g"), tree.Ident("get")),
			),
			tree.CallOf(tree.Ident("print"), tree.CallOf(tree.Ident("g"))),
		)
	}
	run := func(root *tree.Node) (string, error) {
		var out bytes.Buffer
		err := interpreter.New(interpreter.WithWriter(&out)).Run(context.Background(), root)
		return out.String(), err
	}

	checked := build()
	if diags := check(t, checked); len(diags) > 0 {
		t.Fatalf("unexpected findings %v", diags)
	}
	out, err := run(checked)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "5" {
		t.Errorf("expected 5, got %q", out)
	}

	// without static scopes the procedure is as young as its environ
	unchecked := build()
	if err := tree.Bind(unchecked); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	_, err = run(unchecked)
	var fault *interpreter.Fault
	if !errors.As(err, &fault) || fault.Kind != interpreter.FaultScope {
		t.Errorf("expected a scope fault, got %v", err)
	}
}

func TestDiagnosticsCarryLines(t *testing.T) {
	assign := tree.Assign(tree.Ident("r"), loc())
	assign.Line = 7
	root := tree.Block(tree.Var("r", refInt(), nil), tree.Block(assign))
	diags := check(t, root)
	if len(diags) != 1 {
		t.Fatalf("expected one finding, got %v", diags)
	}
	if d := diags[0]; d.Line != 7 || d.Node != assign || !strings.HasPrefix(d.Error(), "line 7: ") {
		t.Errorf("unexpected diagnostic %q", d.Error())
	}
}
