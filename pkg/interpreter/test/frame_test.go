package interpreter_test

import (
	"bytes"
	"errors"
	"testing"

	"genie/pkg/interpreter"
	"genie/pkg/tree"
)

// checkStaticChain follows static links from the innermost frame and
// expects every step to reach the next enclosing lexical level.
func checkStaticChain(t *testing.T, rt *interpreter.Runtime) {
	t.Helper()
	i := rt.Depth() - 1
	level := rt.Record(i).Level
	for steps := 0; steps < level-1; steps++ {
		link := rt.Record(i).StaticLink
		if link < 0 {
			t.Fatalf("static chain ends at level %d", rt.Record(i).Level)
		}
		if got, want := rt.Record(link).Level, rt.Record(i).Level-1; got != want {
			t.Fatalf("static link of level %d frame reaches level %d", rt.Record(i).Level, got)
		}
		i = link
	}
	if rt.Record(i).Level != 1 || rt.Record(i).StaticLink != -1 {
		t.Errorf("static chain must end at the program frame, ends at level %d", rt.Record(i).Level)
	}
}

func TestFrameBalanceAndStaticLinks(t *testing.T) {
	inner := tree.Block(
		tree.Var("y", tree.Formal(tree.Int), nil),
		tree.CallOf(tree.Ident("p"), tree.Lit(1)),
	)
	p := tree.Proc("p", tree.Void, []tree.Param{{Name: "n", Mode: tree.Int}}, inner)
	root := tree.Block(tree.Var("x", tree.Formal(tree.Int), nil), p)
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	routine := p.Children[0]

	rt := interpreter.New()
	chain := []*tree.Node{root, routine, inner, routine, inner, routine}
	var cursors []int
	for _, n := range chain {
		cursors = append(cursors, rt.FramePointer())
		if _, err := rt.OpenFrame(n); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		checkStaticChain(t, rt)
	}

	if got := rt.Record(rt.Depth() - 1).StaticLink; got != 0 {
		t.Errorf("a level 2 routine must link to the program frame, got %d", got)
	}
	if got := rt.Record(4).StaticLink; got != 3 {
		t.Errorf("the inner block must link to its own routine frame, got %d", got)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		rt.CloseFrame()
		if rt.FramePointer() != cursors[i] {
			t.Errorf("frame pointer %d after close, %d before open", rt.FramePointer(), cursors[i])
		}
	}
	if rt.Depth() != 0 {
		t.Errorf("expected no open frames, got %d", rt.Depth())
	}
}

func TestFramesBalanceAfterJumps(t *testing.T) {
	i := func() *tree.Node { return tree.Ident("i") }
	root := tree.Block(
		tree.Var("i", tree.Formal(tree.Int), tree.Lit(0)),
		tree.Labelled("top", tree.Block(
			tree.Var("local", tree.Formal(tree.Int), tree.Lit(1)),
			tree.Assign(i(), add(i(), tree.Deref(tree.Ident("local")))),
		)),
		tree.For("", nil, nil, nil, nil,
			tree.If(tree.Dyadic("<", i(), tree.Lit(4)), tree.Goto("top"), tree.Goto("done"))),
		tree.Labelled("done", show(i())),
	)
	out, rt, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "4" {
		t.Errorf("expected 4, got %q", out)
	}
	if rt.Depth() != 0 || rt.FramePointer() != 0 {
		t.Errorf("frames left open: depth %d, fp %d", rt.Depth(), rt.FramePointer())
	}
}

func TestRecursionOverflowsFrameStack(t *testing.T) {
	program := func() *tree.Node {
		return tree.Block(
			tree.Proc("down", tree.Int, []tree.Param{{Name: "n", Mode: tree.Int}},
				tree.CallOf(tree.Ident("down"), add(tree.Ident("n"), tree.Lit(1)))),
			show(tree.CallOf(tree.Ident("down"), tree.Lit(0))),
		)
	}

	tests := []struct {
		name string
		opts []interpreter.Option
		kind interpreter.FaultKind
	}{
		{"frame stack", []interpreter.Option{interpreter.WithFrameStack(256)}, interpreter.FaultStackOverflow},
		{"evaluation depth", []interpreter.Option{interpreter.WithMaxDepth(64)}, interpreter.FaultRecursion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rt, err := run(t, program(), tt.opts...)
			var fault *interpreter.Fault
			if !errors.As(err, &fault) || fault.Kind != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if rt.Depth() != 0 || rt.FramePointer() != 0 {
				t.Errorf("frames left open after the fault: depth %d, fp %d", rt.Depth(), rt.FramePointer())
			}
		})
	}
}

func TestJumpOutOfProcedure(t *testing.T) {
	root := tree.Block(
		tree.Proc("bail", tree.Void, nil, tree.Goto("done")),
		tree.CallOf(tree.Ident("bail")),
		show(tree.Lit("not reached")),
		tree.Labelled("done", show(tree.Lit("done"))),
	)
	out, rt, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "done" {
		t.Errorf("expected done, got %q", out)
	}
	if rt.Depth() != 0 || rt.FramePointer() != 0 {
		t.Errorf("frames left open: depth %d, fp %d", rt.Depth(), rt.FramePointer())
	}
}

func TestJumpOutOfNestedCalls(t *testing.T) {
	n := func() *tree.Node { return tree.Ident("n") }
	// bail recurses three frames deep, then jumps out of all of them
	bail := tree.Proc("bail", tree.Int, []tree.Param{{Name: "n", Mode: tree.Int}}, tree.Block(
		tree.Var("y", tree.Formal(tree.Int), n()),
		tree.If(tree.Dyadic(">", n(), tree.Lit(2)), tree.Goto("done"), nil),
		tree.CallOf(tree.Ident("bail"), add(n(), tree.Lit(1))),
	))
	inner := tree.Block(
		bail,
		tree.Var("x", tree.Formal(tree.Int), tree.Lit(7)),
		show(tree.Lit(1), add(tree.CallOf(tree.Ident("id"), tree.Lit(1)), tree.CallOf(tree.Ident("bail"), tree.Lit(0)))),
		show(tree.Lit("not reached")),
		tree.Labelled("done", show(tree.Lit("done "), tree.Ident("x"))),
	)
	root := tree.Block(
		tree.Proc("id", tree.Int, []tree.Param{{Name: "k", Mode: tree.Int}}, tree.Ident("k")),
		inner,
	)
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	var out bytes.Buffer
	rt := interpreter.New(interpreter.WithWriter(&out))
	if _, err := rt.OpenFrame(root); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rt.CloseFrame()
	if err := rt.Evaluate(root.Children[0]); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	depth, fp, sp := rt.Depth(), rt.FramePointer(), rt.StackPointer()

	if err := rt.Evaluate(inner); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if out.String() != "done 7" {
		t.Errorf("expected done 7, got %q", out.String())
	}
	if rt.Depth() != depth || rt.FramePointer() != fp || rt.StackPointer() != sp {
		t.Errorf("cursors not restored: depth %d/%d, fp %d/%d, sp %d/%d",
			rt.Depth(), depth, rt.FramePointer(), fp, rt.StackPointer(), sp)
	}
}

func TestLocalGeneratorsLiveInTheirFrame(t *testing.T) {
	root := tree.Block(
		tree.For("k", tree.Lit(1), nil, tree.Lit(3), nil, tree.Sequence(
			tree.Let("r", tree.RefTo(tree.Int), tree.Assign(tree.Gen(tree.Local, tree.Formal(tree.Int)), tree.Ident("k"))),
			show(tree.Ident("r")),
		)),
	)
	out, rt, err := run(t, root)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "123" {
		t.Errorf("expected 123, got %q", out)
	}
	if rt.FramePointer() != 0 {
		t.Errorf("local generators leaked %d frame cells", rt.FramePointer())
	}
}
