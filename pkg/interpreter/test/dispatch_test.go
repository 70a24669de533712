package interpreter_test

import (
	"bytes"
	"context"
	"testing"

	"genie/pkg/interpreter"
	"genie/pkg/tree"
)

func TestSpecialisedPathMatchesGeneric(t *testing.T) {
	a := func(index *tree.Node) *tree.Node { return tree.SliceOf(tree.Ident("a"), index) }
	i := func() *tree.Node { return tree.Ident("i") }
	s := func() *tree.Node { return tree.Ident("s") }

	square := tree.Assign(a(i()), tree.Dyadic("*", i(), i()))
	total := tree.Assign(s(), add(s(), a(i())))
	root := tree.Block(
		tree.Var("a", intRow(1, 10), nil),
		tree.Var("s", tree.Formal(tree.Int), tree.Lit(0)),
		tree.Let("limit", tree.Int, tree.Lit(10)),
		tree.For("i", tree.Lit(1), nil, tree.Ident("limit"), nil, square),
		tree.For("i", tree.Lit(1), nil, tree.Ident("limit"), nil, total),
		show(s(), tree.Lit(" "), a(tree.Lit(3)), tree.Lit(" "),
			tree.Monad("-", s()), tree.Lit(" "), tree.Monad("ABS", tree.Monad("-", s()))),
	)
	if err := tree.Bind(root); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	runWith := func(opts ...interpreter.Option) string {
		var out bytes.Buffer
		rt := interpreter.New(append(opts, interpreter.WithWriter(&out))...)
		if err := rt.Run(context.Background(), root); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		return out.String()
	}

	first := runWith()
	if first != "385 9 -385 385" {
		t.Fatalf("unexpected output %q", first)
	}

	if got := square.Children[0].Dispatch.Kind; got != tree.DispatchSliceFrameRow {
		t.Errorf("slice of a frame row must specialise, got %s", got)
	}
	if got := total.Dispatch.Kind; got != tree.DispatchAssignFrameScalar {
		t.Errorf("scalar assignation must specialise, got %s", got)
	}

	generic := runWith(interpreter.WithoutSpecialization())
	again := runWith()
	if generic != first || again != first {
		t.Errorf("paths disagree: specialised %q, generic %q, respecialised %q", first, generic, again)
	}
}

func TestRefineIsForwardOnly(t *testing.T) {
	n := tree.Lit(1)
	if !n.Dispatch.Refine(tree.DispatchConstant, nil, n) {
		t.Fatal("first refinement must take effect")
	}
	if n.Dispatch.Refine(tree.DispatchFormula, nil, n) {
		t.Error("a specialised slot must keep its strategy")
	}
	if n.Dispatch.Kind != tree.DispatchConstant {
		t.Errorf("expected constant dispatch, got %s", n.Dispatch.Kind)
	}
}

func TestWithoutSpecializationLeavesSlotsGeneric(t *testing.T) {
	sum := add(tree.Lit(1), tree.Lit(2))
	root := tree.Block(show(sum))
	out, _, err := run(t, root, interpreter.WithoutSpecialization())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "3" {
		t.Errorf("expected 3, got %q", out)
	}
	if sum.Dispatch.Specialised() {
		t.Errorf("formula specialised to %s", sum.Dispatch.Kind)
	}
}
