package parser_test

import (
	"errors"
	"strings"
	"testing"

	"genie/pkg/color"
	"genie/pkg/parser"
	"genie/pkg/tree"
)

func init() {
	color.EnableColor(false)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"int", "INT"},
		{"REF INT", "REF INT"},
		{"ref ref bool", "REF REF BOOL"},
		{"[,] real", "[,] REAL"},
		{"flex [] char", "FLEX [] CHAR"},
		{"string", "STRING"},
		{"[] [] int", "[] [] INT"},
		{"struct (int a, b, real c)", "STRUCT (INT a, INT b, REAL c)"},
		{"struct (ref [] int row, proc (int) int f)", "STRUCT (REF [] INT row, PROC (INT) INT f)"},
		{"union (int, real)", "UNION (INT, REAL)"},
		{"proc (int, ref int) bool", "PROC (INT, REF INT) BOOL"},
		{"proc void", "PROC VOID"},
	}

	for _, test := range tests {
		m, err := parser.ParseMode(test.input, nil)
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.input, err)
			continue
		}
		if got := m.String(); got != test.expected {
			t.Errorf("%s: expected %s, got %s", test.input, test.expected, got)
		}
	}
}

func TestParseDeclarerBounds(t *testing.T) {
	d, err := parser.ParseDeclarer("[1:3, -2:n] int", nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(d.Bounds) != 2 || d.BoundCount() != 4 {
		t.Fatalf("expected two dimensions of bounds, got %d", len(d.Bounds))
	}
	if lo := d.Bounds[1].Lower; lo.Attr != tree.Denotation || lo.Literal != int64(-2) {
		t.Errorf("expected lower bound -2, got %s", lo)
	}
	if hi := d.Bounds[1].Upper; hi.Attr != tree.Identifier || hi.Name != "n" {
		t.Errorf("expected upper bound n, got %s", hi)
	}

	d, err = parser.ParseDeclarer("[5] int", nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if lo := d.Bounds[0].Lower; lo.Literal != int64(1) {
		t.Errorf("a single bound counts from 1, got lower %v", lo.Literal)
	}

	d, err = parser.ParseDeclarer("[1:2] [1:3] int", nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if d.Elem == nil || len(d.Elem.Bounds) != 1 || d.BoundCount() != 4 {
		t.Errorf("element bounds must be kept, got %+v", d)
	}

	d, err = parser.ParseDeclarer("struct (int tag, [1:4] int values)", nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(d.Fields) != 2 || d.Fields[0] != nil || d.Fields[1] == nil || d.BoundCount() != 2 {
		t.Errorf("field bounds must be kept per field, got %+v", d.Fields)
	}

	d, err = parser.ParseDeclarer("[] int", nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if d.BoundCount() != 0 || !tree.Equal(d.Mode, tree.RowOf(tree.Int, 1)) {
		t.Errorf("expected a formal row, got %s with %d bounds", d.Mode, d.BoundCount())
	}
}

func TestNamedModes(t *testing.T) {
	cell := &tree.Mode{Name: "cell"}
	modes := map[string]*tree.Mode{"cell": cell}

	m, err := parser.ParseMode("struct (int value, ref cell next)", modes)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if next := m.Fields[1].Mode; next.Kind != tree.RefMode || next.Sub != cell {
		t.Errorf("a named mode must resolve to its declaration, got %s", next)
	}

	// a name known as a mode starts a new field
	m, err = parser.ParseMode("struct (int a, cell b, c)", modes)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(m.Fields) != 3 || m.Fields[1].Mode != cell || m.Fields[2].Mode != cell {
		t.Errorf("unexpected fields %s", m)
	}
}

func TestDeclarerErrors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ref [1:3] int", "Bounds are not allowed in a formal declarer"},
		{"struct (int)", "Expected identifier"},
		{"struct (int ref)", "Cannot use reserved keyword as identifier"},
		{"[1:3 int", "Missing closing bracket"},
		{"union int", "Missing opening parenthesis"},
		{"union [int]", "Wrong bracket type"},
		{"proc (int bool", "Missing closing parenthesis"},
		{"thing", "Unknown mode 'thing'"},
		{"int int", "Unexpected 'int' after declarer"},
		{"[1:2, ] int", "Every dimension needs bounds"},
		{"flex int", "Expected '[' after flex"},
		{"int &", "Unexpected '&' after declarer"},
		{"", "Unexpected end of declarer"},
	}

	for _, test := range tests {
		_, err := parser.ParseDeclarer(test.input, nil)
		var syntax *parser.SyntaxError
		if !errors.As(err, &syntax) {
			t.Errorf("%q: expected a syntax error, got %v", test.input, err)
			continue
		}
		if !strings.Contains(syntax.Messages[0], test.expected) {
			t.Errorf("%q: expected %q, got %q", test.input, test.expected, syntax.Messages[0])
		}
		if !strings.Contains(syntax.Messages[0], "Line: 1") {
			t.Errorf("%q: message must carry its position: %q", test.input, syntax.Messages[0])
		}
	}
}
