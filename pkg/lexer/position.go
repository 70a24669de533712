package lexer

import "fmt"

// Position locates a token within the declarer text. Line is relative to
// the start of the text; callers embedding it in a larger file add their
// own offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Returns a string representation of the Position
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Creates a new Position instance
func NewPosition(line, column, offset int) Position {
	return Position{
		Line:   line,
		Column: column,
		Offset: offset,
	}
}
