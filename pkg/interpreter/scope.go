package interpreter

import (
	"genie/pkg/tree"
)

// scopeOf returns the youngest dynamic scope a value of mode m depends on:
// the frames its names point into and the environs of its routines.
func (rt *Runtime) scopeOf(cells []Value, m *tree.Mode) int {
	if !m.HasScope() {
		return 0
	}
	switch m.Kind {
	case tree.RefMode:
		if v := cells[0]; v.Valid {
			return v.Ref.Scope
		}
	case tree.ProcMode:
		if v := cells[0]; v.Valid && v.Proc != nil {
			return v.Proc.Scope
		}
	case tree.StructMode:
		scope := 0
		for _, f := range m.Fields {
			scope = max(scope, rt.scopeOf(cells[f.Offset:f.Offset+f.Mode.Size()], f.Mode))
		}
		return scope
	case tree.UnionMode:
		if tag := cells[0]; tag.Valid {
			variant := m.Variants[tag.I64]
			return rt.scopeOf(cells[1:1+variant.Size()], variant)
		}
	case tree.RowMode:
		d, err := rt.descriptor(cells[0])
		if err != nil {
			return 0
		}
		scope := 0
		size := m.Sub.Size()
		d.Each(func(index []int64) error {
			off, _ := d.Offset(index)
			block := rt.heap.Cells(d.Backing)
			scope = max(scope, rt.scopeOf(block[off:off+size], m.Sub))
			return nil
		})
		return scope
	}
	return 0
}

// checkScope faults when a value would outlive storage it refers to: its
// scope must not be younger than the destination's.
func (rt *Runtime) checkScope(cells []Value, m *tree.Mode, dest int, what string) error {
	if !m.HasScope() {
		return nil
	}
	if s := rt.scopeOf(cells, m); s > dest {
		return faultf(FaultScope, "%s of scope %d stored in scope %d", what, s, dest)
	}
	return nil
}
