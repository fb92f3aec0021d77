package sema

import (
	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/diag"
)

// checkCond implements spec §4.3 step 3: every clause names a header field
// with an integer repr, every bound fits the field's bit width, and no
// range in the disjunction is empty.
func checkCond(c *ast.Cond, layout *HeaderLayout) *diag.Diagnostic {
	for _, clause := range c.Clauses {
		fl, ok := layout.ByName[clause.FieldName]
		if !ok {
			return diag.New(diag.UnknownField, clause.Span, "cond references unknown field %q", clause.FieldName)
		}
		if fl.Repr == ast.ReprSlice {
			return diag.New(diag.CondOnNonIntField, clause.Span, "cond field %q must have an integer repr, not &[u8]", clause.FieldName)
		}

		limit := fieldMax(fl.BitWidth)
		for _, b := range clause.Bounds {
			if b.HasLo && b.Lo > limit {
				return diag.New(diag.BitWidthMismatch, b.Span, "cond bound %d does not fit field %q's %d-bit width", b.Lo, clause.FieldName, fl.BitWidth)
			}
			if b.HasHi && b.Hi > limit {
				return diag.New(diag.BitWidthMismatch, b.Span, "cond bound %d does not fit field %q's %d-bit width", b.Hi, clause.FieldName, fl.BitWidth)
			}
			if b.HasLo && b.HasHi {
				hi := b.Hi
				if !b.Inclusive {
					if hi == 0 {
						return diag.New(diag.EmptyRange, b.Span, "cond range on %q is empty", clause.FieldName)
					}
					hi--
				}
				if b.Lo > hi {
					return diag.New(diag.EmptyRange, b.Span, "cond range on %q is empty", clause.FieldName)
				}
			}
		}
	}
	return nil
}

// fieldMax returns the largest value representable in bitWidth bits,
// saturating to ^uint64(0) once bitWidth reaches 64 to avoid overflowing
// the shift.
func fieldMax(bitWidth uint64) uint64 {
	if bitWidth >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitWidth) - 1
}
