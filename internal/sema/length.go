package sema

import (
	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/diag"
)

// slotNames indexes the three Length slots for the cycle-detection graph
// below; order doesn't matter beyond being stable.
var slotNames = [3]string{"header_len", "payload_len", "packet_len"}

// checkLength implements spec §4.3 step 2: every field an AlgExpr or direct
// reference names must exist in header and carry an integer (non-slice)
// repr, and the three slots may not form a reference cycle among
// themselves.
func checkLength(l *ast.Length, layout *HeaderLayout) (*Length, *diag.Diagnostic) {
	resolved := &Length{}
	slots := [3]*ResolvedLength{&resolved.HeaderLen, &resolved.PayloadLen, &resolved.PacketLen}
	fields := [3]*ast.LengthField{&l.HeaderLen, &l.PayloadLen, &l.PacketLen}

	// direct maps a slot index to the field name it points at directly, when
	// that slot is a bare LFDirect reference; used to build the cycle graph.
	var direct [3]string
	var hasDirect [3]bool

	for i, lf := range fields {
		slots[i].Kind = lf.Kind
		switch lf.Kind {
		case ast.LFNone, ast.LFDeferred:
			// nothing to resolve
		case ast.LFDirect:
			if err := checkLengthRef(lf.Direct, layout, lf.Span); err != nil {
				return nil, err
			}
			slots[i].Direct = lf.Direct
			direct[i] = lf.Direct
			hasDirect[i] = true
		case ast.LFExpr:
			if err := checkAlgExpr(lf.Expr, layout); err != nil {
				return nil, err
			}
			slots[i].Expr = lf.Expr
		}
	}

	// Cycle detection over the degenerate case spec §9 calls out: a slot
	// whose direct reference names a field that is itself the LFDirect
	// target of another slot which, transitively, points back at the first.
	// With only three slots the only possible cycle is slot i -> slot j ->
	// slot i, so a direct pairwise check suffices.
	for i := 0; i < 3; i++ {
		if !hasDirect[i] {
			continue
		}
		for j := 0; j < 3; j++ {
			if i == j || !hasDirect[j] {
				continue
			}
			if direct[i] == slotNames[j] && direct[j] == slotNames[i] {
				return nil, diag.New(diag.LengthCycle, fields[i].Span, "length slots %q and %q reference each other", slotNames[i], slotNames[j])
			}
		}
	}

	return resolved, nil
}

func checkLengthRef(name string, layout *HeaderLayout, span diag.Span) *diag.Diagnostic {
	fl, ok := layout.ByName[name]
	if !ok {
		return diag.New(diag.UnknownField, span, "length expression references unknown field %q", name)
	}
	if fl.Repr == ast.ReprSlice {
		return diag.New(diag.BitWidthMismatch, span, "length expression field %q must have an integer repr, not &[u8]", name)
	}
	return nil
}

// checkAlgExpr recursively validates that every reference leaf in e names
// an integer-repr field of layout.
func checkAlgExpr(e *ast.AlgExpr, layout *HeaderLayout) *diag.Diagnostic {
	if e == nil {
		return nil
	}
	if e.IsConst {
		return nil
	}
	if e.IsRef {
		return checkLengthRef(e.RefName, layout, e.Span)
	}
	if err := checkAlgExpr(e.Left, layout); err != nil {
		return err
	}
	return checkAlgExpr(e.Right, layout)
}

// isVariable implements spec §4.3's literal header-length classification:
// fixed iff header_len was never declared and no field anywhere in the
// three length slots is referenced by name (direct or via an expression).
// Note this is a syntactic test over the Length clause, not a judgment
// about whether the header's encoded byte length can vary; see DESIGN.md.
func isVariable(l *ast.Length, layout *HeaderLayout) bool {
	if l.HeaderLen.Kind != ast.LFNone {
		return true
	}
	refs := map[string]bool{}
	collectRefs(&l.HeaderLen, refs)
	collectRefs(&l.PayloadLen, refs)
	collectRefs(&l.PacketLen, refs)
	for name := range refs {
		if _, ok := layout.ByName[name]; ok {
			return true
		}
	}
	return false
}

func collectRefs(lf *ast.LengthField, out map[string]bool) {
	switch lf.Kind {
	case ast.LFDirect:
		out[lf.Direct] = true
	case ast.LFExpr:
		collectExprRefs(lf.Expr, out)
	}
}

func collectExprRefs(e *ast.AlgExpr, out map[string]bool) {
	if e == nil {
		return
	}
	if e.IsRef {
		out[e.RefName] = true
		return
	}
	collectExprRefs(e.Left, out)
	collectExprRefs(e.Right, out)
}
