package sema

import (
	"sort"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/diag"
)

// checkGroup implements spec §4.3 step 4: every member must already be a
// checked Packet with a cond, every member's cond must discriminate on the
// same field at the same bit offset and width, and the members' ranges on
// that field may not overlap.
func checkGroup(g *ast.PacketGroup, byName map[string]*CheckedPacket) (*CheckedGroup, *diag.Diagnostic) {
	cg := &CheckedGroup{Name: g.Name, EnableIter: g.EnableIter}

	var discName string
	var discOffset, discWidth uint64
	haveDisc := false

	type ranged struct {
		lo, hi uint64 // inclusive, resolved bounds for overlap checking
	}
	var allRanges []ranged

	for _, memberName := range g.Members {
		member, ok := byName[memberName]
		if !ok {
			return nil, diag.New(diag.UnknownGroupMember, g.Span, "group %q references unknown member %q", g.Name, memberName)
		}
		if member.Cond == nil || len(member.Cond.Clauses) == 0 {
			return nil, diag.New(diag.UnknownGroupMember, g.Span, "group member %q has no cond to discriminate on", memberName)
		}

		clause := member.Cond.Clauses[0]
		fl, ok := member.Header.ByName[clause.FieldName]
		if !ok {
			return nil, diag.New(diag.UnknownField, g.Span, "group member %q cond references unknown field %q", memberName, clause.FieldName)
		}

		if !haveDisc {
			discName, discOffset, discWidth = clause.FieldName, fl.BitOffset, fl.BitWidth
			haveDisc = true
		} else if clause.FieldName != discName || fl.BitOffset != discOffset || fl.BitWidth != discWidth {
			return nil, diag.New(diag.GroupOverlap, g.Span, "group member %q discriminates on %q at a different offset than the rest of group %q", memberName, clause.FieldName, g.Name)
		}

		for _, b := range clause.Bounds {
			allRanges = append(allRanges, ranged{lo: boundLo(b), hi: boundHi(b, discWidth)})
		}

		cg.Members = append(cg.Members, member)
	}

	if g.EnableIter {
		allVariable, allFixedSameLen := true, true
		fixedLen, haveFixedLen := uint64(0), false
		for _, m := range cg.Members {
			if m.Variable {
				allFixedSameLen = false
				continue
			}
			allVariable = false
			n := m.Header.ByteLength()
			if !haveFixedLen {
				fixedLen, haveFixedLen = n, true
			} else if n != fixedLen {
				allFixedSameLen = false
			}
		}
		// spec §4.3 step 4: enable_iter requires either every member to
		// share one common fixed header length, or every member to be
		// individually iter-eligible (Variable).
		if !allVariable && !allFixedSameLen {
			return nil, diag.New(diag.IterNotPermitted, g.Span, "group %q enables iteration but its members are neither all individually variable-length nor all sharing one fixed header length", g.Name)
		}
	}

	sort.Slice(allRanges, func(i, j int) bool { return allRanges[i].lo < allRanges[j].lo })
	for i := 1; i < len(allRanges); i++ {
		if allRanges[i].lo <= allRanges[i-1].hi {
			return nil, diag.New(diag.GroupOverlap, g.Span, "group %q has overlapping discriminator ranges on %q", g.Name, discName)
		}
	}

	cg.Discriminator = []DiscriminatorField{{Name: discName, BitOffset: discOffset, BitWidth: discWidth}}
	return cg, nil
}

func boundLo(b ast.CondBounds) uint64 {
	if b.HasLo {
		return b.Lo
	}
	return 0
}

func boundHi(b ast.CondBounds, bitWidth uint64) uint64 {
	if !b.HasHi {
		return fieldMax(bitWidth)
	}
	if b.Inclusive {
		return b.Hi
	}
	if b.Hi == 0 {
		return 0
	}
	return b.Hi - 1
}
