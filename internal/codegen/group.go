package codegen

import (
	"fmt"
	"strings"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

// writeGroup emits a tagged-union dispatch over g's members: a marker
// interface each member implements, and a Parse function that reads the
// shared discriminator once and delegates to the matching member's parser.
// This is the Go rendering of spec §4.4's "sum-type representation ... a
// single parse that reads the discriminator once", using an interface
// instead of an enum since Go has no sum types.
func writeGroup(b *strings.Builder, g *sema.CheckedGroup) {
	fmt.Fprintf(b, "// %s is the tagged union of %s.\n", g.Name, memberList(g))
	if g.EnableIter {
		fmt.Fprintf(b, "type %s interface {\n\tis%s()\n\tHeaderLen() int\n}\n\n", g.Name, g.Name)
	} else {
		fmt.Fprintf(b, "type %s interface {\n\tis%s()\n}\n\n", g.Name, g.Name)
	}

	for _, m := range g.Members {
		fmt.Fprintf(b, "func (*%s) is%s() {}\n\n", m.Name, g.Name)
	}

	disc := g.Discriminator[0]
	fmt.Fprintf(b, "// Parse%s reads the %d-bit discriminator at bit offset %d and dispatches\n", g.Name, disc.BitWidth, disc.BitOffset)
	fmt.Fprintf(b, "// to the matching member's parser.\n")
	fmt.Fprintf(b, "func Parse%s(buf []byte) (%s, error) {\n", g.Name, g.Name)
	fmt.Fprintf(b, "\tif len(buf)*8 < %d {\n\t\treturn nil, fmt.Errorf(\"%s: buffer too short to read discriminator\")\n\t}\n", int(disc.BitOffset+disc.BitWidth), g.Name)
	fmt.Fprintf(b, "\tdisc := pktbuf.GetBitsBE(buf, %d, %d)\n", disc.BitOffset, disc.BitWidth)

	for _, m := range g.Members {
		cond := m.Cond.Clauses[0]
		fmt.Fprintf(b, "\tif %s {\n\t\treturn Parse%s(buf)\n\t}\n", condGo("disc", cond), m.Name)
	}
	fmt.Fprintf(b, "\treturn nil, fmt.Errorf(\"%s: no member matches discriminator %%d\", disc)\n}\n\n", g.Name)

	if g.EnableIter {
		writeGroupIterator(b, g)
	}
}

func memberList(g *sema.CheckedGroup) string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// condGo renders a CondClause's disjunction of ranges as a Go boolean
// expression over the named variable.
func condGo(varName string, clause ast.CondClause) string {
	parts := make([]string, len(clause.Bounds))
	for i, bnd := range clause.Bounds {
		parts[i] = boundGo(varName, bnd)
	}
	return "(" + strings.Join(parts, " || ") + ")"
}

func boundGo(varName string, b ast.CondBounds) string {
	switch {
	case !b.HasLo && !b.HasHi:
		return "true"
	case b.HasLo && !b.HasHi:
		return fmt.Sprintf("%s >= %d", varName, b.Lo)
	case !b.HasLo && b.HasHi:
		if b.Inclusive {
			return fmt.Sprintf("%s <= %d", varName, b.Hi)
		}
		return fmt.Sprintf("%s < %d", varName, b.Hi)
	default:
		if b.Inclusive {
			return fmt.Sprintf("(%s >= %d && %s <= %d)", varName, b.Lo, varName, b.Hi)
		}
		return fmt.Sprintf("(%s >= %d && %s < %d)", varName, b.Lo, varName, b.Hi)
	}
}

// writeGroupIterator emits a best-effort forward iterator over a
// concatenation of G records, per spec §4.4's iterator semantics: a partial
// trailing record that fails to parse exhausts the iterator rather than
// erroring.
func writeGroupIterator(b *strings.Builder, g *sema.CheckedGroup) {
	fmt.Fprintf(b, "// %sIter iterates over a concatenation of %s records.\n", g.Name, g.Name)
	fmt.Fprintf(b, "type %sIter struct {\n\trem []byte\n\tdone bool\n}\n\n", g.Name)
	fmt.Fprintf(b, "// New%sIter starts an iterator over buf.\n", g.Name)
	fmt.Fprintf(b, "func New%sIter(buf []byte) *%sIter {\n\treturn &%sIter{rem: buf}\n}\n\n", g.Name, g.Name, g.Name)
	fmt.Fprintf(b, "// Next returns the next record, or (nil, false) once the remainder is\n")
	fmt.Fprintf(b, "// empty or a partial trailing record fails to parse.\n")
	fmt.Fprintf(b, "func (it *%sIter) Next() (%s, bool) {\n", g.Name, g.Name)
	b.WriteString("\tif it.done || len(it.rem) == 0 {\n\t\treturn nil, false\n\t}\n")
	fmt.Fprintf(b, "\trec, err := Parse%s(it.rem)\n\tif err != nil {\n\t\tit.done = true\n\t\treturn nil, false\n\t}\n", g.Name)
	b.WriteString("\tit.rem = it.rem[rec.HeaderLen():]\n\treturn rec, true\n}\n\n")
}
