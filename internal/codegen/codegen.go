// Package codegen turns a checked compilation unit into Go source text. It
// never inspects anything the semantic analyzer hasn't already validated —
// by the time a *sema.CheckedUnit reaches here, bit offsets, defaults,
// length expressions and group discriminators are all known-good.
package codegen

import (
	"fmt"
	"strings"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

// Generate renders cu as a single Go source file in package pkgName.
func Generate(cu *sema.CheckedUnit, pkgName string) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated by pktfmt. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkgName)
	fmt.Fprintf(&b, "import (\n\t\"bytes\"\n\t\"encoding/binary\"\n\t\"fmt\"\n\n\t\"github.com/duanjp8617/pktfmt/pkg/pktbuf\"\n)\n\n")
	writeRuntimeHelpers(&b)

	if cu.LeadingCode != nil {
		writeCode(&b, cu.LeadingCode)
	}

	for _, item := range cu.Items {
		switch item.Kind {
		case ast.ItemPacket:
			writePacket(&b, item.Packet)
		case ast.ItemGroup:
			writeGroup(&b, item.Group)
		}
		if item.Trailer != nil {
			writeCode(&b, item.Trailer)
		}
	}

	return []byte(b.String()), nil
}

// writeRuntimeHelpers emits the small set of utility functions every
// generated accessor body may call, once per file regardless of whether any
// particular packet ends up using them.
func writeRuntimeHelpers(b *strings.Builder) {
	b.WriteString("func boolToUint(v bool) uint64 {\n\tif v {\n\t\treturn 1\n\t}\n\treturn 0\n}\n\n")
	b.WriteString("func bytesEqual(a, b []byte) bool {\n\treturn bytes.Equal(a, b)\n}\n\n")
}

func writeCode(b *strings.Builder, c *ast.Code) {
	b.WriteString(c.Text)
	if !strings.HasSuffix(c.Text, "\n") {
		b.WriteByte('\n')
	}
}
