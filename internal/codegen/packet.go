package codegen

import (
	"fmt"
	"strings"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

func writePacket(b *strings.Builder, p *sema.CheckedPacket) {
	fixedBytes := p.Header.ByteLength()

	fmt.Fprintf(b, "// %s is a generated accessor container; see %sHeaderLen for its header length.\n", p.Name, p.Name)
	fmt.Fprintf(b, "const %sHeaderLen = %d\n\n", exportName(p.Name), fixedBytes)
	fmt.Fprintf(b, "type %s struct {\n\tcur *pktbuf.CursorMut\n}\n\n", p.Name)

	writeHeaderLenMethod(b, p, fixedBytes)
	writeParse(b, p, fixedBytes)
	writeParseUnchecked(b, p)
	writeRelease(b, p)
	writePayload(b, p)
	writePrependHeader(b, p, fixedBytes)
	writeBuildMessage(b, p, fixedBytes)

	for _, f := range p.Header.Fields {
		writeFieldAccessors(b, p.Name, "p", "p.cur", f)
	}
}

func writeHeaderLenMethod(b *strings.Builder, p *sema.CheckedPacket, fixedBytes uint64) {
	fmt.Fprintf(b, "// HeaderLen returns the encoded header length of this %s in bytes.\n", p.Name)
	fmt.Fprintf(b, "func (p *%s) HeaderLen() int {\n", p.Name)
	switch p.Length.HeaderLen.Kind {
	case ast.LFNone:
		fmt.Fprintf(b, "\treturn %d\n}\n\n", fixedBytes)
	case ast.LFDeferred:
		fmt.Fprintf(b, "\t// header_len was declared with no expression; define %sHeaderLenUser\n", lowerFirst(p.Name))
		fmt.Fprintf(b, "\t// in a trailing %%%% code block to compute it from the buffer.\n")
		fmt.Fprintf(b, "\treturn %sHeaderLenUser(p)\n}\n\n", lowerFirst(p.Name))
	case ast.LFDirect:
		fmt.Fprintf(b, "\treturn int(p.%s())\n}\n\n", exportName(p.Length.HeaderLen.Direct))
	case ast.LFExpr:
		fmt.Fprintf(b, "\treturn int(%s)\n}\n\n", algExprGo(p.Length.HeaderLen.Expr))
	}
}

// lowerFirst is exportName's inverse, used to name the user-supplied
// companion function for a deferred header_len.
func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// algExprGo renders a length AlgExpr as a Go uint64 expression over field
// getters, per spec §4.4 ("arithmetic in length expressions is evaluated as
// 64-bit unsigned").
func algExprGo(e *ast.AlgExpr) string {
	if e.IsConst {
		return fmt.Sprintf("uint64(%d)", e.Const)
	}
	if e.IsRef {
		return fmt.Sprintf("uint64(p.%s())", exportName(e.RefName))
	}
	op := map[ast.AlgOp]string{ast.OpAdd: "+", ast.OpSub: "-", ast.OpMul: "*", ast.OpDiv: "/"}[e.Op]
	return fmt.Sprintf("(%s %s %s)", algExprGo(e.Left), op, algExprGo(e.Right))
}

func writeParse(b *strings.Builder, p *sema.CheckedPacket, fixedBytes uint64) {
	fmt.Fprintf(b, "// Parse%s validates buf against %s's declared invariants before wrapping it.\n", p.Name, p.Name)
	fmt.Fprintf(b, "func Parse%s(buf []byte) (*%s, error) {\n", p.Name, p.Name)
	fmt.Fprintf(b, "\tif len(buf) < %d {\n\t\treturn nil, fmt.Errorf(\"%s: buffer too short for fixed header: %%w\", &pktbuf.ErrTooShort{Need: %d, Have: len(buf)})\n\t}\n", fixedBytes, p.Name, fixedBytes)
	fmt.Fprintf(b, "\tp := &%s{cur: pktbuf.NewCursorMut(buf)}\n", p.Name)
	if p.Variable {
		b.WriteString("\thl := p.HeaderLen()\n")
		b.WriteString("\tif len(buf) < hl {\n\t\treturn nil, fmt.Errorf(\"%s: buffer too short for computed header length %d\", \"" + p.Name + "\", hl)\n\t}\n")
	}
	for _, f := range p.Header.Fields {
		if f.Default != nil && f.Default.Fixed {
			writeFixedDefaultCheck(b, p.Name, f)
		}
	}
	if p.Length.PacketLen.Kind != ast.LFNone {
		fmt.Fprintf(b, "\tif wantLen := int(%s); len(buf) != wantLen {\n", lengthSlotExprGo(p.Length.PacketLen))
		fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(\"%s: buffer length %%d does not match packet_len %%d\", len(buf), wantLen)\n\t}\n", p.Name)
	}
	b.WriteString("\treturn p, nil\n}\n\n")
}

func lengthSlotExprGo(rl sema.ResolvedLength) string {
	switch rl.Kind {
	case ast.LFDirect:
		return fmt.Sprintf("uint64(p.%s())", exportName(rl.Direct))
	case ast.LFExpr:
		return algExprGo(rl.Expr)
	default:
		return "uint64(p.HeaderLen())"
	}
}

func writeFixedDefaultCheck(b *strings.Builder, pktName string, f sema.FieldLayout) {
	exported := exportName(f.Name)
	switch f.Default.Kind {
	case ast.DefaultInt:
		fmt.Fprintf(b, "\tif v := p.%s(); uint64(v) != %d {\n", exported, f.Default.Int)
		fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(\"%s: field %s must be %d, got %%v\", v)\n\t}\n", pktName, f.Name, f.Default.Int)
	case ast.DefaultBool:
		fmt.Fprintf(b, "\tif v := p.%s(); v != %v {\n", exported, f.Default.Bool)
		fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(\"%s: field %s must be %v, got %%v\", v)\n\t}\n", pktName, f.Name, f.Default.Bool)
	case ast.DefaultBytes:
		fmt.Fprintf(b, "\tif v := p.%s(); !bytesEqual(v, %s) {\n", exported, bytesLiteral(f.Default.Bytes))
		fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(\"%s: field %s must equal its fixed default, got %%v\", v)\n\t}\n", pktName, f.Name)
	}
}

func bytesLiteral(bs []byte) string {
	parts := make([]string, len(bs))
	for i, v := range bs {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	return "[]byte{" + strings.Join(parts, ", ") + "}"
}

func writeParseUnchecked(b *strings.Builder, p *sema.CheckedPacket) {
	fmt.Fprintf(b, "// ParseUnchecked%s wraps buf with no validation.\n", p.Name)
	fmt.Fprintf(b, "func ParseUnchecked%s(buf []byte) *%s {\n\treturn &%s{cur: pktbuf.NewCursorMut(buf)}\n}\n\n", p.Name, p.Name, p.Name)
}

func writeRelease(b *strings.Builder, p *sema.CheckedPacket) {
	fmt.Fprintf(b, "// Release returns the underlying buffer, relinquishing p.\n")
	fmt.Fprintf(b, "func (p *%s) Release() []byte {\n\treturn p.cur.Bytes()\n}\n\n", p.Name)
}

func writePayload(b *strings.Builder, p *sema.CheckedPacket) {
	fmt.Fprintf(b, "// Payload returns the buffer advanced past the header.\n")
	fmt.Fprintf(b, "func (p *%s) Payload() []byte {\n\treturn p.cur.Bytes()[p.HeaderLen():]\n}\n\n", p.Name)
}

func writePrependHeader(b *strings.Builder, p *sema.CheckedPacket, fixedBytes uint64) {
	fmt.Fprintf(b, "// Prepend%sHeader claims %d bytes of headroom at the front of buf for a %s header.\n", p.Name, fixedBytes, p.Name)
	fmt.Fprintf(b, "func Prepend%sHeader(buf []byte) (*%s, error) {\n", p.Name, p.Name)
	fmt.Fprintf(b, "\tif len(buf) < %d {\n\t\treturn nil, fmt.Errorf(\"%s: buffer too short for header prepend: %%w\", &pktbuf.ErrTooShort{Need: %d, Have: len(buf)})\n\t}\n", fixedBytes, p.Name, fixedBytes)
	fmt.Fprintf(b, "\treturn &%s{cur: pktbuf.NewCursorMut(buf)}, nil\n}\n\n", p.Name)
}

func writeBuildMessage(b *strings.Builder, p *sema.CheckedPacket, fixedBytes uint64) {
	fmt.Fprintf(b, "// Build%s allocates a fresh %s header buffer and writes every field's\n", p.Name, p.Name)
	fmt.Fprintf(b, "// declared default, applying any @-fixed defaults last.\n")
	fmt.Fprintf(b, "func Build%s() *%s {\n", p.Name, p.Name)
	fmt.Fprintf(b, "\tp := &%s{cur: pktbuf.NewCursorMut(make([]byte, %d))}\n", p.Name, fixedBytes)
	var fixed []sema.FieldLayout
	for _, f := range p.Header.Fields {
		if f.Default == nil {
			continue
		}
		if f.Default.Fixed {
			fixed = append(fixed, f)
			continue
		}
		writeDefaultAssignment(b, f)
	}
	for _, f := range fixed {
		writeDefaultAssignment(b, f)
	}
	b.WriteString("\treturn p\n}\n\n")
}

func writeDefaultAssignment(b *strings.Builder, f sema.FieldLayout) {
	exported := exportName(f.Name)
	switch f.Default.Kind {
	case ast.DefaultInt:
		fmt.Fprintf(b, "\tp.Set%s(%s(%d))\n", exported, exposedGoType(f), f.Default.Int)
	case ast.DefaultBool:
		fmt.Fprintf(b, "\tp.Set%s(%v)\n", exported, f.Default.Bool)
	case ast.DefaultBytes:
		fmt.Fprintf(b, "\tp.Set%s(%s)\n", exported, bytesLiteral(f.Default.Bytes))
	}
}
