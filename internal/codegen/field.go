package codegen

import (
	"fmt"
	"strings"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

// reprGoType is the Go type that physically stores a field's repr.
func reprGoType(r ast.Repr) string {
	switch r {
	case ast.ReprU8:
		return "uint8"
	case ast.ReprU16:
		return "uint16"
	case ast.ReprU32:
		return "uint32"
	case ast.ReprU64:
		return "uint64"
	default:
		return "[]byte"
	}
}

// exposedGoType is the type a field's getter/setter exposes to callers,
// after the arg conversion described in spec §4.4 ("field polymorphism via
// arg") is applied.
func exposedGoType(f sema.FieldLayout) string {
	switch f.Arg.Kind {
	case ast.ArgBool:
		return "bool"
	case ast.ArgUser:
		return strings.TrimSpace(f.Arg.UserType.Text)
	default:
		return reprGoType(f.Repr)
	}
}

// isNativeWholeByte reports whether f can be read/written with a single
// encoding/binary call instead of the generic bit-packing helpers: it must
// start on a byte boundary and occupy exactly as many bits as its repr's
// native width.
func isNativeWholeByte(f sema.FieldLayout) bool {
	return f.Repr != ast.ReprSlice && f.BitOffset%8 == 0 && f.BitWidth == f.Repr.BitSize()
}

func byteOffset(bitOffset uint64) uint64 { return bitOffset / 8 }

// writeFieldAccessors emits the Getter/Setter pair (or neither, if
// Gen==false) for one field of recvType, whose receiver variable is recv
// and whose underlying buffer is reached via curExpr (e.g. "p.cur").
func writeFieldAccessors(b *strings.Builder, recvType, recv, curExpr string, f sema.FieldLayout) {
	exported := exportName(f.Name)

	if f.Repr == ast.ReprSlice {
		writeSliceAccessors(b, recvType, recv, curExpr, f, exported)
		return
	}

	switch {
	case isNativeWholeByte(f):
		writeNativeScalarAccessors(b, recvType, recv, curExpr, f, exported)
	default:
		writePackedScalarAccessors(b, recvType, recv, curExpr, f, exported)
	}
}

func writeSliceAccessors(b *strings.Builder, recvType, recv, curExpr string, f sema.FieldLayout, exported string) {
	start, end := byteOffset(f.BitOffset), byteOffset(f.BitOffset)+f.BitWidth/8

	if f.Gen {
		fmt.Fprintf(b, "// %s returns the %d-byte %s field, sharing storage with the buffer.\n", exported, end-start, f.Name)
		fmt.Fprintf(b, "func (%s *%s) %s() []byte {\n", recv, recvType, exported)
		fmt.Fprintf(b, "\treturn %s.Bytes()[%d:%d]\n}\n\n", curExpr, start, end)

		fmt.Fprintf(b, "// Set%s overwrites the %s field in place.\n", exported, f.Name)
		fmt.Fprintf(b, "func (%s *%s) Set%s(v []byte) {\n", recv, recvType, exported)
		fmt.Fprintf(b, "\tcopy(%s.Bytes()[%d:%d], v)\n}\n\n", curExpr, start, end)
	}
}

func writeNativeScalarAccessors(b *strings.Builder, recvType, recv, curExpr string, f sema.FieldLayout, exported string) {
	start := byteOffset(f.BitOffset)
	end := start + f.BitWidth/8
	order := "binary.BigEndian"
	if f.Endian == ast.EndianLittle {
		order = "binary.LittleEndian"
	}

	readExpr := func() string {
		switch f.BitWidth {
		case 8:
			return fmt.Sprintf("%s.Bytes()[%d]", curExpr, start)
		case 16:
			return fmt.Sprintf("%s.Uint16(%s.Bytes()[%d:%d])", order, curExpr, start, end)
		case 32:
			return fmt.Sprintf("%s.Uint32(%s.Bytes()[%d:%d])", order, curExpr, start, end)
		default:
			return fmt.Sprintf("%s.Uint64(%s.Bytes()[%d:%d])", order, curExpr, start, end)
		}
	}

	if !f.Gen {
		return
	}

	goType := exposedGoType(f)
	fmt.Fprintf(b, "// %s returns the %s field.\n", exported, f.Name)
	fmt.Fprintf(b, "func (%s *%s) %s() %s {\n", recv, recvType, exported, goType)
	switch f.Arg.Kind {
	case ast.ArgBool:
		fmt.Fprintf(b, "\treturn %s != 0\n}\n\n", readExpr())
	case ast.ArgUser:
		fmt.Fprintf(b, "\treturn %s(%s)\n}\n\n", goType, readExpr())
	default:
		fmt.Fprintf(b, "\treturn %s\n}\n\n", readExpr())
	}

	fmt.Fprintf(b, "// Set%s overwrites the %s field.\n", exported, f.Name)
	fmt.Fprintf(b, "func (%s *%s) Set%s(v %s) {\n", recv, recvType, exported, goType)
	var raw string
	switch f.Arg.Kind {
	case ast.ArgBool:
		raw = "boolToUint(v)"
	case ast.ArgUser:
		raw = fmt.Sprintf("%s(v)", reprGoType(f.Repr))
	default:
		raw = "v"
	}
	switch f.BitWidth {
	case 8:
		fmt.Fprintf(b, "\t%s.Bytes()[%d] = uint8(%s)\n}\n\n", curExpr, start, raw)
	case 16:
		fmt.Fprintf(b, "\t%s.PutUint16(%s.Bytes()[%d:%d], uint16(%s))\n}\n\n", order, curExpr, start, end, raw)
	case 32:
		fmt.Fprintf(b, "\t%s.PutUint32(%s.Bytes()[%d:%d], uint32(%s))\n}\n\n", order, curExpr, start, end, raw)
	default:
		fmt.Fprintf(b, "\t%s.PutUint64(%s.Bytes()[%d:%d], uint64(%s))\n}\n\n", order, curExpr, start, end, raw)
	}
}

func writePackedScalarAccessors(b *strings.Builder, recvType, recv, curExpr string, f sema.FieldLayout, exported string) {
	if !f.Gen {
		return
	}
	goType := exposedGoType(f)

	fmt.Fprintf(b, "// %s returns the bit-packed %s field (offset %d, width %d).\n", exported, f.Name, f.BitOffset, f.BitWidth)
	fmt.Fprintf(b, "func (%s *%s) %s() %s {\n", recv, recvType, exported, goType)
	fmt.Fprintf(b, "\traw := pktbuf.GetBitsBE(%s.Bytes(), %d, %d)\n", curExpr, f.BitOffset, f.BitWidth)
	switch f.Arg.Kind {
	case ast.ArgBool:
		b.WriteString("\treturn raw != 0\n}\n\n")
	case ast.ArgUser:
		fmt.Fprintf(b, "\treturn %s(raw)\n}\n\n", goType)
	default:
		fmt.Fprintf(b, "\treturn %s(raw)\n}\n\n", reprGoType(f.Repr))
	}

	fmt.Fprintf(b, "// Set%s overwrites the bit-packed %s field.\n", exported, f.Name)
	fmt.Fprintf(b, "func (%s *%s) Set%s(v %s) {\n", recv, recvType, exported, goType)
	var raw string
	switch f.Arg.Kind {
	case ast.ArgBool:
		raw = "boolToUint(v)"
	case ast.ArgUser:
		raw = fmt.Sprintf("uint64(%s(v))", reprGoType(f.Repr))
	default:
		raw = "uint64(v)"
	}
	fmt.Fprintf(b, "\tpktbuf.SetBitsBE(%s.Bytes(), %d, %d, %s)\n}\n\n", curExpr, f.BitOffset, f.BitWidth, raw)
}

// exportName uppercases the first rune of a field name so it becomes a
// valid exported Go identifier; pktfmt field names are already valid Go
// identifiers with the trailing-underscore convention for reserved words
// (e.g. "length_"), which this leaves untouched.
func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
