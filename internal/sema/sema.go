// Package sema is the semantic analyzer: it walks an *ast.Unit and produces
// a checked IR that the code generator can trust without re-validating
// anything (spec §4.3). The checked IR borrows field names from the AST; it
// never copies or mutates AST nodes.
package sema

import (
	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/diag"
)

// FieldLayout is one field after bit-offset assignment.
type FieldLayout struct {
	Name      string
	BitOffset uint64
	BitWidth  uint64
	Repr      ast.Repr
	Arg       ast.Arg
	Default   *ast.Default
	Gen       bool
	Endian    ast.Endian
}

// ByteAligned reports whether the field starts and ends on a byte boundary.
func (f FieldLayout) ByteAligned() bool {
	return f.BitOffset%8 == 0 && f.BitWidth%8 == 0
}

// HeaderLayout is a Header after offsets have been assigned.
type HeaderLayout struct {
	Fields    []FieldLayout
	ByName    map[string]*FieldLayout
	BitLength uint64
}

// ByteLength is the fixed byte length implied by summing field widths. For
// variable headers this is only the *minimum* length.
func (h HeaderLayout) ByteLength() uint64 { return h.BitLength / 8 }

// LengthKind mirrors ast.LengthFieldKind in the checked IR.
type LengthKind = ast.LengthFieldKind

// ResolvedLength is a Length slot after its expression has been validated.
type ResolvedLength struct {
	Kind   LengthKind
	Expr   *ast.AlgExpr
	Direct string
}

// Length holds the three resolved length slots.
type Length struct {
	HeaderLen  ResolvedLength
	PayloadLen ResolvedLength
	PacketLen  ResolvedLength
}

// CheckedPacket is a Packet after full semantic validation.
type CheckedPacket struct {
	Name       string
	IsMessage  bool
	Header     HeaderLayout
	Length     Length
	Cond       *ast.Cond
	EnableIter bool
	Variable   bool
}

// DiscriminatorField is one field a PacketGroup dispatches on.
type DiscriminatorField struct {
	Name      string
	BitOffset uint64
	BitWidth  uint64
}

// CheckedGroup is a PacketGroup after member resolution.
type CheckedGroup struct {
	Name          string
	Members       []*CheckedPacket
	EnableIter    bool
	Discriminator []DiscriminatorField
}

// CheckedItem mirrors ast.ItemWithTrailer but with resolved pointers.
type CheckedItem struct {
	Kind    ast.ParsedItemKind
	Packet  *CheckedPacket
	Group   *CheckedGroup
	Trailer *ast.Code
}

// CheckedUnit is the fully validated compilation unit codegen consumes.
type CheckedUnit struct {
	LeadingCode *ast.Code
	Items       []CheckedItem
}

// Check validates unit and produces a CheckedUnit, or the first diagnostic
// found. Packets are checked in declaration order so that group resolution
// (which needs already-checked Packets) can look them up by name.
func Check(unit *ast.Unit) (*CheckedUnit, *diag.Diagnostic) {
	cu := &CheckedUnit{LeadingCode: unit.LeadingCode}
	byName := map[string]*CheckedPacket{}

	for _, iwt := range unit.Items {
		switch iwt.Item.Kind {
		case ast.ItemPacket:
			cp, err := checkPacket(iwt.Item.Packet)
			if err != nil {
				return nil, err
			}
			if _, dup := byName[cp.Name]; dup {
				return nil, diag.New(diag.DuplicateField, iwt.Item.Packet.Span, "packet %q declared more than once", cp.Name)
			}
			byName[cp.Name] = cp
			cu.Items = append(cu.Items, CheckedItem{Kind: ast.ItemPacket, Packet: cp, Trailer: iwt.Trailer})
		case ast.ItemGroup:
			cg, err := checkGroup(iwt.Item.Group, byName)
			if err != nil {
				return nil, err
			}
			cu.Items = append(cu.Items, CheckedItem{Kind: ast.ItemGroup, Group: cg, Trailer: iwt.Trailer})
		}
	}
	return cu, nil
}

// checkPacket implements spec §4.3 steps 1-4 for a single Packet.
func checkPacket(pkt *ast.Packet) (*CheckedPacket, *diag.Diagnostic) {
	layout, err := checkHeader(&pkt.Header)
	if err != nil {
		return nil, err
	}

	length, err := checkLength(&pkt.Length, layout)
	if err != nil {
		return nil, err
	}

	if pkt.Cond != nil {
		if err := checkCond(pkt.Cond, layout); err != nil {
			return nil, err
		}
	}
	if pkt.IsMessage && pkt.Cond == nil {
		return nil, diag.New(diag.MessageMissingCond, pkt.Span, "message %q must declare a cond", pkt.Name)
	}

	variable := isVariable(&pkt.Length, layout)

	if pkt.EnableIter && !variable {
		return nil, diag.New(diag.IterNotPermitted, pkt.Span, "enable_iter is only permitted on a Packet with a variable-length header, but %q is fixed-length", pkt.Name)
	}

	return &CheckedPacket{
		Name:       pkt.Name,
		IsMessage:  pkt.IsMessage,
		Header:     *layout,
		Length:     *length,
		Cond:       pkt.Cond,
		EnableIter: pkt.EnableIter,
		Variable:   variable,
	}, nil
}

// checkHeader implements spec §4.3 step 1: offset assignment plus (a)-(d).
func checkHeader(h *ast.Header) (*HeaderLayout, *diag.Diagnostic) {
	layout := &HeaderLayout{ByName: map[string]*FieldLayout{}}
	var offset uint64

	for _, nf := range h.Fields {
		if _, dup := layout.ByName[nf.Name]; dup {
			return nil, diag.New(diag.DuplicateField, nf.Field.Span, "field %q declared more than once in this header", nf.Name)
		}

		f := nf.Field
		if f.Bit == 0 {
			return nil, diag.New(diag.BitWidthMismatch, f.Span, "field %q has a zero bit width", nf.Name)
		}

		if f.Repr == ast.ReprSlice {
			if offset%8 != 0 {
				return nil, diag.New(diag.BitWidthMismatch, f.Span, "byte-array field %q must start on a byte boundary", nf.Name)
			}
			if f.Bit%8 != 0 {
				return nil, diag.New(diag.BitWidthMismatch, f.Span, "byte-array field %q width %d is not a whole number of bytes", nf.Name, f.Bit)
			}
		} else {
			max := f.Repr.BitSize()
			if f.Bit > max {
				return nil, diag.New(diag.BitWidthMismatch, f.Span, "field %q declares %d bits but repr %s only holds %d", nf.Name, f.Bit, f.Repr, max)
			}
			if f.Bit > 128 {
				return nil, diag.New(diag.BitWidthMismatch, f.Span, "field %q declares %d bits, exceeding the 128-bit scalar maximum", nf.Name, f.Bit)
			}
		}

		if f.Endian == ast.EndianLittle && f.Repr == ast.ReprSlice {
			return nil, diag.New(diag.BitWidthMismatch, f.Span, "field %q: endian has no meaning on a byte-array field", nf.Name)
		}

		if f.Default != nil {
			if err := checkDefault(nf.Name, f); err != nil {
				return nil, err
			}
		}

		fl := FieldLayout{
			Name:      nf.Name,
			BitOffset: offset,
			BitWidth:  f.Bit,
			Repr:      f.Repr,
			Arg:       f.Arg,
			Default:   f.Default,
			Gen:       f.Gen,
			Endian:    f.Endian,
		}
		layout.Fields = append(layout.Fields, fl)
		layout.ByName[nf.Name] = &layout.Fields[len(layout.Fields)-1]
		offset += f.Bit
	}

	if offset%8 != 0 {
		return nil, diag.New(diag.BitWidthMismatch, h.Span, "header total bit length %d is not a multiple of 8", offset)
	}
	layout.BitLength = offset
	return layout, nil
}

// checkDefault implements spec §4.3 step 1(c).
func checkDefault(name string, f *ast.Field) *diag.Diagnostic {
	d := f.Default
	switch d.Kind {
	case ast.DefaultInt:
		if f.Repr == ast.ReprSlice {
			return diag.New(diag.DefaultOutOfRange, d.Span, "field %q: integer default is not valid for a byte-array field", name)
		}
		if f.Bit < 64 && d.Int >= (uint64(1)<<f.Bit) {
			return diag.New(diag.DefaultOutOfRange, d.Span, "field %q: default %d does not fit in %d bits", name, d.Int, f.Bit)
		}
	case ast.DefaultBool:
		if f.Arg.Kind != ast.ArgBool {
			return diag.New(diag.DefaultOutOfRange, d.Span, "field %q: boolean default requires arg = bool", name)
		}
	case ast.DefaultBytes:
		if f.Repr != ast.ReprSlice {
			return diag.New(diag.DefaultOutOfRange, d.Span, "field %q: byte-array default is only valid for repr = &[u8]", name)
		}
		if uint64(len(d.Bytes))*8 != f.Bit {
			return diag.New(diag.DefaultOutOfRange, d.Span, "field %q: byte-array default has %d bytes but the field spans %d bits", name, len(d.Bytes), f.Bit)
		}
	}
	return nil
}
