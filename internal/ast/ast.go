// Package ast defines the parse tree produced by internal/parser. Nodes are
// plain structs with no behavior beyond what the semantic analyzer needs to
// walk them; raw-code escapes are modeled as opaque Code leaves, never as
// parsed content (spec §9).
package ast

import "github.com/duanjp8617/pktfmt/internal/diag"

// Code is a verbatim %% ... %% splice. The generator copies Text byte for
// byte; nothing in the compiler ever interprets it.
type Code struct {
	Text string
	Span diag.Span
}

// Repr is a field's physical representation.
type Repr int

const (
	ReprU8 Repr = iota
	ReprU16
	ReprU32
	ReprU64
	ReprSlice
)

func (r Repr) String() string {
	switch r {
	case ReprU8:
		return "u8"
	case ReprU16:
		return "u16"
	case ReprU32:
		return "u32"
	case ReprU64:
		return "u64"
	case ReprSlice:
		return "&[u8]"
	default:
		return "?"
	}
}

// BitSize is the native width of a scalar Repr, or 0 for ReprSlice.
func (r Repr) BitSize() uint64 {
	switch r {
	case ReprU8:
		return 8
	case ReprU16:
		return 16
	case ReprU32:
		return 32
	case ReprU64:
		return 64
	default:
		return 0
	}
}

// ArgKind classifies how a field's decoded value is exposed.
type ArgKind int

const (
	// ArgBuiltin exposes the field as its repr's native integer type.
	ArgBuiltin ArgKind = iota
	// ArgBool compares the decoded integer against zero.
	ArgBool
	// ArgUser converts the decoded value through a user-supplied raw-code type.
	ArgUser
)

// Arg is a field's exposed-type tag. It's a tagged union over the three
// cases described in spec §9, not an open-ended type hierarchy.
type Arg struct {
	Kind     ArgKind
	UserType *Code // set iff Kind == ArgUser
}

// Endian is the byte order used to decode a whole-byte multi-byte scalar
// field (spec §4.6).
type Endian int

const (
	EndianBig Endian = iota
	EndianLittle
)

// DefaultKind classifies the literal form of a Field's default value.
type DefaultKind int

const (
	DefaultInt DefaultKind = iota
	DefaultBool
	DefaultBytes
)

// Default is a field's declared default value, optionally `@`-fixed.
type Default struct {
	Kind  DefaultKind
	Int   uint64
	Bool  bool
	Bytes []byte
	Fixed bool // true iff prefixed with '@'
	Span  diag.Span
}

// Field is one `Field { ... }` declaration.
type Field struct {
	Bit     uint64
	Repr    Repr
	Arg     Arg
	Default *Default // nil if absent
	Gen     bool
	Endian  Endian
	Span    diag.Span
}

// NamedField pairs a declared field name with its Field body.
type NamedField struct {
	Name  string
	Field *Field
}

// Header is an ordered `header = [ ... ]` declaration.
type Header struct {
	Fields []NamedField
	Span   diag.Span
}

// AlgOp is an arithmetic operator in a length expression.
type AlgOp int

const (
	OpAdd AlgOp = iota
	OpSub
	OpMul
	OpDiv
)

// AlgExpr is a small explicit AST node for arithmetic over `+ - * /`,
// integer constants, and field-name references (spec §9: "should be stored
// as small explicit AST nodes, not closures").
type AlgExpr struct {
	// Leaf forms.
	IsConst bool
	Const   uint64
	IsRef   bool
	RefName string

	// Binary form (IsConst == IsRef == false).
	Op          AlgOp
	Left, Right *AlgExpr

	Span diag.Span
}

// IsLeaf reports whether e is a constant or a reference, as opposed to a
// binary operation.
func (e *AlgExpr) IsLeaf() bool {
	return e.IsConst || e.IsRef
}

// LengthFieldKind classifies one of the three Length slots.
type LengthFieldKind int

const (
	// LFNone means the slot was not declared at all.
	LFNone LengthFieldKind = iota
	// LFExpr is a usable arithmetic expression.
	LFExpr
	// LFDirect is a degenerate direct reference to a single field.
	LFDirect
	// LFDeferred marks `header_len = ` with no expression, i.e. "defer to a
	// user-supplied raw-code function" (spec §9, Open Question (a)).
	LFDeferred
)

// LengthField is one slot (header_len, payload_len or packet_len).
type LengthField struct {
	Kind   LengthFieldKind
	Expr   *AlgExpr // set iff Kind == LFExpr
	Direct string   // set iff Kind == LFDirect
	Span   diag.Span
}

// Length holds the three length slots of a Packet.
type Length struct {
	HeaderLen  LengthField
	PayloadLen LengthField
	PacketLen  LengthField
	Span       diag.Span
}

// CondBounds is one inclusive/open/closed range in a cond clause's
// disjunction, or a single value treated as [n, n].
type CondBounds struct {
	HasLo     bool
	Lo        uint64
	HasHi     bool
	Hi        uint64
	Inclusive bool // Hi is inclusive; meaningless when HasHi is false
	Span      diag.Span
}

// CondClause is `(ident == range (|| range)*)`: one field name and the
// disjunction of ranges it must fall into.
type CondClause struct {
	FieldName string
	Bounds    []CondBounds
	Span      diag.Span
}

// Cond is the conjunction of CondClauses.
type Cond struct {
	Clauses []CondClause
	Span    diag.Span
}

// Packet is a `packet` or `message` declaration; message is an alias that
// additionally requires Cond to be non-nil.
type Packet struct {
	Name       string
	IsMessage  bool
	Header     Header
	Length     Length
	Cond       *Cond
	EnableIter bool
	Span       diag.Span
}

// PacketGroup is a `group` declaration.
type PacketGroup struct {
	Name       string
	Members    []string
	EnableIter bool
	Span       diag.Span
}

// ParsedItemKind tags the union carried by ParsedItem.
type ParsedItemKind int

const (
	ItemPacket ParsedItemKind = iota
	ItemGroup
)

// ParsedItem is a tagged union of *Packet or *PacketGroup.
type ParsedItem struct {
	Kind   ParsedItemKind
	Packet *Packet
	Group  *PacketGroup
}

// ItemWithTrailer is one (item, optional trailing code) pair.
type ItemWithTrailer struct {
	Item    ParsedItem
	Trailer *Code
}

// Unit is the complete compilation unit: a leading code block followed by
// one or more (ParsedItem, trailing code?) pairs.
type Unit struct {
	LeadingCode *Code
	Items       []ItemWithTrailer
}
