package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duanjp8617/pktfmt/internal/ast"
	"github.com/duanjp8617/pktfmt/internal/diag"
	"github.com/duanjp8617/pktfmt/internal/lexer"
)

func parseSrc(t *testing.T, src string) (*ast.Unit, *diag.Diagnostic) {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	return Parse(toks)
}

const udpSrc = `
packet Udp {
    header = [
        src_port = Field { bit = 16 },
        dst_port = Field { bit = 16 },
        length_ = Field { bit = 16 },
        checksum = Field { bit = 16 },
    ],
    length = [ packet_len = length_ ],
}
`

func TestParseUdpPacket(t *testing.T) {
	u, err := parseSrc(t, udpSrc)
	require.Nil(t, err)
	require.Len(t, u.Items, 1)

	pkt := u.Items[0].Item.Packet
	require.NotNil(t, pkt)
	assert.Equal(t, "Udp", pkt.Name)
	assert.False(t, pkt.IsMessage)
	require.Len(t, pkt.Header.Fields, 4)
	assert.Equal(t, "src_port", pkt.Header.Fields[0].Name)
	assert.Equal(t, uint64(16), pkt.Header.Fields[0].Field.Bit)

	require.Equal(t, ast.LFDirect, pkt.Length.PacketLen.Kind)
	assert.Equal(t, "length_", pkt.Length.PacketLen.Direct)
	assert.Equal(t, ast.LFNone, pkt.Length.HeaderLen.Kind)
}

func TestParseFieldWithAllClauses(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 4, repr = u8, arg = bool, default = @1, gen = false, endian = little } ] }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	f := u.Items[0].Item.Packet.Header.Fields[0].Field
	assert.Equal(t, uint64(4), f.Bit)
	assert.Equal(t, ast.ReprU8, f.Repr)
	assert.Equal(t, ast.ArgBool, f.Arg.Kind)
	require.NotNil(t, f.Default)
	assert.True(t, f.Default.Fixed)
	assert.Equal(t, uint64(1), f.Default.Int)
	assert.False(t, f.Gen)
	assert.Equal(t, ast.EndianLittle, f.Endian)
}

func TestParseFieldUserArg(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 8, arg = %%MyType%% } ] }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	f := u.Items[0].Item.Packet.Header.Fields[0].Field
	require.Equal(t, ast.ArgUser, f.Arg.Kind)
	assert.Equal(t, "MyType", f.Arg.UserType.Text)
}

func TestParseFieldByteArrayDefault(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 16, repr = &[u8], default = [1, 2] } ] }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	f := u.Items[0].Item.Packet.Header.Fields[0].Field
	require.NotNil(t, f.Default)
	assert.Equal(t, []byte{1, 2}, f.Default.Bytes)
}

func TestParseFieldMissingBitFails(t *testing.T) {
	src := `packet P { header = [ f = Field { repr = u8 } ] }`
	_, err := parseSrc(t, src)
	require.NotNil(t, err)
	assert.Equal(t, diag.UnexpectedToken, err.Kind)
}

func TestParseLengthAllShapes(t *testing.T) {
	cases := []string{
		`length = [ header_len = 8 ]`,
		`length = [ payload_len = 8 ]`,
		`length = [ packet_len = 8 ]`,
		`length = [ header_len = 8, payload_len = 4 ]`,
		`length = [ header_len = 8, packet_len = 4 ]`,
		`length = [ payload_len = 4, packet_len = 8 ]`,
		`length = [ header_len = 8, payload_len = 4, packet_len = 12 ]`,
	}
	for _, lenClause := range cases {
		src := `packet P { header = [ f = Field { bit = 8 } ], ` + lenClause + ` }`
		_, err := parseSrc(t, src)
		assert.Nil(t, err, "clause %q should parse", lenClause)
	}
}

func TestParseLengthEmptyShapeFails(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 8 } ], length = [ ] }`
	_, err := parseSrc(t, src)
	require.NotNil(t, err)
	assert.Equal(t, diag.InvalidLengthShape, err.Kind)
}

func TestParseLengthDuplicateSlotFails(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 8 } ], length = [ header_len = 1, header_len = 2 ] }`
	_, err := parseSrc(t, src)
	require.NotNil(t, err)
	assert.Equal(t, diag.InvalidLengthShape, err.Kind)
}

func TestParseLengthDeferred(t *testing.T) {
	src := `packet P { header = [ f = Field { bit = 8 } ], length = [ header_len = ] }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	assert.Equal(t, ast.LFDeferred, u.Items[0].Item.Packet.Length.HeaderLen.Kind)
}

func TestParseLengthArithmeticExpr(t *testing.T) {
	src := `packet P { header = [ version3_len = Field { bit = 16 } ], length = [ header_len = version3_len + 38 ] }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	lf := u.Items[0].Item.Packet.Length.HeaderLen
	require.Equal(t, ast.LFExpr, lf.Kind)
	require.NotNil(t, lf.Expr)
	assert.Equal(t, ast.OpAdd, lf.Expr.Op)
	assert.True(t, lf.Expr.Left.IsRef)
	assert.Equal(t, "version3_len", lf.Expr.Left.RefName)
	assert.True(t, lf.Expr.Right.IsConst)
	assert.Equal(t, uint64(38), lf.Expr.Right.Const)
}

func TestParseCondRanges(t *testing.T) {
	src := `packet P {
        header = [ code = Field { bit = 8 } ],
        cond = ( code == 1.. )
    }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	cond := u.Items[0].Item.Packet.Cond
	require.NotNil(t, cond)
	require.Len(t, cond.Clauses, 1)
	b := cond.Clauses[0].Bounds[0]
	assert.True(t, b.HasLo)
	assert.Equal(t, uint64(1), b.Lo)
	assert.False(t, b.HasHi)
}

func TestParseCondConjunctionAndDisjunction(t *testing.T) {
	src := `packet P {
        header = [ a = Field { bit = 8 }, b = Field { bit = 8 } ],
        cond = ( a == 1 || 3..=5 ) && ( b == ..=2 )
    }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	cond := u.Items[0].Item.Packet.Cond
	require.Len(t, cond.Clauses, 2)
	require.Len(t, cond.Clauses[0].Bounds, 2)
	assert.Equal(t, uint64(1), cond.Clauses[0].Bounds[0].Lo)
	assert.Equal(t, uint64(3), cond.Clauses[0].Bounds[1].Lo)
	assert.Equal(t, uint64(5), cond.Clauses[0].Bounds[1].Hi)
	assert.False(t, cond.Clauses[1].Bounds[0].HasLo)
	assert.Equal(t, uint64(2), cond.Clauses[1].Bounds[0].Hi)
}

func TestParseMessageRequiresCond(t *testing.T) {
	src := `message M { header = [ a = Field { bit = 8 } ] }`
	_, err := parseSrc(t, src)
	require.NotNil(t, err)
	assert.Equal(t, diag.MessageMissingCond, err.Kind)
}

func TestParseMessageWithCondOK(t *testing.T) {
	src := `message M { header = [ a = Field { bit = 8 } ], cond = ( a == 1 ) }`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	assert.True(t, u.Items[0].Item.Packet.IsMessage)
}

func TestParseGroup(t *testing.T) {
	src := `
packet A { header = [ t = Field { bit = 8 } ], cond = ( t == 1 ) }
packet B { header = [ t = Field { bit = 8 } ], cond = ( t == 2 ) }
group G = { members = [ A, B ], enable_iter = true }
`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	require.Len(t, u.Items, 3)
	g := u.Items[2].Item.Group
	require.NotNil(t, g)
	assert.Equal(t, "G", g.Name)
	assert.Equal(t, []string{"A", "B"}, g.Members)
	assert.True(t, g.EnableIter)
}

func TestParseLeadingAndTrailingCode(t *testing.T) {
	src := `%% use crate::foo; %%
packet P { header = [ a = Field { bit = 8 } ] }
%% impl P {} %%
`
	u, err := parseSrc(t, src)
	require.Nil(t, err)
	require.NotNil(t, u.LeadingCode)
	assert.Contains(t, u.LeadingCode.Text, "use crate::foo")
	require.NotNil(t, u.Items[0].Trailer)
	assert.Contains(t, u.Items[0].Trailer.Text, "impl P")
}

func TestParseEmptyUnitFails(t *testing.T) {
	_, err := parseSrc(t, ``)
	require.NotNil(t, err)
	assert.Equal(t, diag.UnexpectedEOF, err.Kind)
}
