package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duanjp8617/pktfmt/internal/lexer"
	"github.com/duanjp8617/pktfmt/internal/parser"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

func generateSrc(t *testing.T, src string) string {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	unit, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)
	cu, semaErr := sema.Check(unit)
	require.Nil(t, semaErr)
	out, err := Generate(cu, "generated")
	require.NoError(t, err)
	return string(out)
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

func TestGenerateUdpHasHeaderLenConst(t *testing.T) {
	src := generateSrc(t, udpSrc)
	assert.Contains(t, src, "const UdpHeaderLen = 8")
}

func TestGenerateUdpWholeByteAccessors(t *testing.T) {
	src := generateSrc(t, udpSrc)
	assert.Contains(t, src, "func (p *Udp) SrcPort() uint16")
	assert.Contains(t, src, "binary.BigEndian.Uint16(p.cur.Bytes()[0:2])")
	assert.Contains(t, src, "func (p *Udp) SetSrcPort(v uint16)")
}

func TestGenerateUdpPacketLenCheck(t *testing.T) {
	src := generateSrc(t, udpSrc)
	assert.Contains(t, src, "does not match packet_len")
	assert.Contains(t, src, "uint64(p.Length_())")
}

func TestGenerateBitPackedField(t *testing.T) {
	src := generateSrc(t, `packet Vxlan {
        header = [
            flags = Field { bit = 8 },
            reserved1 = Field { bit = 24, repr = u32 },
            vni = Field { bit = 24, repr = u32 },
            reserved2 = Field { bit = 8 },
        ],
    }`)
	assert.Contains(t, src, "func (p *Vxlan) Vni() uint32")
	assert.Contains(t, src, "pktbuf.GetBitsBE(p.cur.Bytes(), 32, 24)")
	assert.Contains(t, src, "func (p *Vxlan) SetVni(v uint32)")
	assert.Contains(t, src, "pktbuf.SetBitsBE(p.cur.Bytes(), 32, 24, uint64(v))")
}

func TestGenerateByteArrayField(t *testing.T) {
	src := generateSrc(t, `packet P { header = [ mac = Field { bit = 48, repr = &[u8] } ] }`)
	assert.Contains(t, src, "func (p *P) Mac() []byte")
	assert.Contains(t, src, "return p.cur.Bytes()[0:6]")
	assert.Contains(t, src, "func (p *P) SetMac(v []byte)")
}

func TestGenerateGenFalseSuppressesAccessor(t *testing.T) {
	src := generateSrc(t, `packet P { header = [ a = Field { bit = 8, gen = false }, b = Field { bit = 8 } ] }`)
	assert.NotContains(t, src, "func (p *P) A()")
	assert.Contains(t, src, "func (p *P) B()")
}

func TestGenerateFixedDefaultChecked(t *testing.T) {
	src := generateSrc(t, `packet MssOption {
        header = [
            type_ = Field { bit = 8, default = @2 },
            len = Field { bit = 8, default = @4 },
            mss = Field { bit = 16 },
        ],
    }`)
	assert.Contains(t, src, "must be 2, got")
	assert.Contains(t, src, "must be 4, got")
}

func TestGenerateBuildMessageAppliesDefaults(t *testing.T) {
	src := generateSrc(t, `packet MssOption {
        header = [
            type_ = Field { bit = 8, default = @2 },
            len = Field { bit = 8, default = @4 },
            mss = Field { bit = 16 },
        ],
    }`)
	assert.Contains(t, src, "func BuildMssOption() *MssOption")
	assert.Contains(t, src, "p.SetType_(uint8(2))")
	assert.Contains(t, src, "p.SetLen(uint8(4))")
}

func TestGenerateDeferredHeaderLen(t *testing.T) {
	src := generateSrc(t, `packet P { header = [ a = Field { bit = 8 } ], length = [ header_len = ] }`)
	assert.Contains(t, src, "return pHeaderLenUser(p)")
}

func TestGenerateArithmeticHeaderLen(t *testing.T) {
	src := generateSrc(t, `packet P {
        header = [ version3_len = Field { bit = 16 } ],
        length = [ header_len = version3_len + 38 ]
    }`)
	assert.Contains(t, src, "return int((uint64(p.Version3_len()) + uint64(38)))")
}

func TestGenerateGroupDispatch(t *testing.T) {
	src := generateSrc(t, `
packet EtherFrame { header = [ ethertype = Field { bit = 16 } ], cond = ( ethertype == 0x0600.. ) }
packet EtherFrameDot3 { header = [ ethertype = Field { bit = 16 } ], cond = ( ethertype == ..=0x05DC ) }
group EthernetFrame = { members = [ EtherFrame, EtherFrameDot3 ] }
`)
	assert.Contains(t, src, "type EthernetFrame interface")
	assert.Contains(t, src, "func (*EtherFrame) isEthernetFrame() {}")
	assert.Contains(t, src, "func ParseEthernetFrame(buf []byte) (EthernetFrame, error)")
	assert.Contains(t, src, "disc >= 1536")
}

func TestGenerateGroupIterator(t *testing.T) {
	src := generateSrc(t, `
packet A { header = [ t = Field { bit = 8 } ], cond = ( t == 1 ), length = [ header_len = ], enable_iter = true }
packet B { header = [ t = Field { bit = 8 } ], cond = ( t == 2 ), length = [ header_len = ], enable_iter = true }
group G = { members = [ A, B ], enable_iter = true }
`)
	assert.Contains(t, src, "type GIter struct")
	assert.Contains(t, src, "func NewGIter(buf []byte) *GIter")
	assert.Contains(t, src, "func (it *GIter) Next() (G, bool)")
}

func TestGenerateLeadingAndTrailingCodeSpliced(t *testing.T) {
	src := generateSrc(t, "%% type Custom uint8 %%\npacket P { header = [ a = Field { bit = 8 } ] }\n%% func helper() {} %%\n")
	assert.Contains(t, src, "type Custom uint8")
	assert.Contains(t, src, "func helper() {}")
}
