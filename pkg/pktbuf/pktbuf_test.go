package pktbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorSliceSharesStorage(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	c := NewCursor(buf)
	sub, err := c.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, sub.Bytes())
	buf[1] = 0xff
	assert.Equal(t, byte(0xff), sub.Bytes()[0])
}

func TestCursorSliceOutOfRange(t *testing.T) {
	c := NewCursor([]byte{1, 2})
	_, err := c.Slice(0, 5)
	require.Error(t, err)
	var tooShort *ErrTooShort
	assert.ErrorAs(t, err, &tooShort)
}

func TestCursorRequire(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	assert.NoError(t, c.Require(3))
	assert.Error(t, c.Require(4))
}

func TestCursorMutSliceWritesThrough(t *testing.T) {
	buf := make([]byte, 4)
	c := NewCursorMut(buf)
	sub, err := c.SliceMut(1, 3)
	require.NoError(t, err)
	sub.Bytes()[0] = 9
	assert.Equal(t, byte(9), buf[1])
}

func TestCursorMutAsCursor(t *testing.T) {
	c := NewCursorMut([]byte{1, 2, 3})
	ro := c.AsCursor()
	assert.Equal(t, 3, ro.Len())
}

func TestGetBitsBEWholeByte(t *testing.T) {
	buf := []byte{0xAB}
	assert.Equal(t, uint64(0xAB), GetBitsBE(buf, 0, 8))
}

func TestGetBitsBESubByte(t *testing.T) {
	// 1010 0000 -> top nibble is 0b1010 = 10
	buf := []byte{0b1010_0000}
	assert.Equal(t, uint64(0b1010), GetBitsBE(buf, 0, 4))
	assert.Equal(t, uint64(0b0000), GetBitsBE(buf, 4, 4))
}

func TestGetBitsBEStraddlesBytes(t *testing.T) {
	// bits 4..12 (8 bits) straddling two bytes.
	buf := []byte{0b0000_1111, 0b0000_0000}
	assert.Equal(t, uint64(0b1111_0000), GetBitsBE(buf, 4, 8))
}

func TestSetBitsBERoundTrips(t *testing.T) {
	buf := make([]byte, 2)
	SetBitsBE(buf, 4, 8, 0xAB)
	assert.Equal(t, uint64(0xAB), GetBitsBE(buf, 4, 8))
}

func TestSetBitsBEPreservesSurroundingBits(t *testing.T) {
	buf := []byte{0b1111_1010, 0b1011_1111}
	SetBitsBE(buf, 4, 8, 0)
	assert.Equal(t, byte(0b1111_0000), buf[0])
	assert.Equal(t, byte(0b0000_1111), buf[1])
}
