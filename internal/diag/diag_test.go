package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAdd(t *testing.T) {
	var c Collector
	c.Add(nil)
	assert.False(t, c.HasErrors())

	c.Addf(DuplicateField, Span{Start: 3, End: 5}, "field %q declared twice", "foo")
	require.True(t, c.HasErrors())
	require.Len(t, c.Diagnostics, 1)
	assert.Equal(t, DuplicateField, c.First().Kind)
	assert.Equal(t, `field "foo" declared twice`, c.First().Message)
}

func TestRenderPointsAtOffendingColumn(t *testing.T) {
	src := "packet Foo {\n  header = [ a = Field { bit = 1 } ]\n}\n"
	d := New(DuplicateField, Span{Start: 15, End: 16}, "field %q declared twice", "a")

	out := Render("udp.pktfmt", src, d)
	want := "error: duplicate field\n" +
		" --> udp.pktfmt:2:3\n" +
		"  |\n" +
		"  header = [ a = Field { bit = 1 } ]\n" +
		"  |   ^\n" +
		"field \"a\" declared twice\n"
	assert.Equal(t, want, out)
}

func TestRenderClampsOutOfRangeOffsets(t *testing.T) {
	src := "abc"
	d := New(BadCharacter, Span{Start: 999, End: 999}, "ran off the end")
	out := Render("x.pktfmt", src, d)
	assert.Contains(t, out, "x.pktfmt:1:4")
}
