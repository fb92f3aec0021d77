// Package pktbuf is the zero-copy buffer companion library that pktfmt's
// generated accessor code compiles against. A Cursor borrows a byte slice
// without copying it; CursorMut additionally allows in-place field writes.
// Neither type owns its backing storage — callers are responsible for the
// lifetime of the slice they hand in, the same contract the generated
// `parse`/`build` functions document per field.
package pktbuf

import "fmt"

// ErrTooShort is returned whenever a buffer is smaller than a header or
// length computation requires.
type ErrTooShort struct {
	Need int
	Have int
}

func (e *ErrTooShort) Error() string {
	return fmt.Sprintf("pktbuf: buffer too short: need %d bytes, have %d", e.Need, e.Have)
}

// Cursor is an immutable, zero-copy view over a byte slice.
type Cursor struct {
	buf []byte
}

// NewCursor wraps buf without copying it.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Len returns the number of bytes remaining in the view.
func (c *Cursor) Len() int { return len(c.buf) }

// Bytes returns the full backing slice. Callers must not retain it past the
// lifetime of whatever produced the Cursor.
func (c *Cursor) Bytes() []byte { return c.buf }

// Slice returns the [start:end) sub-view, sharing storage with c.
func (c *Cursor) Slice(start, end int) (*Cursor, error) {
	if start < 0 || end > len(c.buf) || start > end {
		return nil, &ErrTooShort{Need: end, Have: len(c.buf)}
	}
	return &Cursor{buf: c.buf[start:end]}, nil
}

// Require fails fast if fewer than n bytes remain, the same check every
// generated `parse` performs before touching header bytes.
func (c *Cursor) Require(n int) error {
	if len(c.buf) < n {
		return &ErrTooShort{Need: n, Have: len(c.buf)}
	}
	return nil
}

// CursorMut is a Cursor that also permits in-place writes, backing the
// setters and `build` functions generated code emits.
type CursorMut struct {
	buf []byte
}

// NewCursorMut wraps buf without copying it.
func NewCursorMut(buf []byte) *CursorMut { return &CursorMut{buf: buf} }

// Len returns the number of bytes remaining in the view.
func (c *CursorMut) Len() int { return len(c.buf) }

// Bytes returns the full backing slice.
func (c *CursorMut) Bytes() []byte { return c.buf }

// SliceMut returns the mutable [start:end) sub-view, sharing storage with c.
func (c *CursorMut) SliceMut(start, end int) (*CursorMut, error) {
	if start < 0 || end > len(c.buf) || start > end {
		return nil, &ErrTooShort{Need: end, Have: len(c.buf)}
	}
	return &CursorMut{buf: c.buf[start:end]}, nil
}

// Require fails fast if fewer than n bytes remain.
func (c *CursorMut) Require(n int) error {
	if len(c.buf) < n {
		return &ErrTooShort{Need: n, Have: len(c.buf)}
	}
	return nil
}

// AsCursor downgrades c to a read-only Cursor over the same storage.
func (c *CursorMut) AsCursor() *Cursor { return &Cursor{buf: c.buf} }
