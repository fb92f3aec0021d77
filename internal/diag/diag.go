// Package diag defines the span-carrying diagnostics used by every phase of
// the pktfmt pipeline, and renders them into the stable stderr format the
// driver writes on failure.
package diag

import (
	"fmt"
	"strings"
)

// Span is a half-open byte-offset range into the source file.
type Span struct {
	Start int
	End   int
}

// Kind identifies the taxonomy of a diagnostic, matching the lex, parse and
// semantic failure kinds.
type Kind string

// Lex errors.
const (
	UnterminatedCodeBlock Kind = "unterminated code block"
	InvalidNumber         Kind = "invalid numeric literal"
	BadCharacter          Kind = "unrecognized character"
)

// Parse errors.
const (
	UnexpectedToken    Kind = "unexpected token"
	UnexpectedEOF      Kind = "unexpected end of input"
	InvalidLengthShape Kind = "invalid length shape"
)

// Semantic errors.
const (
	DuplicateField     Kind = "duplicate field"
	BitWidthMismatch   Kind = "bit width mismatch"
	DefaultOutOfRange  Kind = "default out of range"
	UnknownField       Kind = "unknown field"
	LengthCycle        Kind = "length cycle"
	EmptyRange         Kind = "empty range"
	CondOnNonIntField  Kind = "cond on non-integer field"
	IterNotPermitted   Kind = "enable_iter not permitted"
	GroupOverlap       Kind = "group overlap"
	UnknownGroupMember Kind = "unknown group member"
	MessageMissingCond Kind = "message missing cond"
)

// Diagnostic is one compiler error. The compiler only ever reports the
// first one it encounters; see Collector.
type Diagnostic struct {
	Kind    Kind
	Span    Span
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// New builds a Diagnostic with a formatted message, mirroring the
// fmt.Errorf-style convenience the teacher's ErrorCollector offered.
func New(kind Kind, span Span, format string, args ...interface{}) *Diagnostic {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Diagnostic{Kind: kind, Span: span, Message: msg}
}

// Collector aggregates diagnostics. pktfmt itself only ever keeps the first
// (§7: "every error is recoverable at the unit level only"), but the
// Collector still accumulates so that callers that want every error a phase
// can find (e.g. tests enumerating a whole class of malformed inputs) are
// free to do so, the same way the teacher's ErrorCollector let main.go print
// every validation error it found before exiting.
type Collector struct {
	Diagnostics []*Diagnostic
}

// Add appends a diagnostic if non-nil.
func (c *Collector) Add(d *Diagnostic) {
	if d != nil {
		c.Diagnostics = append(c.Diagnostics, d)
	}
}

// Addf builds and appends a diagnostic.
func (c *Collector) Addf(kind Kind, span Span, format string, args ...interface{}) {
	c.Add(New(kind, span, format, args...))
}

// First returns the earliest-added diagnostic, or nil.
func (c *Collector) First() *Diagnostic {
	if len(c.Diagnostics) == 0 {
		return nil
	}
	return c.Diagnostics[0]
}

// HasErrors reports whether any diagnostic was collected.
func (c *Collector) HasErrors() bool {
	return len(c.Diagnostics) > 0
}

// locate turns a byte offset into a 1-based (line, column) pair and returns
// the full text of that line, the way an editor gutter would.
func locate(src string, offset int) (line, col int, excerpt string) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(src) {
		offset = len(src)
	}
	line = 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := len(src)
	if idx := strings.IndexByte(src[lineStart:], '\n'); idx >= 0 {
		lineEnd = lineStart + idx
	}
	excerpt = strings.TrimSuffix(src[lineStart:lineEnd], "\r")
	col = offset - lineStart + 1
	return line, col, excerpt
}

// Render formats a diagnostic in pktfmt's stable stderr format:
//
//	error: <kind>
//	 --> <file>:<line>:<col>
//	  |
//	<src excerpt>
//	  | <caret>
//	<message>
func Render(filename, src string, d *Diagnostic) string {
	line, col, excerpt := locate(src, d.Span.Start)
	caret := strings.Repeat(" ", max(col-1, 0)) + "^"
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", d.Kind)
	fmt.Fprintf(&b, " --> %s:%d:%d\n", filename, line, col)
	b.WriteString("  |\n")
	fmt.Fprintf(&b, "%s\n", excerpt)
	fmt.Fprintf(&b, "  | %s\n", caret)
	fmt.Fprintf(&b, "%s\n", d.Message)
	return b.String()
}
