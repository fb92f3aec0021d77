// Package compiler orchestrates the read-lex-parse-check-emit pipeline the
// CLI driver invokes, the same role holo-build's Parser.Parse played for
// its TOML-to-Package pipeline.
package compiler

import (
	"go/format"

	"github.com/duanjp8617/pktfmt/internal/codegen"
	"github.com/duanjp8617/pktfmt/internal/diag"
	"github.com/duanjp8617/pktfmt/internal/lexer"
	"github.com/duanjp8617/pktfmt/internal/parser"
	"github.com/duanjp8617/pktfmt/internal/sema"
)

// Result is the outcome of compiling one source file.
type Result struct {
	// Source is the generated Go source, set iff Diagnostic is nil.
	Source []byte
	// Diagnostic is the first error encountered in any phase, or nil on
	// success. pktfmt never reports more than one (spec §7: "every error is
	// recoverable at the unit level only").
	Diagnostic *diag.Diagnostic
}

// Compile runs src (the contents of one .pktfmt file) through every phase
// and renders the result as Go source in package pkgName.
func Compile(src, pkgName string) Result {
	toks, lexErr := lexer.Lex(src)
	if lexErr != nil {
		return Result{Diagnostic: lexErr}
	}

	unit, parseErr := parser.Parse(toks)
	if parseErr != nil {
		return Result{Diagnostic: parseErr}
	}

	checked, semaErr := sema.Check(unit)
	if semaErr != nil {
		return Result{Diagnostic: semaErr}
	}

	generated, err := codegen.Generate(checked, pkgName)
	if err != nil {
		return Result{Diagnostic: diag.New(diag.Kind("codegen error"), diag.Span{}, "%v", err)}
	}

	// gofmt the output when possible; raw-code splices are opaque to pktfmt
	// and may not be independently valid Go, so a formatting failure falls
	// back to the unformatted source rather than failing the whole compile.
	if formatted, err := format.Source(generated); err == nil {
		generated = formatted
	}

	return Result{Source: generated}
}
