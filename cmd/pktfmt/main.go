// Command pktfmt compiles a .pktfmt header-layout description into a Go
// source file of zero-copy accessors.
package main

import (
	"fmt"
	"os"

	"github.com/ogier/pflag"

	"github.com/duanjp8617/pktfmt/internal/compiler"
	"github.com/duanjp8617/pktfmt/internal/diag"
)

func main() {
	outputFileName := pflag.StringP("output", "o", "", "output file (required)")
	pkgName := pflag.StringP("package", "p", "main", "package name for the generated file")
	pflag.Parse()

	if pflag.NArg() != 1 || *outputFileName == "" {
		printUsage()
		os.Exit(1)
	}
	inputFileName := pflag.Arg(0)

	src, err := os.ReadFile(inputFileName)
	if err != nil {
		showError(fmt.Errorf("cannot read %s: %w", inputFileName, err))
		os.Exit(1)
	}

	res := compiler.Compile(string(src), *pkgName)
	if res.Diagnostic != nil {
		fmt.Fprint(os.Stderr, diag.Render(inputFileName, string(src), res.Diagnostic))
		os.Exit(1)
	}

	if err := os.WriteFile(*outputFileName, res.Source, 0o644); err != nil {
		showError(fmt.Errorf("cannot write %s: %w", *outputFileName, err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: pktfmt <input.pktfmt> -o <output.go> [-p package]")
	pflag.PrintDefaults()
}

func showError(err error) {
	fmt.Fprintf(os.Stderr, "pktfmt: %s\n", err.Error())
}
