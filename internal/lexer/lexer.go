// Package lexer turns .pktfmt source text into a token stream, the first
// phase of the pktfmt pipeline (spec §4.1).
package lexer

import (
	"strconv"

	"github.com/duanjp8617/pktfmt/internal/diag"
	"github.com/duanjp8617/pktfmt/internal/token"
)

// Lexer is a byte-offset driven, hand-tokenized scanner. It never backtracks
// across tokens; %% ... %% code blocks are the one place it switches into a
// verbatim-copy mode.
type Lexer struct {
	src []byte
	pos int
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: []byte(src)}
}

// Lex tokenizes the whole of src, stopping at the first lexical error.
// The returned slice always ends with an EOF token on success.
func Lex(src string) ([]token.Token, *diag.Diagnostic) {
	l := New(src)
	var toks []token.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) byteAt(off int) (byte, bool) {
	p := l.pos + off
	if p >= len(l.src) {
		return 0, false
	}
	return l.src[p], true
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool   { return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') }
func isIdentStart(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isIdentCont(b byte) bool  { return isIdentStart(b) || isDigit(b) }

// skipTrivia consumes whitespace and // line comments.
func (l *Lexer) skipTrivia() {
	for {
		b, ok := l.peekByte()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.pos++
		case b == '/' && func() bool { n, ok := l.byteAt(1); return ok && n == '/' }():
			for {
				b, ok := l.peekByte()
				if !ok || b == '\n' {
					break
				}
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) next() (token.Token, *diag.Diagnostic) {
	l.skipTrivia()

	start := l.pos
	b, ok := l.peekByte()
	if !ok {
		return token.Token{Kind: token.EOF, Span: diag.Span{Start: start, End: start}}, nil
	}

	switch {
	case b == '%' && peekIs(l, 1, '%'):
		return l.lexCode(start)
	case isIdentStart(b):
		return l.lexIdentOrKeyword(start), nil
	case isDigit(b):
		return l.lexNumber(start)
	}

	switch b {
	case '&':
		return l.lexAmpersand(start)
	case '|':
		return l.lexPipe(start)
	case '.':
		if peekIs(l, 1, '.') {
			l.pos += 2
			if peekIsHere(l, '=') {
				l.pos++
				return tok(token.DotDotEq, start, l.pos), nil
			}
			return tok(token.DotDot, start, l.pos), nil
		}
		return token.Token{}, diag.New(diag.BadCharacter, diag.Span{Start: start, End: start + 1}, "unrecognized character '.'")
	case '=':
		l.pos++
		if peekIsHere(l, '=') {
			l.pos++
			return tok(token.EqEq, start, l.pos), nil
		}
		return tok(token.Eq, start, l.pos), nil
	case '!':
		l.pos++
		if peekIsHere(l, '=') {
			l.pos++
			return tok(token.NotEq, start, l.pos), nil
		}
		return tok(token.Not, start, l.pos), nil
	case '>':
		l.pos++
		if peekIsHere(l, '=') {
			l.pos++
			return tok(token.GtEq, start, l.pos), nil
		}
		return tok(token.Gt, start, l.pos), nil
	case '<':
		l.pos++
		if peekIsHere(l, '=') {
			l.pos++
			return tok(token.LtEq, start, l.pos), nil
		}
		return tok(token.Lt, start, l.pos), nil
	case '@':
		l.pos++
		return tok(token.At, start, l.pos), nil
	case ',':
		l.pos++
		return tok(token.Comma, start, l.pos), nil
	case '(':
		l.pos++
		return tok(token.LParen, start, l.pos), nil
	case ')':
		l.pos++
		return tok(token.RParen, start, l.pos), nil
	case '{':
		l.pos++
		return tok(token.LBrace, start, l.pos), nil
	case '}':
		l.pos++
		return tok(token.RBrace, start, l.pos), nil
	case '[':
		l.pos++
		return tok(token.LBracket, start, l.pos), nil
	case ']':
		l.pos++
		return tok(token.RBracket, start, l.pos), nil
	case '+':
		l.pos++
		return tok(token.Plus, start, l.pos), nil
	case '-':
		l.pos++
		return tok(token.Minus, start, l.pos), nil
	case '*':
		l.pos++
		return tok(token.Star, start, l.pos), nil
	case '/':
		l.pos++
		return tok(token.Slash, start, l.pos), nil
	}

	return token.Token{}, diag.New(diag.BadCharacter, diag.Span{Start: start, End: start + 1}, "unrecognized character %q", string(b))
}

func (l *Lexer) lexAmpersand(start int) (token.Token, *diag.Diagnostic) {
	if peekIs(l, 1, '&') {
		l.pos += 2
		return tok(token.AndAnd, start, l.pos), nil
	}
	if l.pos+5 <= len(l.src) && string(l.src[l.pos:l.pos+5]) == "&[u8]" {
		l.pos += 5
		return tok(token.TySliceU8, start, l.pos), nil
	}
	return token.Token{}, diag.New(diag.BadCharacter, diag.Span{Start: start, End: start + 1}, "unrecognized character '&'")
}

func (l *Lexer) lexPipe(start int) (token.Token, *diag.Diagnostic) {
	if peekIs(l, 1, '|') {
		l.pos += 2
		return tok(token.OrOr, start, l.pos), nil
	}
	return token.Token{}, diag.New(diag.BadCharacter, diag.Span{Start: start, End: start + 1}, "unrecognized character '|'")
}

func (l *Lexer) lexCode(start int) (token.Token, *diag.Diagnostic) {
	l.pos += 2 // opening %%
	bodyStart := l.pos
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, diag.New(diag.UnterminatedCodeBlock, diag.Span{Start: start, End: len(l.src)}, "unterminated %%...%% code block")
		}
		if l.src[l.pos] == '%' && peekIs(l, 1, '%') {
			break
		}
		l.pos++
	}
	body := string(l.src[bodyStart:l.pos])
	l.pos += 2 // closing %%
	return token.Token{Kind: token.Code, Text: body, Span: diag.Span{Start: start, End: l.pos}}, nil
}

func (l *Lexer) lexIdentOrKeyword(start int) token.Token {
	for {
		b, ok := l.peekByte()
		if !ok || !isIdentCont(b) {
			break
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])
	span := diag.Span{Start: start, End: l.pos}

	if text == "true" || text == "false" {
		return token.Token{Kind: token.BoolLit, Text: text, Bool: text == "true", Span: span}
	}
	if kind, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kind, Text: text, Span: span}
	}
	return token.Token{Kind: token.Ident, Text: text, Span: span}
}

func (l *Lexer) lexNumber(start int) (token.Token, *diag.Diagnostic) {
	isHex := false
	if l.src[l.pos] == '0' && (peekIs(l, 1, 'x') || peekIs(l, 1, 'X')) {
		isHex = true
		l.pos += 2
		digitsStart := l.pos
		for {
			b, ok := l.peekByte()
			if !ok || !isHexDigit(b) {
				break
			}
			l.pos++
		}
		if l.pos == digitsStart {
			return token.Token{}, diag.New(diag.InvalidNumber, diag.Span{Start: start, End: l.pos}, "hex literal has no digits")
		}
	} else {
		for {
			b, ok := l.peekByte()
			if !ok || !isDigit(b) {
				break
			}
			l.pos++
		}
	}

	// A letter or underscore glued directly onto a number is ambiguous.
	if b, ok := l.peekByte(); ok && (isIdentStart(b)) {
		for {
			b, ok := l.peekByte()
			if !ok || !isIdentCont(b) {
				break
			}
			l.pos++
		}
		return token.Token{}, diag.New(diag.InvalidNumber, diag.Span{Start: start, End: l.pos}, "invalid numeric literal %q", string(l.src[start:l.pos]))
	}

	text := string(l.src[start:l.pos])
	base := 10
	if isHex {
		base = 0 // strconv recognizes the 0x prefix
	}
	v, convErr := strconv.ParseUint(text, base, 64)
	if convErr != nil {
		return token.Token{}, diag.New(diag.InvalidNumber, diag.Span{Start: start, End: l.pos}, "invalid numeric literal %q: %s", text, convErr.Error())
	}
	return token.Token{Kind: token.Int, Text: text, Int: v, Span: diag.Span{Start: start, End: l.pos}}, nil
}

func tok(kind token.Kind, start, end int) token.Token {
	return token.Token{Kind: kind, Span: diag.Span{Start: start, End: end}}
}

func peekIs(l *Lexer, off int, want byte) bool {
	b, ok := l.byteAt(off)
	return ok && b == want
}

func peekIsHere(l *Lexer, want byte) bool {
	b, ok := l.peekByte()
	return ok && b == want
}
