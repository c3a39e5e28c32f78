// Package css implements the tokenizer, the permissive rule tree and the
// serializer the transpiler is built on. Tokenization follows CSS Syntax
// Module Level 3; everything the grammar does not recognize is preserved
// token for token so unrelated author CSS survives a round trip unchanged.
package css

import (
	"fmt"
	"strings"
)

// Kind identifies a token class.
type Kind int

const (
	KindEOF Kind = iota
	KindIdent
	KindFunction // ident immediately followed by "(" which is part of the token
	KindAtKeyword
	KindHash
	KindString
	KindBadString
	KindURL
	KindBadURL
	KindDelim
	KindNumber
	KindPercentage
	KindDimension
	KindWhitespace // also covers comments, raw text retained
	KindCDO
	KindCDC
	KindColon
	KindSemicolon
	KindComma
	KindOpenBracket
	KindCloseBracket
	KindOpenParen
	KindCloseParen
	KindOpenBrace
	KindCloseBrace
)

var kindNames = []string{
	"eof", "ident", "function", "at-keyword", "hash", "string", "bad-string",
	"url", "bad-url", "delim", "number", "percentage", "dimension",
	"whitespace", "CDO", "CDC", "colon", "semicolon", "comma",
	"[", "]", "(", ")", "{", "}",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Token is a single lexed token. Raw always holds the exact source text so
// serialization can reproduce the input; numeric tokens additionally carry
// the parsed value, unit and whether the syntax was integral.
type Token struct {
	Kind    Kind
	Raw     string
	Start   int     // byte offset in the tokenized source
	Value   float64 // numbers, percentages and dimensions
	Integer bool    // number syntax had no fraction or exponent
	Unit    string  // decoded dimension unit
}

// End returns the byte offset just past the token in the tokenized source.
func (t Token) End() int {
	return t.Start + len(t.Raw)
}

// Name returns the decoded identifier text of ident, function, at-keyword
// and hash tokens, and the raw text of everything else.
func (t Token) Name() string {
	switch t.Kind {
	case KindIdent:
		return decodeEscapes(t.Raw)
	case KindFunction:
		return decodeEscapes(t.Raw[:len(t.Raw)-1])
	case KindAtKeyword, KindHash:
		return decodeEscapes(t.Raw[1:])
	}
	return t.Raw
}

// StringValue returns the decoded content of string and url tokens.
func (t Token) StringValue() string {
	raw := t.Raw
	switch t.Kind {
	case KindString:
		if len(raw) >= 2 {
			return decodeEscapes(raw[1 : len(raw)-1])
		}
	case KindURL:
		start, end := 4, len(raw)-1
		for start < end && isWhitespace(rune(raw[start])) {
			start++
		}
		for start < end && isWhitespace(rune(raw[end-1])) {
			end--
		}
		return decodeEscapes(raw[start:end])
	}
	return raw
}

// IsIdent reports whether the token is an ident matching name, ignoring case.
func (t Token) IsIdent(name string) bool {
	return t.Kind == KindIdent && strings.EqualFold(t.Name(), name)
}

// IsDelim reports whether the token is the given delimiter code point.
func (t Token) IsDelim(c byte) bool {
	return t.Kind == KindDelim && len(t.Raw) == 1 && t.Raw[0] == c
}

// mirror returns the closing kind matching an opening bracket kind, or EOF
// for tokens that do not open a block.
func (k Kind) mirror() Kind {
	switch k {
	case KindOpenBracket:
		return KindCloseBracket
	case KindOpenParen, KindFunction:
		return KindCloseParen
	case KindOpenBrace:
		return KindCloseBrace
	}
	return KindEOF
}
