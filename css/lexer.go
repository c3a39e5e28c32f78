package css

import (
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"
)

const eof = -1
const replacementCharacter = 0xFFFD

type lexer struct {
	src    string
	cp     rune // current code point, eof at the end of input
	offset int  // byte offset of cp
	next   int  // byte offset just past cp
	start  int  // byte offset of the token being lexed

	// numeric payload of the token being lexed
	value   float64
	integer bool
	unit    string
}

// Tokenize lexes src lazily, producing one token per pull. The sequence ends
// after the EOF token and can only be restarted by calling Tokenize again.
func Tokenize(src string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		lx := lexer{src: src}
		lx.step()
		for {
			tok := lx.lex()
			if !yield(tok) || tok.Kind == KindEOF {
				return
			}
		}
	}
}

// TokenizeAll collects every token of src including the trailing EOF token.
func TokenizeAll(src string) []Token {
	var tokens []Token
	for tok := range Tokenize(src) {
		tokens = append(tokens, tok)
	}
	return tokens
}

func (lx *lexer) step() {
	cp, width := utf8.DecodeRuneInString(lx.src[lx.next:])
	if width == 0 {
		cp = eof
	}
	lx.cp = cp
	lx.offset = lx.next
	lx.next += width
}

// peek returns the byte at the given distance past the current code point,
// or 0 past the end of input.
func (lx *lexer) peek(at int) byte {
	if lx.next+at < len(lx.src) {
		return lx.src[lx.next+at]
	}
	return 0
}

func (lx *lexer) token(kind Kind) Token {
	t := Token{
		Kind:  kind,
		Raw:   lx.src[lx.start:lx.offset],
		Start: lx.start,
	}
	switch kind {
	case KindNumber, KindPercentage, KindDimension:
		t.Value = lx.value
		t.Integer = lx.integer
		t.Unit = lx.unit
	}
	return t
}

func (lx *lexer) lex() Token {
	lx.start = lx.offset
	lx.value, lx.integer, lx.unit = 0, false, ""

	switch lx.cp {
	case eof:
		return lx.token(KindEOF)

	case ' ', '\t', '\n', '\r', '\f':
		lx.step()
		lx.consumeWhitespace()
		return lx.token(KindWhitespace)

	case '/':
		if lx.peekByteIs('*') {
			lx.step()
			lx.step()
			lx.consumeToEndOfComment()
			lx.consumeWhitespace()
			return lx.token(KindWhitespace)
		}
		lx.step()
		return lx.token(KindDelim)

	case '"', '\'':
		return lx.token(lx.consumeString())

	case '#':
		lx.step()
		if isNameContinue(lx.cp) || lx.isValidEscape() {
			lx.consumeName()
			return lx.token(KindHash)
		}
		return lx.token(KindDelim)

	case '(':
		lx.step()
		return lx.token(KindOpenParen)
	case ')':
		lx.step()
		return lx.token(KindCloseParen)
	case '[':
		lx.step()
		return lx.token(KindOpenBracket)
	case ']':
		lx.step()
		return lx.token(KindCloseBracket)
	case '{':
		lx.step()
		return lx.token(KindOpenBrace)
	case '}':
		lx.step()
		return lx.token(KindCloseBrace)
	case ',':
		lx.step()
		return lx.token(KindComma)
	case ':':
		lx.step()
		return lx.token(KindColon)
	case ';':
		lx.step()
		return lx.token(KindSemicolon)

	case '+', '.':
		if lx.wouldStartNumber() {
			return lx.token(lx.consumeNumeric())
		}
		lx.step()
		return lx.token(KindDelim)

	case '-':
		if lx.wouldStartNumber() {
			return lx.token(lx.consumeNumeric())
		}
		if lx.peek(0) == '-' && lx.peek(1) == '>' {
			lx.step()
			lx.step()
			lx.step()
			return lx.token(KindCDC)
		}
		if lx.wouldStartIdentifier() {
			return lx.token(lx.consumeIdentLike())
		}
		lx.step()
		return lx.token(KindDelim)

	case '<':
		if lx.peek(0) == '!' && lx.peek(1) == '-' && lx.peek(2) == '-' {
			lx.step()
			lx.step()
			lx.step()
			lx.step()
			return lx.token(KindCDO)
		}
		lx.step()
		return lx.token(KindDelim)

	case '@':
		lx.step()
		if lx.wouldStartIdentifier() {
			lx.consumeName()
			return lx.token(KindAtKeyword)
		}
		return lx.token(KindDelim)

	case '\\':
		if lx.isValidEscape() {
			return lx.token(lx.consumeIdentLike())
		}
		lx.step()
		return lx.token(KindDelim)

	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return lx.token(lx.consumeNumeric())

	default:
		if isNameStart(lx.cp) {
			return lx.token(lx.consumeIdentLike())
		}
		lx.step()
		return lx.token(KindDelim)
	}
}

func (lx *lexer) peekByteIs(c byte) bool {
	return lx.next < len(lx.src) && lx.src[lx.next] == c
}

// consumeWhitespace folds runs of whitespace and comments into one token.
func (lx *lexer) consumeWhitespace() {
	for {
		if isWhitespace(lx.cp) {
			lx.step()
		} else if lx.cp == '/' && lx.peekByteIs('*') {
			lx.step()
			lx.step()
			lx.consumeToEndOfComment()
		} else {
			return
		}
	}
}

func (lx *lexer) consumeToEndOfComment() {
	for {
		switch lx.cp {
		case '*':
			lx.step()
			if lx.cp == '/' {
				lx.step()
				return
			}
		case eof:
			// unterminated comment runs to the end of input
			return
		default:
			lx.step()
		}
	}
}

func (lx *lexer) isValidEscape() bool {
	if lx.cp != '\\' {
		return false
	}
	c, _ := utf8.DecodeRuneInString(lx.src[lx.next:])
	return !isNewline(c)
}

func (lx *lexer) wouldStartIdentifier() bool {
	if isNameStart(lx.cp) {
		return true
	}
	if lx.cp == '-' {
		c, w := utf8.DecodeRuneInString(lx.src[lx.next:])
		if isNameStart(c) || c == '-' {
			return true
		}
		if c == '\\' {
			c, _ = utf8.DecodeRuneInString(lx.src[lx.next+w:])
			return !isNewline(c)
		}
		return false
	}
	return lx.isValidEscape()
}

func (lx *lexer) wouldStartNumber() bool {
	switch {
	case lx.cp >= '0' && lx.cp <= '9':
		return true
	case lx.cp == '.':
		c := lx.peek(0)
		return c >= '0' && c <= '9'
	case lx.cp == '+' || lx.cp == '-':
		c := lx.peek(0)
		if c >= '0' && c <= '9' {
			return true
		}
		if c == '.' {
			c = lx.peek(1)
			return c >= '0' && c <= '9'
		}
	}
	return false
}

func (lx *lexer) consumeName() string {
	nameStart := lx.offset
	for isNameContinue(lx.cp) {
		lx.step()
	}
	raw := lx.src[nameStart:lx.offset]
	if !lx.isValidEscape() {
		return raw
	}
	sb := strings.Builder{}
	sb.WriteString(raw)
	sb.WriteRune(lx.consumeEscape())
	for {
		if isNameContinue(lx.cp) {
			sb.WriteRune(lx.cp)
			lx.step()
		} else if lx.isValidEscape() {
			sb.WriteRune(lx.consumeEscape())
		} else {
			return sb.String()
		}
	}
}

func (lx *lexer) consumeEscape() rune {
	lx.step() // backslash
	c := lx.cp
	if hex, ok := hexDigit(c); ok {
		lx.step()
		for range 5 {
			next, ok := hexDigit(lx.cp)
			if !ok {
				break
			}
			lx.step()
			hex = hex*16 + next
		}
		if isWhitespace(lx.cp) {
			lx.step()
		}
		if hex == 0 || (hex >= 0xD800 && hex <= 0xDFFF) || hex > 0x10FFFF {
			return replacementCharacter
		}
		return rune(hex)
	}
	if c == eof {
		return replacementCharacter
	}
	lx.step()
	return c
}

func (lx *lexer) consumeIdentLike() Kind {
	name := lx.consumeName()
	if lx.cp != '(' {
		return KindIdent
	}
	lx.step()
	if strings.EqualFold(name, "url") {
		for isWhitespace(lx.cp) {
			lx.step()
		}
		if lx.cp != '"' && lx.cp != '\'' {
			return lx.consumeURL()
		}
	}
	return KindFunction
}

func (lx *lexer) consumeURL() Kind {
	for {
		switch lx.cp {
		case ')':
			lx.step()
			return KindURL
		case eof:
			return KindBadURL
		case ' ', '\t', '\n', '\r', '\f':
			lx.step()
			for isWhitespace(lx.cp) {
				lx.step()
			}
			if lx.cp != ')' {
				return lx.consumeBadURL()
			}
			lx.step()
			return KindURL
		case '"', '\'', '(':
			return lx.consumeBadURL()
		case '\\':
			if !lx.isValidEscape() {
				return lx.consumeBadURL()
			}
			lx.consumeEscape()
		default:
			if isNonPrintable(lx.cp) {
				return lx.consumeBadURL()
			}
			lx.step()
		}
	}
}

func (lx *lexer) consumeBadURL() Kind {
	for {
		switch lx.cp {
		case ')':
			lx.step()
			return KindBadURL
		case eof:
			return KindBadURL
		case '\\':
			if lx.isValidEscape() {
				lx.consumeEscape()
				continue
			}
		}
		lx.step()
	}
}

func (lx *lexer) consumeString() Kind {
	quote := lx.cp
	lx.step()
	for {
		switch lx.cp {
		case '\\':
			lx.step()
			// handle Windows CRLF after the backslash
			if lx.cp == '\r' {
				lx.step()
				if lx.cp == '\n' {
					lx.step()
				}
				continue
			}
		case eof:
			return KindBadString
		case '\n', '\r', '\f':
			return KindBadString
		case quote:
			lx.step()
			return KindString
		}
		lx.step()
	}
}

func (lx *lexer) consumeNumeric() Kind {
	numStart := lx.offset
	lx.integer = true

	if lx.cp == '+' || lx.cp == '-' {
		lx.step()
	}
	for lx.cp >= '0' && lx.cp <= '9' {
		lx.step()
	}
	if lx.cp == '.' {
		lx.integer = false
		lx.step()
		for lx.cp >= '0' && lx.cp <= '9' {
			lx.step()
		}
	}
	if lx.cp == 'e' || lx.cp == 'E' {
		// look ahead to distinguish an exponent from a unit
		c := lx.peek(0)
		if c == '+' || c == '-' {
			c = lx.peek(1)
		}
		if c >= '0' && c <= '9' {
			lx.integer = false
			lx.step()
			if lx.cp == '+' || lx.cp == '-' {
				lx.step()
			}
			for lx.cp >= '0' && lx.cp <= '9' {
				lx.step()
			}
		}
	}

	lx.value, _ = strconv.ParseFloat(lx.src[numStart:lx.offset], 64)

	if lx.wouldStartIdentifier() {
		lx.unit = lx.consumeName()
		return KindDimension
	}
	if lx.cp == '%' {
		lx.step()
		return KindPercentage
	}
	return KindNumber
}

func isNameStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isNameContinue(c rune) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-'
}

func isNewline(c rune) bool {
	switch c {
	case '\n', '\r', '\f':
		return true
	}
	return false
}

func isWhitespace(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func hexDigit(c rune) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func isNonPrintable(c rune) bool {
	return c <= 0x08 || c == 0x0B || (c >= 0x0E && c <= 0x1F) || c == 0x7F
}

// decodeEscapes resolves backslash escapes in the inner text of a token.
func decodeEscapes(inner string) string {
	i := strings.IndexByte(inner, '\\')
	if i < 0 {
		return inner
	}

	sb := strings.Builder{}
	sb.WriteString(inner[:i])
	inner = inner[i:]

	for len(inner) > 0 {
		c, width := utf8.DecodeRuneInString(inner)
		inner = inner[width:]

		if c != '\\' {
			sb.WriteRune(c)
			continue
		}
		if len(inner) == 0 {
			sb.WriteRune(replacementCharacter)
			continue
		}

		c, width = utf8.DecodeRuneInString(inner)
		inner = inner[width:]
		hex, ok := hexDigit(c)
		if !ok {
			if c == '\n' || c == '\f' {
				continue // escaped newline joins lines inside strings
			}
			if c == '\r' {
				if len(inner) > 0 && inner[0] == '\n' {
					inner = inner[1:]
				}
				continue
			}
			sb.WriteRune(c)
			continue
		}

		for range 5 {
			if len(inner) == 0 {
				break
			}
			c, width = utf8.DecodeRuneInString(inner)
			next, ok := hexDigit(c)
			if !ok {
				break
			}
			inner = inner[width:]
			hex = hex*16 + next
		}
		// one whitespace code point after a hex escape is part of the escape
		if len(inner) > 0 {
			c, width = utf8.DecodeRuneInString(inner)
			if isWhitespace(c) {
				inner = inner[width:]
			}
		}
		if hex == 0 || (hex >= 0xD800 && hex <= 0xDFFF) || hex > 0x10FFFF {
			sb.WriteRune(replacementCharacter)
		} else {
			sb.WriteRune(rune(hex))
		}
	}
	return sb.String()
}
