package css_test

import (
	"testing"

	"github.com/devknoll/container-query-polyfill/css"
)

// kindsOf lexes src and returns the token kinds without the trailing EOF.
func kindsOf(src string) []css.Kind {
	var kinds []css.Kind
	for _, tok := range css.TokenizeAll(src) {
		if tok.Kind == css.KindEOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func TestTokenizeKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []css.Kind
	}{
		{"ident", "foo", []css.Kind{css.KindIdent}},
		{"dashed ident", "-foo", []css.Kind{css.KindIdent}},
		{"custom property name", "--foo", []css.Kind{css.KindIdent}},
		{"at keyword", "@container", []css.Kind{css.KindAtKeyword}},
		{"hash", "#abc", []css.Kind{css.KindHash}},
		{"function", "calc(", []css.Kind{css.KindFunction}},
		{"number", "42", []css.Kind{css.KindNumber}},
		{"negative fraction", "-4.2", []css.Kind{css.KindNumber}},
		{"percentage", "42%", []css.Kind{css.KindPercentage}},
		{"dimension", "42px", []css.Kind{css.KindDimension}},
		{"exponent", "4e2", []css.Kind{css.KindNumber}},
		{"exponent unit lookalike", "4em", []css.Kind{css.KindDimension}},
		{"string", `"hello"`, []css.Kind{css.KindString}},
		{"unterminated string", `"hello`, []css.Kind{css.KindBadString}},
		{"url", "url(foo.png)", []css.Kind{css.KindURL}},
		{"url with spaces inside", "url( foo.png )", []css.Kind{css.KindURL}},
		{"quoted url is a function", `url("foo.png")`, []css.Kind{css.KindFunction, css.KindString, css.KindCloseParen}},
		{"bad url", "url(fo o.png)", []css.Kind{css.KindBadURL}},
		{"cdo cdc", "<!-- -->", []css.Kind{css.KindCDO, css.KindWhitespace, css.KindCDC}},
		{"delims", "* > ~", []css.Kind{css.KindDelim, css.KindWhitespace, css.KindDelim, css.KindWhitespace, css.KindDelim}},
		{"colon semicolon comma", ":;,", []css.Kind{css.KindColon, css.KindSemicolon, css.KindComma}},
		{"brackets", "[](){}", []css.Kind{css.KindOpenBracket, css.KindCloseBracket, css.KindOpenParen, css.KindCloseParen, css.KindOpenBrace, css.KindCloseBrace}},
		{"comment folds to whitespace", "/* note */", []css.Kind{css.KindWhitespace}},
		{"comment glued to whitespace", " /* note */ ", []css.Kind{css.KindWhitespace}},
		{"slash alone", "a/b", []css.Kind{css.KindIdent, css.KindDelim, css.KindIdent}},
		{"declaration", "width:10px;", []css.Kind{css.KindIdent, css.KindColon, css.KindDimension, css.KindSemicolon}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kindsOf(tt.src)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) kinds = %v, want %v", tt.src, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q) kind[%d] = %v, want %v", tt.src, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTokenizeNumeric(t *testing.T) {
	tests := []struct {
		src     string
		value   float64
		integer bool
		unit    string
	}{
		{"42", 42, true, ""},
		{"-17", -17, true, ""},
		{"+3", 3, true, ""},
		{"4.25", 4.25, false, ""},
		{".5", 0.5, false, ""},
		{"1e2", 100, false, ""},
		{"1E-2", 0.01, false, ""},
		{"42px", 42, true, "px"},
		{"1.5em", 1.5, false, "em"},
		{"200cqw", 200, true, "cqw"},
		{"30%", 30, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tok := css.TokenizeAll(tt.src)[0]
			if tok.Value != tt.value {
				t.Errorf("value = %v, want %v", tok.Value, tt.value)
			}
			if tok.Integer != tt.integer {
				t.Errorf("integer = %v, want %v", tok.Integer, tt.integer)
			}
			if tok.Unit != tt.unit {
				t.Errorf("unit = %q, want %q", tok.Unit, tt.unit)
			}
		})
	}
}

func TestTokenRawPreserved(t *testing.T) {
	src := `@media (min-width: 30em) { .a { color: #fff; } } /* tail */`
	var rebuilt string
	for _, tok := range css.TokenizeAll(src) {
		rebuilt += tok.Raw
	}
	if rebuilt != src {
		t.Errorf("concatenated raw text = %q, want %q", rebuilt, src)
	}
}

func TestTokenizeLazy(t *testing.T) {
	// pulling a couple of tokens must not require lexing the whole input
	count := 0
	for range css.Tokenize("a b c d e f") {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("pulled %d tokens, want 2", count)
	}
}

func TestTokenName(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"container", "container"},
		{"@media", "media"},
		{"#a1", "a1"},
		{"calc(", "calc"},
		{`\63 olor`, "color"},
		{"-webkit-box", "-webkit-box"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tok := css.TokenizeAll(tt.src)[0]
			if got := tok.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenStringValue(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`"say \"hi\""`, `say "hi"`},
		{`"\26 more"`, "&more"},
		{"url(image.png)", "image.png"},
		{"url(  spaced.png  )", "spaced.png"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tok := css.TokenizeAll(tt.src)[0]
			if got := tok.StringValue(); got != tt.want {
				t.Errorf("StringValue() = %q, want %q", got, tt.want)
			}
		})
	}
}
