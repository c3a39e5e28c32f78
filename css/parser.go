package css

// The parser is deliberately permissive. It never fails: any construct it
// does not recognize is retained verbatim as a Raw rule or as preserved
// tokens inside preludes and values, so transforming a stylesheet leaves
// unrelated author CSS untouched.

type parser struct {
	tokens []Token
	pos    int
}

// Parse parses src into a stylesheet tree.
func Parse(src string) *Sheet {
	p := &parser{tokens: TokenizeAll(src)}
	return &Sheet{RuleList: *p.parseRuleList(KindEOF)}
}

// ParseComponents parses src into a list of component values. Useful for
// building preludes and declaration values from generated text.
func ParseComponents(src string) []Component {
	p := &parser{tokens: TokenizeAll(src)}
	return p.parseComponents(KindEOF)
}

// at returns the token at the given lookahead distance without consuming it.
// Reads past the end return the EOF token.
func (p *parser) at(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) consume() Token {
	t := p.at(0)
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

// parseRuleList consumes rules until the terminator kind (EOF for the top
// level, a closing brace for blocks). The terminator itself is consumed.
// Whitespace and stray semicolons between rules are dropped; rules themselves
// keep their tokens verbatim.
func (p *parser) parseRuleList(term Kind) *RuleList {
	list := &RuleList{}
	for {
		switch p.at(0).Kind {
		case term, KindEOF:
			p.consume()
			return list
		case KindWhitespace, KindSemicolon:
			p.consume()
		case KindCDO, KindCDC:
			// HTML comment markers are dropped at the top level only
			if term == KindEOF {
				p.consume()
				continue
			}
			list.Rules = append(list.Rules, p.parseRuleOrDeclaration(term))
		case KindAtKeyword:
			list.Rules = append(list.Rules, p.parseAtRule())
		default:
			list.Rules = append(list.Rules, p.parseRuleOrDeclaration(term))
		}
	}
}

func (p *parser) parseAtRule() Rule {
	keyword := p.consume()
	var prelude []Component
	for {
		switch p.at(0).Kind {
		case KindOpenBrace:
			p.consume()
			block := p.parseRuleList(KindCloseBrace)
			return Rule{At: &AtRule{Keyword: keyword, Prelude: prelude, Block: block}}
		case KindSemicolon:
			p.consume()
			return Rule{At: &AtRule{Keyword: keyword, Prelude: prelude}}
		case KindEOF, KindCloseBrace:
			// unterminated statement form, do not eat the closer
			return Rule{At: &AtRule{Keyword: keyword, Prelude: prelude}}
		default:
			prelude = append(prelude, p.parseComponent())
		}
	}
}

// parseRuleOrDeclaration buffers component values until a top-level { starts
// a qualified rule block, or a ; (or the list terminator) ends the run. The
// ended run is interpreted as a declaration when it has that shape and is
// preserved raw otherwise.
func (p *parser) parseRuleOrDeclaration(term Kind) Rule {
	var buf []Component
	for {
		switch p.at(0).Kind {
		case KindOpenBrace:
			p.consume()
			block := p.parseRuleList(KindCloseBrace)
			return Rule{Qualified: &QualifiedRule{Prelude: buf, Block: *block}}
		case KindSemicolon:
			p.consume()
			return interpretRun(buf)
		case term, KindEOF:
			// run ends at the list boundary, leave the terminator alone
			return interpretRun(buf)
		default:
			buf = append(buf, p.parseComponent())
		}
	}
}

// parseComponent consumes one component value, descending into blocks and
// functions. Unmatched closing brackets are preserved as plain tokens.
func (p *parser) parseComponent() Component {
	tok := p.consume()
	mirror := tok.Kind.mirror()
	if mirror == KindEOF {
		return Component{Token: tok}
	}
	children := p.parseComponents(mirror)
	return Component{Token: tok, Children: children}
}

// parseComponents consumes component values up to and including the
// terminator kind. An unterminated block runs to the end of input.
func (p *parser) parseComponents(term Kind) []Component {
	children := []Component{}
	for {
		switch p.at(0).Kind {
		case term, KindEOF:
			p.consume()
			return children
		default:
			children = append(children, p.parseComponent())
		}
	}
}

// AsDeclaration interprets a component run as a declaration, returning nil
// when it does not have that shape.
func AsDeclaration(cs []Component) *Declaration {
	return interpretDeclaration(cs)
}

// interpretRun decides what a component run between semicolons was: a
// declaration when it looks like one, raw preserved tokens otherwise.
func interpretRun(buf []Component) Rule {
	if d := interpretDeclaration(buf); d != nil {
		return Rule{Declaration: d}
	}
	return Rule{Raw: TrimWhitespace(buf)}
}

func interpretDeclaration(buf []Component) *Declaration {
	i := 0
	if i < len(buf) && buf[i].IsWhitespace() {
		i++
	}
	if i >= len(buf) || buf[i].Token.Kind != KindIdent {
		return nil
	}
	name := buf[i].Token
	i++
	if i < len(buf) && buf[i].IsWhitespace() {
		i++
	}
	if i >= len(buf) || buf[i].Token.Kind != KindColon {
		return nil
	}
	i++

	d := &Declaration{Name: name, Value: TrimWhitespace(buf[i:])}
	d.Value, d.Important = stripImportant(d.Value)
	return d
}

// stripImportant removes a trailing !important (with surrounding whitespace)
// from a value, reporting whether it was present.
func stripImportant(value []Component) ([]Component, bool) {
	end := len(value)
	for end > 0 && value[end-1].IsWhitespace() {
		end--
	}
	if end < 2 {
		return value, false
	}
	if !value[end-1].Token.IsIdent("important") {
		return value, false
	}
	bang := end - 2
	for bang > 0 && value[bang].IsWhitespace() {
		bang--
	}
	if !value[bang].Token.IsDelim('!') {
		return value, false
	}
	// drop whitespace left dangling before the stripped tail, the serializer
	// re-inserts a single separating space
	for bang > 0 && value[bang-1].IsWhitespace() {
		bang--
	}
	return value[:bang], true
}
