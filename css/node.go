package css

import "strings"

// Component is a single component value: a preserved token, or a block or
// function holding nested component values. Children is meaningful only when
// Token opens a block ({, [, ( or a function); the closing bracket is implied
// by the opening kind and never stored.
type Component struct {
	Token    Token
	Children []Component
}

// IsBlock reports whether the component nests children.
func (c Component) IsBlock() bool {
	return c.Token.Kind.mirror() != KindEOF
}

// IsWhitespace reports whether the component is a whitespace or comment run.
func (c Component) IsWhitespace() bool {
	return c.Token.Kind == KindWhitespace
}

// Rule is a single item in a rule list. Exactly one of At, Qualified,
// Declaration or Raw is meaningful: at-rules and qualified rules can nest
// further lists, declarations appear inside blocks, and Raw preserves token
// runs that fit no recognized shape.
type Rule struct {
	At          *AtRule
	Qualified   *QualifiedRule
	Declaration *Declaration
	Raw         []Component
}

// AtRule is an at-rule in either block form (@media ... { ... }) or
// statement form (@import ...;), in which case Block is nil.
type AtRule struct {
	Keyword Token       // the at-keyword token
	Prelude []Component // verbatim tokens between the keyword and the block or semicolon
	Block   *RuleList
}

// Name returns the decoded at-rule name without the leading @, lower-cased.
func (r *AtRule) Name() string {
	return strings.ToLower(r.Keyword.Name())
}

// QualifiedRule is a prelude (usually a selector list) followed by a block.
type QualifiedRule struct {
	Prelude []Component
	Block   RuleList
}

// Declaration is a property declaration. Whitespace around the colon and at
// the ends of the value is normalized away; interior value tokens stay
// verbatim, with any trailing !important stripped into the flag.
type Declaration struct {
	Name      Token
	Value     []Component
	Important bool
}

// IsCustomProperty reports whether the declaration sets a custom property.
func (d *Declaration) IsCustomProperty() bool {
	return strings.HasPrefix(d.Name.Raw, "--")
}

// RuleList is the parsed content of a block or of a whole stylesheet.
type RuleList struct {
	Rules []Rule
}

// Sheet is a parsed stylesheet.
type Sheet struct {
	RuleList
}

// TrimWhitespace returns cs without leading and trailing whitespace components.
func TrimWhitespace(cs []Component) []Component {
	start, end := 0, len(cs)
	for start < end && cs[start].IsWhitespace() {
		start++
	}
	for start < end && cs[end-1].IsWhitespace() {
		end--
	}
	return cs[start:end]
}

// SplitOnCommas splits cs on top-level comma tokens. The commas themselves
// are dropped; whitespace around the pieces is preserved.
func SplitOnCommas(cs []Component) [][]Component {
	var out [][]Component
	last := 0
	for i, c := range cs {
		if c.Token.Kind == KindComma {
			out = append(out, cs[last:i])
			last = i + 1
		}
	}
	return append(out, cs[last:])
}
