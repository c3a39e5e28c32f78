package css

import (
	"io"
	"strings"
)

// Serialization has two modes. Compact keeps every token's text verbatim and
// only normalizes separators between rules, so parsing the output yields the
// tree that produced it. Pretty reflows whitespace and indents blocks for
// human consumption; it is not meant to be reparsed for comparison.

// String returns the compact CSS text of the stylesheet.
func (s *Sheet) String() string {
	w := serializer{}
	w.ruleList(s.Rules, 0)
	return w.sb.String()
}

// Pretty returns the indented CSS text of the stylesheet.
func (s *Sheet) Pretty() string {
	w := serializer{pretty: true}
	w.ruleList(s.Rules, 0)
	return w.sb.String()
}

// WriteTo writes the compact CSS text to w, implementing io.WriterTo.
func (s *Sheet) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

// ComponentsText returns the verbatim text of a component list.
func ComponentsText(cs []Component) string {
	w := serializer{}
	w.components(cs)
	return w.sb.String()
}

// ComponentsTextNormalized returns the text of a component list with
// whitespace runs collapsed to single spaces and the ends trimmed.
func ComponentsTextNormalized(cs []Component) string {
	w := serializer{pretty: true}
	w.components(TrimWhitespace(cs))
	return w.sb.String()
}

type serializer struct {
	sb     strings.Builder
	pretty bool
}

func (w *serializer) indent(depth int) {
	if !w.pretty {
		return
	}
	for range depth {
		w.sb.WriteString("  ")
	}
}

func (w *serializer) newline() {
	if w.pretty {
		w.sb.WriteByte('\n')
	}
}

func (w *serializer) ruleList(rules []Rule, depth int) {
	for _, r := range rules {
		w.indent(depth)
		switch {
		case r.At != nil:
			w.atRule(r.At, depth)
		case r.Qualified != nil:
			w.qualifiedRule(r.Qualified, depth)
		case r.Declaration != nil:
			w.declaration(r.Declaration)
		default:
			w.components(r.Raw)
			w.sb.WriteByte(';')
		}
		w.newline()
	}
}

func (w *serializer) atRule(r *AtRule, depth int) {
	w.sb.WriteString(r.Keyword.Raw)
	w.prelude(r.Prelude)
	if r.Block == nil {
		w.sb.WriteByte(';')
		return
	}
	w.openBlock()
	w.ruleList(r.Block.Rules, depth+1)
	w.closeBlock(depth)
}

func (w *serializer) qualifiedRule(r *QualifiedRule, depth int) {
	if w.pretty {
		w.sb.WriteString(ComponentsTextNormalized(r.Prelude))
	} else {
		w.components(r.Prelude)
	}
	w.openBlock()
	w.ruleList(r.Block.Rules, depth+1)
	w.closeBlock(depth)
}

func (w *serializer) declaration(d *Declaration) {
	w.sb.WriteString(d.Name.Raw)
	w.sb.WriteByte(':')
	if w.pretty {
		w.sb.WriteByte(' ')
		w.sb.WriteString(ComponentsTextNormalized(d.Value))
	} else {
		w.components(d.Value)
	}
	if d.Important {
		w.sb.WriteString(" !important")
	}
	w.sb.WriteByte(';')
}

// prelude writes at-rule prelude tokens, keeping one separating space after
// the keyword even when the source whitespace was collapsed by pretty mode.
func (w *serializer) prelude(cs []Component) {
	if w.pretty {
		if text := ComponentsTextNormalized(cs); text != "" {
			w.sb.WriteByte(' ')
			w.sb.WriteString(text)
		}
		return
	}
	w.components(cs)
}

func (w *serializer) openBlock() {
	if w.pretty {
		w.sb.WriteString(" {")
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteByte('{')
}

func (w *serializer) closeBlock(depth int) {
	w.indent(depth)
	w.sb.WriteByte('}')
}

func (w *serializer) components(cs []Component) {
	for _, c := range cs {
		w.component(c)
	}
}

func (w *serializer) component(c Component) {
	if c.Token.Kind == KindWhitespace && w.pretty {
		w.sb.WriteByte(' ')
		return
	}
	w.sb.WriteString(c.Token.Raw)
	if !c.IsBlock() {
		return
	}
	w.components(c.Children)
	switch c.Token.Kind.mirror() {
	case KindCloseBracket:
		w.sb.WriteByte(']')
	case KindCloseParen:
		w.sb.WriteByte(')')
	case KindCloseBrace:
		w.sb.WriteByte('}')
	}
}
