package transpile

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
)

// declaration rewrites one declaration: the container properties move to
// their internal custom-property equivalents (the shorthand splits in two)
// and every value gets container-unit and URL rewriting.
func (w *walker) declaration(d *css.Declaration) []css.Rule {
	value := w.rewriteValue(d.Value)
	switch strings.ToLower(d.Name.Name()) {
	case "container-type":
		return []css.Rule{makeDeclaration(common.PropContainerType, value, d.Important)}
	case "container-name":
		return []css.Rule{makeDeclaration(common.PropContainerName, value, d.Important)}
	case "container":
		names, ctype, hasType := splitContainerShorthand(value)
		out := []css.Rule{makeDeclaration(common.PropContainerName, names, d.Important)}
		if hasType {
			out = append(out, makeDeclaration(common.PropContainerType, ctype, d.Important))
		}
		return out
	}
	return []css.Rule{{Declaration: &css.Declaration{Name: d.Name, Value: value, Important: d.Important}}}
}

func makeDeclaration(name string, value []css.Component, important bool) css.Rule {
	return css.Rule{Declaration: &css.Declaration{
		Name:      css.Token{Kind: css.KindIdent, Raw: name},
		Value:     css.TrimWhitespace(value),
		Important: important,
	}}
}

// splitContainerShorthand splits `container: <names> [/ <type>]` at the
// top-level slash.
func splitContainerShorthand(value []css.Component) (names, ctype []css.Component, ok bool) {
	for i, c := range value {
		if c.Token.IsDelim('/') {
			return css.TrimWhitespace(value[:i]), css.TrimWhitespace(value[i+1:]), true
		}
	}
	return value, nil, false
}

// rewriteValue rewrites container-relative units and absolutizes URL
// references inside one declaration value, descending into functions.
func (w *walker) rewriteValue(cs []css.Component) []css.Component {
	out := make([]css.Component, 0, len(cs))
	for _, c := range cs {
		switch {
		case c.IsBlock():
			nc := c
			if c.Token.Kind == css.KindFunction && strings.EqualFold(c.Token.Name(), "url") && w.t.opts.BaseURL != nil {
				nc.Children = w.rewriteURLFunction(c.Children)
			} else {
				nc.Children = w.rewriteValue(c.Children)
			}
			out = append(out, nc)
		case c.Token.Kind == css.KindDimension:
			if calc, ok := containerUnitCalc(c.Token); ok {
				out = append(out, calc...)
			} else {
				out = append(out, c)
			}
		case c.Token.Kind == css.KindURL && w.t.opts.BaseURL != nil:
			out = append(out, w.absoluteURLComponent(c.Token.StringValue()))
		default:
			out = append(out, c)
		}
	}
	return out
}

// containerUnitCalc turns 50cqw into calc(var(--cq-cqw, 1vw) * 50). Active
// containers publish the per-unit custom properties; the viewport unit
// serves until one resolves.
func containerUnitCalc(t css.Token) ([]css.Component, bool) {
	unit := strings.ToLower(t.Unit)
	fb, ok := common.ContainerUnitFallback(unit)
	if !ok {
		return nil, false
	}
	n := strconv.FormatFloat(t.Value, 'g', -1, 64)
	return css.ParseComponents("calc(var(" + common.UnitVar(unit) + ", 1" + fb + ") * " + n + ")"), true
}

func (w *walker) absolutize(ref string) string {
	base := w.t.opts.BaseURL
	if base == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (w *walker) absoluteURLComponent(ref string) css.Component {
	return css.ParseComponents("url(" + cssQuote(w.absolutize(ref)) + ")")[0]
}

// rewriteURLFunction handles the quoted url("...") form: the string child
// is replaced with the absolutized target.
func (w *walker) rewriteURLFunction(cs []css.Component) []css.Component {
	out := slices.Clone(cs)
	for i, c := range out {
		if c.Token.Kind == css.KindString {
			out[i] = css.Component{Token: css.Token{
				Kind: css.KindString,
				Raw:  cssQuote(w.absolutize(c.Token.StringValue())),
			}}
			break
		}
	}
	return out
}

// cssQuote wraps s as a CSS string, escaping quotes and backslashes.
func cssQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// rewriteImport absolutizes the @import target, string or url() form.
func (w *walker) rewriteImport(at *css.AtRule) *css.AtRule {
	if w.t.opts.BaseURL == nil {
		return at
	}
	prelude := slices.Clone(at.Prelude)
	for i := range prelude {
		c := prelude[i]
		if c.IsWhitespace() {
			continue
		}
		switch {
		case c.Token.Kind == css.KindString:
			prelude[i] = css.Component{Token: css.Token{
				Kind: css.KindString,
				Raw:  cssQuote(w.absolutize(c.Token.StringValue())),
			}}
		case c.Token.Kind == css.KindURL:
			prelude[i] = w.absoluteURLComponent(c.Token.StringValue())
		case c.Token.Kind == css.KindFunction && strings.EqualFold(c.Token.Name(), "url"):
			nc := c
			nc.Children = w.rewriteURLFunction(c.Children)
			prelude[i] = nc
		}
		break
	}
	return &css.AtRule{Keyword: at.Keyword, Prelude: prelude, Block: at.Block}
}

// rewriteSupportsCondition rewrites declaration conditions the same way
// plain declarations are rewritten, so author support gates like
// @supports (container-type: size) hold against the internal properties.
func (w *walker) rewriteSupportsCondition(cs []css.Component) []css.Component {
	out := make([]css.Component, 0, len(cs))
	for _, c := range cs {
		if !c.IsBlock() {
			out = append(out, c)
			continue
		}
		if c.Token.Kind == css.KindOpenParen {
			if repl, ok := w.supportsDeclaration(c.Children); ok {
				out = append(out, repl...)
				continue
			}
		}
		nc := c
		nc.Children = w.rewriteSupportsCondition(c.Children)
		out = append(out, nc)
	}
	return out
}

// supportsDeclaration rebuilds one parenthesized (property: value) term.
// The container shorthand expands into a conjunction of its two internal
// properties.
func (w *walker) supportsDeclaration(inner []css.Component) ([]css.Component, bool) {
	d := css.AsDeclaration(inner)
	if d == nil {
		return nil, false
	}
	rules := w.declaration(d)
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = "(" + r.Declaration.Name.Raw + ": " + css.ComponentsTextNormalized(r.Declaration.Value) + ")"
	}
	if len(parts) == 1 {
		return css.ParseComponents(parts[0]), true
	}
	return css.ParseComponents("(" + strings.Join(parts, " and ") + ")"), true
}
