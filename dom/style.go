package dom

import (
	"math"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html/atom"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/layout"
)

// Properties the document resolves from stylesheets. Rules declaring none of
// them are never indexed.
var resolvableProps = map[string]bool{
	"display":             true,
	"writing-mode":        true,
	"font-size":           true,
	"width":               true,
	"height":              true,
	"box-sizing":          true,
	"padding-top":         true,
	"padding-right":       true,
	"padding-bottom":      true,
	"padding-left":        true,
	"border-top-width":    true,
	"border-right-width":  true,
	"border-bottom-width": true,
	"border-left-width":   true,

	common.PropContainerType: true,
	common.PropContainerName: true,
}

// Properties that resolve through the parent chain when nothing cascades.
// The container custom properties stay out: the engine interprets them per
// element, and rewritten sheets carry a universal reset that pins them.
var inheritedProps = map[string]bool{
	"font-size":    true,
	"writing-mode": true,
}

// declaredRule is one indexed stylesheet rule, split per selector so each
// carries its own specificity.
type declaredRule struct {
	sel       cascadia.Sel
	spec      cascadia.Specificity
	props     map[string]string
	important map[string]bool
	order     int
}

// ComputedStyle implements layout.StyleReader: inline style first, then the
// stylesheet cascade, then presentational attributes, then inheritance or
// the defaults table.
func (d *Document) ComputedStyle(el layout.Element, property string) string {
	nd := el.(*Node)
	if v, ok := d.cascaded(nd, property); ok {
		return v
	}
	if inheritedProps[property] && nd.parent != nil {
		return d.ComputedStyle(nd.parent, property)
	}
	return d.defaultStyle(nd, property)
}

func (d *Document) cascaded(nd *Node, prop string) (string, bool) {
	if v, ok := nd.inline[prop]; ok {
		return v, true
	}
	if v, ok := d.declaredValue(nd, prop); ok {
		return v, true
	}
	return presentationalValue(nd, prop)
}

// declaredValue runs the cascade for one property: importance, then
// specificity, then source order.
func (d *Document) declaredValue(nd *Node, prop string) (string, bool) {
	var best *declaredRule
	for _, r := range d.byProp[prop] {
		if !r.sel.Match(nd.n) {
			continue
		}
		if best == nil || beats(r, best, prop) {
			best = r
		}
	}
	if best == nil {
		return "", false
	}
	return best.props[prop], true
}

// beats reports whether a displaces the current best b for prop.
func beats(a, b *declaredRule, prop string) bool {
	if ai, bi := a.important[prop], b.important[prop]; ai != bi {
		return ai
	}
	if a.spec != b.spec {
		return b.spec.Less(a.spec)
	}
	return a.order > b.order
}

// Tags whose width/height attributes act as presentational hints.
var sizedTags = map[atom.Atom]bool{
	atom.Img:    true,
	atom.Iframe: true,
	atom.Embed:  true,
	atom.Object: true,
	atom.Video:  true,
	atom.Canvas: true,
	atom.Table:  true,
	atom.Td:     true,
	atom.Th:     true,
}

func presentationalValue(nd *Node, prop string) (string, bool) {
	if (prop != "width" && prop != "height") || !sizedTags[nd.n.DataAtom] {
		return "", false
	}
	v := strings.TrimSpace(nd.Attr(prop))
	if v == "" || strings.HasSuffix(v, "%") {
		return "", false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
		return pxString(n), true
	}
	return "", false
}

func (d *Document) defaultStyle(nd *Node, prop string) string {
	switch prop {
	case "display":
		if nd.kind == KindRoot {
			return "block"
		}
		if v, ok := defaultDisplay[nd.n.DataAtom]; ok {
			return v
		}
		return "inline"
	case "writing-mode":
		return "horizontal-tb"
	case "font-size":
		return pxString(d.opts.RootFontSize)
	case "width":
		if nd.kind == KindRoot {
			return pxString(d.opts.ViewportWidth)
		}
		return "auto"
	case "height":
		if nd.kind == KindRoot {
			return pxString(d.opts.ViewportHeight)
		}
		return "auto"
	case "box-sizing":
		return "content-box"
	case "padding-top", "padding-right", "padding-bottom", "padding-left",
		"border-top-width", "border-right-width", "border-bottom-width", "border-left-width":
		return "0px"
	}
	return ""
}

// addSheet indexes one processed stylesheet for style resolution. Only
// blocks a static pass applies unconditionally descend: @media all/screen
// and @supports bodies; every other conditional group is skipped.
func (d *Document) addSheet(sheet *css.Sheet) {
	if sheet == nil {
		return
	}
	d.addRules(sheet.Rules)
}

func (d *Document) addRules(rules []css.Rule) {
	for _, r := range rules {
		switch {
		case r.Qualified != nil:
			d.addQualified(r.Qualified)
		case r.At != nil:
			d.addAtRule(r.At)
		}
	}
}

func (d *Document) addAtRule(at *css.AtRule) {
	if at.Block == nil {
		return
	}
	switch at.Name() {
	case "media":
		if q := css.ComponentsTextNormalized(at.Prelude); q != "" && !mediaApplies(q) {
			d.log.Debug("skipping conditional media block", zap.String("query", q))
			return
		}
		d.addRules(at.Block.Rules)
	case "supports":
		// support conditions are taken to hold for the simulated platform
		d.addRules(at.Block.Rules)
	default:
		d.log.Debug("at-rule not indexed for style resolution", zap.String("name", at.Name()))
	}
}

func mediaApplies(q string) bool {
	switch strings.ToLower(q) {
	case "all", "screen":
		return true
	}
	return false
}

func (d *Document) addQualified(q *css.QualifiedRule) {
	props := map[string]string{}
	important := map[string]bool{}
	for _, r := range q.Block.Rules {
		if r.Declaration == nil {
			continue
		}
		name := r.Declaration.Name.Name()
		if !strings.HasPrefix(name, "--") {
			name = strings.ToLower(name)
		}
		if !resolvableProps[name] {
			continue
		}
		props[name] = css.ComponentsTextNormalized(r.Declaration.Value)
		important[name] = r.Declaration.Important
	}
	if len(props) == 0 {
		return
	}

	group := d.compile(css.ComponentsTextNormalized(q.Prelude))
	for _, sel := range group {
		rule := &declaredRule{
			sel:       sel,
			spec:      sel.Specificity(),
			props:     props,
			important: important,
			order:     d.ruleSeq,
		}
		d.ruleSeq++
		d.rules = append(d.rules, rule)
		for name := range props {
			d.byProp[name] = append(d.byProp[name], rule)
		}
	}
}

// compile parses a selector group, caching the result. Selectors that do not
// parse resolve to nil and never match.
func (d *Document) compile(selector string) cascadia.SelectorGroup {
	if sel, ok := d.selCache[selector]; ok {
		return sel
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		// :where() is specificity-only; its unwrapped equivalent matches the
		// same elements.
		if unwrapped, err2 := cascadia.ParseGroup(unwrapWhere(selector)); err2 == nil {
			sel = unwrapped
		} else {
			d.log.Debug("unmatchable selector", zap.String("selector", selector), zap.Error(err))
			sel = nil
		}
	}
	d.selCache[selector] = sel
	return sel
}

// unwrapWhere splices every :where(...) wrapper into its contents.
func unwrapWhere(sel string) string {
	lower := strings.ToLower(sel)
	i := strings.Index(lower, ":where(")
	if i < 0 {
		return sel
	}
	var sb strings.Builder
	for i >= 0 {
		sb.WriteString(sel[:i])
		rest := sel[i+len(":where("):]
		depth := 1
		j := 0
		for ; j < len(rest) && depth > 0; j++ {
			switch rest[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth == 0 {
			sb.WriteString(rest[:j-1])
			sel = rest[j:]
		} else {
			sb.WriteString(rest)
			sel = ""
		}
		lower = strings.ToLower(sel)
		i = strings.Index(lower, ":where(")
	}
	sb.WriteString(sel)
	return sb.String()
}

// cssPx parses a px length or bare number, NaN for anything else.
func cssPx(s string) float64 {
	for t := range css.Tokenize(s) {
		switch t.Kind {
		case css.KindWhitespace:
			continue
		case css.KindDimension:
			if strings.EqualFold(t.Unit, "px") {
				return t.Value
			}
			return math.NaN()
		case css.KindNumber:
			return t.Value
		}
		return math.NaN()
	}
	return math.NaN()
}

func cssPxOrZero(s string) float64 {
	if v := cssPx(s); !math.IsNaN(v) {
		return v
	}
	return 0
}

func pxString(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "px"
}

// Per-tag display defaults, the slice of the UA stylesheet the engine's
// classification cares about. Unlisted elements default to inline.
var defaultDisplay = map[atom.Atom]string{
	atom.Address:    "block",
	atom.Article:    "block",
	atom.Aside:      "block",
	atom.Blockquote: "block",
	atom.Body:       "block",
	atom.Dd:         "block",
	atom.Details:    "block",
	atom.Dialog:     "block",
	atom.Div:        "block",
	atom.Dl:         "block",
	atom.Dt:         "block",
	atom.Fieldset:   "block",
	atom.Figcaption: "block",
	atom.Figure:     "block",
	atom.Footer:     "block",
	atom.Form:       "block",
	atom.H1:         "block",
	atom.H2:         "block",
	atom.H3:         "block",
	atom.H4:         "block",
	atom.H5:         "block",
	atom.H6:         "block",
	atom.Header:     "block",
	atom.Hgroup:     "block",
	atom.Hr:         "block",
	atom.Html:       "block",
	atom.Main:       "block",
	atom.Nav:        "block",
	atom.Ol:         "block",
	atom.P:          "block",
	atom.Pre:        "block",
	atom.Section:    "block",
	atom.Ul:         "block",

	atom.Li: "list-item",

	atom.Table:    "table",
	atom.Caption:  "table-caption",
	atom.Colgroup: "table-column-group",
	atom.Col:      "table-column",
	atom.Thead:    "table-header-group",
	atom.Tbody:    "table-row-group",
	atom.Tfoot:    "table-footer-group",
	atom.Tr:       "table-row",
	atom.Td:       "table-cell",
	atom.Th:       "table-cell",

	atom.Base:     "none",
	atom.Datalist: "none",
	atom.Head:     "none",
	atom.Link:     "none",
	atom.Meta:     "none",
	atom.Noscript: "none",
	atom.Script:   "none",
	atom.Style:    "none",
	atom.Template: "none",
	atom.Title:    "none",
}
