package transpile

import (
	"slices"
	"strings"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
)

// Single-colon spellings that still address pseudo-elements.
var legacyPseudoElements = map[string]bool{
	"before":       true,
	"after":        true,
	"first-line":   true,
	"first-letter": true,
}

// scopeSelectors rewrites a selector prelude inside a container scope: each
// comma-separated selector splits into an element prefix and a
// pseudo-element suffix, and the prefix gains a :where attribute match for
// the descriptor's UID. Distinct prefixes accumulate into the descriptor's
// selector union. Returns ok=false (with a diagnostic recorded) when the
// rule must pass through untransformed.
func (w *walker) scopeSelectors(prelude []css.Component, d *Descriptor) ([]css.Component, bool) {
	if w.t.opts.DisableWhere {
		w.diag(SeverityWarning, "selector scoping requires :where() support", css.ComponentsTextNormalized(prelude))
		return nil, false
	}

	var parts []string
	for _, sel := range css.SplitOnCommas(prelude) {
		sel = css.TrimWhitespace(sel)
		prefix, suffix, ok := splitAtPseudoElement(sel)
		if !ok {
			w.diag(SeverityWarning, "selector cannot be scoped", css.ComponentsTextNormalized(sel))
			return nil, false
		}
		prefixText := css.ComponentsTextNormalized(prefix)
		if prefixText == "" {
			prefixText = "*"
		}
		if !slices.Contains(w.prefixes[d], prefixText) {
			w.prefixes[d] = append(w.prefixes[d], prefixText)
		}
		parts = append(parts, prefixText+`:where([`+common.DataAttr+`~="`+d.UID+`"])`+css.ComponentsTextNormalized(suffix))
	}
	return css.ParseComponents(strings.Join(parts, ", ")), true
}

// splitAtPseudoElement splits one selector at the first pseudo-element
// boundary: a double colon, or a single colon followed by one of the legacy
// pseudo-element names. Pseudo-classes stay in the prefix. ::slotted and
// ::part address a different tree scope than the attribute match, so those
// selectors report as unscopable.
func splitAtPseudoElement(sel []css.Component) (prefix, suffix []css.Component, ok bool) {
	for i := range sel {
		if sel[i].Token.Kind != css.KindColon {
			continue
		}
		if i+1 < len(sel) && sel[i+1].Token.Kind == css.KindColon {
			name := pseudoName(sel, i+2)
			if name == "slotted" || name == "part" {
				return nil, nil, false
			}
			return sel[:i], sel[i:], true
		}
		if legacyPseudoElements[pseudoName(sel, i+1)] {
			return sel[:i], sel[i:], true
		}
	}
	return sel, nil, true
}

func pseudoName(sel []css.Component, i int) string {
	if i >= len(sel) {
		return ""
	}
	switch sel[i].Token.Kind {
	case css.KindIdent, css.KindFunction:
		return strings.ToLower(sel[i].Token.Name())
	}
	return ""
}

// isCustomPropertyPrelude guards against the one spot where the permissive
// parser misreads a declaration: a custom property whose value carries a
// brace block parses as a qualified rule, and scoping it would corrupt it.
func isCustomPropertyPrelude(cs []css.Component) bool {
	cs = css.TrimWhitespace(cs)
	return len(cs) > 0 && strings.HasPrefix(cs[0].Token.Raw, "--")
}
