package transpile

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/query"
)

// Options adjust how a stylesheet is rewritten.
type Options struct {
	// BaseURL, when set, absolutizes url() references and @import targets.
	BaseURL *url.URL

	// DisableWhere marks the target platform as lacking :where(). Scoping
	// depends on :where to keep author specificity intact, so with it
	// disabled rules inside @container pass through with a diagnostic.
	DisableWhere bool
}

// Result is one processed stylesheet. Descriptors stay registered in the
// shared registry until the owner disposes them.
type Result struct {
	Sheet       *css.Sheet
	CSS         string
	Descriptors []*Descriptor
	Diagnostics []Diagnostic
}

// Transpiler rewrites stylesheets against one shared descriptor registry.
type Transpiler struct {
	reg  *Registry
	opts Options
	log  *zap.Logger
}

func New(reg *Registry, opts Options, log *zap.Logger) *Transpiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transpiler{reg: reg, opts: opts, log: log.Named("transpile")}
}

// Process rewrites one stylesheet. It never fails: constructs that cannot be
// rewritten pass through verbatim and are reported in Result.Diagnostics.
func (t *Transpiler) Process(src string) *Result {
	res := &Result{}
	w := &walker{t: t, res: res, prefixes: map[*Descriptor][]string{}}

	sheet := css.Parse(src)
	out := &css.Sheet{RuleList: css.RuleList{Rules: w.rules(sheet.Rules, nil)}}

	for _, d := range res.Descriptors {
		d.Selector = strings.Join(w.prefixes[d], ", ")
	}
	res.Sheet = out
	res.CSS = out.String()

	t.log.Debug("stylesheet processed",
		zap.Int("rules", len(sheet.Rules)),
		zap.Int("descriptors", len(res.Descriptors)),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res
}

// walker carries one Process pass: the rewrite is a depth-first walk
// threading the nearest enclosing container descriptor, nil outside any.
type walker struct {
	t        *Transpiler
	res      *Result
	prefixes map[*Descriptor][]string // distinct scoped-rule prefixes, first-seen order
}

func (w *walker) diag(sev Severity, msg, where string) {
	w.res.Diagnostics = append(w.res.Diagnostics, Diagnostic{Severity: sev, Message: msg, Where: where})
	if sev >= SeverityWarning {
		w.t.log.Warn(msg, zap.String("where", where))
	} else {
		w.t.log.Debug(msg, zap.String("where", where))
	}
}

func (w *walker) rules(rules []css.Rule, scope *Descriptor) []css.Rule {
	out := make([]css.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, w.rule(r, scope)...)
	}
	return out
}

func (w *walker) rule(r css.Rule, scope *Descriptor) []css.Rule {
	switch {
	case r.Declaration != nil:
		return w.declaration(r.Declaration)
	case r.Qualified != nil:
		return []css.Rule{w.qualified(r.Qualified, scope)}
	case r.At != nil:
		return w.atRule(r.At, scope)
	}
	return []css.Rule{r}
}

func (w *walker) atRule(at *css.AtRule, scope *Descriptor) []css.Rule {
	name := at.Name()
	if strings.HasSuffix(name, "keyframes") {
		// keyframe selectors are never scoped, their declarations still rewrite
		return []css.Rule{{At: w.recurse(at, nil)}}
	}
	switch name {
	case "container":
		return w.container(at, scope)
	case "supports":
		out := w.recurse(at, scope)
		out.Prelude = w.rewriteSupportsCondition(out.Prelude)
		return []css.Rule{{At: out}}
	case "import":
		return []css.Rule{{At: w.rewriteImport(at)}}
	}
	return []css.Rule{{At: w.recurse(at, scope)}}
}

func (w *walker) recurse(at *css.AtRule, scope *Descriptor) *css.AtRule {
	if at.Block == nil {
		return at
	}
	return &css.AtRule{
		Keyword: at.Keyword,
		Prelude: at.Prelude,
		Block:   &css.RuleList{Rules: w.rules(at.Block.Rules, scope)},
	}
}

func (w *walker) container(at *css.AtRule, scope *Descriptor) []css.Rule {
	preludeText := css.ComponentsTextNormalized(at.Prelude)
	if at.Block == nil {
		w.diag(SeverityWarning, "@container rule without a block", preludeText)
		return []css.Rule{{At: at}}
	}
	names, cond, err := parseContainerPrelude(at.Prelude)
	if err != nil {
		w.diag(SeverityWarning, fmt.Sprintf("@container prelude does not parse: %v", err), preludeText)
		return []css.Rule{{At: at}}
	}

	d := w.t.reg.register(names, cond, scope)
	w.res.Descriptors = append(w.res.Descriptors, d)
	w.t.log.Debug("registered container descriptor",
		zap.String("uid", d.UID),
		zap.Strings("names", d.Names),
		zap.Stringer("condition", cond))

	body := w.rules(at.Block.Rules, d)
	return []css.Rule{mediaAllRule(append([]css.Rule{resetRule()}, body...))}
}

func (w *walker) qualified(q *css.QualifiedRule, scope *Descriptor) css.Rule {
	prelude := q.Prelude
	if scope != nil && !isCustomPropertyPrelude(prelude) {
		scoped, ok := w.scopeSelectors(prelude, scope)
		if !ok {
			return css.Rule{Qualified: q}
		}
		prelude = scoped
	}
	return css.Rule{Qualified: &css.QualifiedRule{
		Prelude: prelude,
		Block:   css.RuleList{Rules: w.rules(q.Block.Rules, scope)},
	}}
}

// parseContainerPrelude splits `[name]* <condition>`. Leading idents are
// required container names; everything after them must parse as a condition.
func parseContainerPrelude(cs []css.Component) ([]string, *query.Node, error) {
	cs = css.TrimWhitespace(cs)
	var names []string
	i := 0
	for ; i < len(cs); i++ {
		c := cs[i]
		if c.IsWhitespace() {
			continue
		}
		if c.Token.Kind != css.KindIdent || c.Token.IsIdent("not") {
			break
		}
		name, err := common.NormalizeContainerName(c.Token.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("container name %q: %w", c.Token.Name(), err)
		}
		names = append(names, name)
	}
	cond := query.ParseCondition(cs[i:])
	if cond == nil {
		return nil, nil, errors.New("condition does not parse")
	}
	return names, cond, nil
}

// The reset rule leads every transformed block: the internal container
// properties inherit like any custom property, and the zero-specificity
// reset pins them back to initial for elements that do not set them.
func resetRule() css.Rule {
	sheet := css.Parse("* { " + common.PropContainerType + ": initial; " + common.PropContainerName + ": initial; }")
	return sheet.Rules[0]
}

// mediaAllRule wraps rules in @media all, a wrapper every platform applies
// unconditionally, so the transformed block stays inert for the cascade.
func mediaAllRule(rules []css.Rule) css.Rule {
	sheet := css.Parse("@media all {}")
	at := sheet.Rules[0].At
	at.Block = &css.RuleList{Rules: rules}
	return css.Rule{At: at}
}
