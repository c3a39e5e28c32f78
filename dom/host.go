package dom

import (
	"cmp"
	"errors"
	"maps"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/devknoll/container-query-polyfill/layout"
)

// maxApplyRounds bounds Apply's settle loop. Rewritten rules that resize
// their own container can oscillate forever; the bound turns that into an
// error.
const maxApplyRounds = 16

// Observe implements layout.Resizer. The first Flush after Observe always
// delivers the element's size, change or not.
func (d *Document) Observe(el layout.Element) {
	nd := el.(*Node)
	if _, ok := d.observed[nd]; ok {
		return
	}
	d.observed[nd] = sizePair{w: math.NaN(), h: math.NaN()}
	d.queueResize(nd)
}

// Unobserve implements layout.Resizer.
func (d *Document) Unobserve(el layout.Element) {
	nd := el.(*Node)
	delete(d.observed, nd)
	if d.queued[nd] {
		delete(d.queued, nd)
		d.resizeQ = slices.DeleteFunc(d.resizeQ, func(q *Node) bool { return q == nd })
	}
}

func (d *Document) queueResize(nd *Node) {
	if d.queued[nd] {
		return
	}
	d.queued[nd] = true
	d.resizeQ = append(d.resizeQ, nd)
}

// Attribute implements layout.TreeWriter.
func (d *Document) Attribute(el layout.Element, name string) string {
	return el.(*Node).Attr(name)
}

// SetAttribute writes through to the tree and echoes the change into the
// mutation queue, the way a platform observer reports it. External callers
// use the same path, so their writes surface to the engine too.
func (d *Document) SetAttribute(el layout.Element, name, value string) {
	nd := el.(*Node)
	old := nd.Attr(name)
	nd.setAttr(name, value)
	if name == "style" {
		nd.inline = parseInlineStyle(value)
	}
	d.writes++
	d.mutQ.Attrs = append(d.mutQ.Attrs, layout.AttrChange{El: nd, Name: name, Old: old, New: value})
}

// RemoveAttribute writes through to the tree and echoes the removal.
func (d *Document) RemoveAttribute(el layout.Element, name string) {
	nd := el.(*Node)
	old := nd.Attr(name)
	nd.removeAttr(name)
	if name == "style" {
		nd.inline = nil
	}
	d.writes++
	d.mutQ.Attrs = append(d.mutQ.Attrs, layout.AttrChange{El: nd, Name: name, Old: old, New: ""})
}

// SetCustomProperties stores the engine-owned property set off-tree. It
// never echoes a mutation; Bake folds the final values into the style
// attribute once the document settles.
func (d *Document) SetCustomProperties(el layout.Element, props map[string]string) {
	nd := el.(*Node)
	if len(props) == 0 {
		nd.props = nil
	} else {
		nd.props = maps.Clone(props)
	}
	d.writes++
}

// Matches implements layout.Matcher.
func (d *Document) Matches(el layout.Element, selector string) bool {
	sel := d.compile(selector)
	return sel != nil && sel.Match(el.(*Node).n)
}

// Bind points deliveries at the engine. The engine's construction pass runs
// before any binding, so its writes queue up and the first Flush hands them
// over.
func (d *Document) Bind(eng *layout.Engine) { d.engine = eng }

// Flush drains pending deliveries into the bound engine: queued sizes in
// ascending depth order first, then the mutation batch. It reports whether
// anything was delivered.
func (d *Document) Flush() bool {
	if d.engine == nil {
		panic("dom: Flush without a bound engine")
	}
	delivered := false
	if len(d.resizeQ) > 0 {
		d.engine.ResizeBatch(d.takeResizes())
		delivered = true
	}
	if d.pendingMutations() {
		batch := d.mutQ
		d.mutQ = layout.Mutations{}
		d.engine.MutationBatch(batch)
		delivered = true
	}
	d.scanSizes()
	return delivered
}

func (d *Document) takeResizes() []layout.Resize {
	pending := d.resizeQ
	d.resizeQ = nil
	clear(d.queued)

	slices.SortStableFunc(pending, func(a, b *Node) int { return cmp.Compare(a.depth, b.depth) })
	events := make([]layout.Resize, 0, len(pending))
	for _, nd := range pending {
		if _, ok := d.observed[nd]; !ok {
			continue
		}
		w, h := d.contentSize(nd)
		d.observed[nd] = sizePair{w: w, h: h}
		events = append(events, layout.Resize{El: nd, Width: w, Height: h})
	}
	return events
}

// scanSizes queues a delivery for every observed element whose current size
// no longer matches the last delivered one, the follow-up a resize observer
// would produce after styles changed.
func (d *Document) scanSizes() {
	for nd, last := range d.observed {
		w, h := d.contentSize(nd)
		if sameSize(w, last.w) && sameSize(h, last.h) {
			continue
		}
		d.queueResize(nd)
	}
}

// sameSize treats NaN as equal to itself so "still unknown" is not a change.
func sameSize(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (d *Document) pendingMutations() bool {
	return len(d.mutQ.Attrs) > 0 || len(d.mutQ.Added) > 0 || len(d.mutQ.Removed) > 0
}

func (d *Document) pendingWork() bool {
	return len(d.resizeQ) > 0 || d.pendingMutations()
}

// Apply binds eng and drives deliveries until the document settles: one full
// round with nothing delivered, nothing written and nothing newly queued.
func (d *Document) Apply(eng *layout.Engine) error {
	d.Bind(eng)
	for round := range maxApplyRounds {
		before := d.writes
		delivered := d.Flush()
		eng.Refresh()
		d.scanSizes()
		if !delivered && d.writes == before && !d.pendingWork() {
			d.log.Debug("document settled",
				zap.Int("rounds", round+1),
				zap.Int("writes", d.writes))
			return nil
		}
	}
	return errors.New("dom: document did not settle")
}

// contentSize resolves the element's current content-box size from styles,
// NaN for axes the document cannot determine.
func (d *Document) contentSize(nd *Node) (w, h float64) {
	style := func(p string) string { return d.ComputedStyle(nd, p) }
	w, h = cssPx(style("width")), cssPx(style("height"))
	if !strings.EqualFold(strings.TrimSpace(style("box-sizing")), "border-box") {
		return w, h
	}
	w -= cssPxOrZero(style("padding-left")) + cssPxOrZero(style("padding-right")) +
		cssPxOrZero(style("border-left-width")) + cssPxOrZero(style("border-right-width"))
	h -= cssPxOrZero(style("padding-top")) + cssPxOrZero(style("padding-bottom")) +
		cssPxOrZero(style("border-top-width")) + cssPxOrZero(style("border-bottom-width"))
	return w, h
}

// Bake folds every engine-published property set into its element's style
// attribute, so the rendered document carries the final values. Bake writes
// the tree directly and echoes nothing.
func (d *Document) Bake() {
	d.bakeNode(d.root)
}

func (d *Document) bakeNode(nd *Node) {
	if len(nd.props) > 0 {
		keys := slices.Sorted(maps.Keys(nd.props))
		var sb strings.Builder
		if cur := strings.TrimSpace(nd.Attr("style")); cur != "" {
			sb.WriteString(strings.TrimSuffix(cur, ";"))
			sb.WriteString("; ")
		}
		for i, k := range keys {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(nd.props[k])
		}
		nd.setAttr("style", sb.String())
	}
	for _, c := range nd.children {
		d.bakeNode(c)
	}
}
