package layout_test

import (
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/layout"
	"github.com/devknoll/container-query-polyfill/query"
	"github.com/devknoll/container-query-polyfill/transpile"
)

// fakeNode is a minimal host element: fixed computed styles, a selector
// membership list, and plain attribute storage.
type fakeNode struct {
	styles   map[string]string
	sels     []string
	attrs    map[string]string
	props    map[string]string
	children []*fakeNode
}

func newNode(styles map[string]string, sels ...string) *fakeNode {
	if styles == nil {
		styles = map[string]string{}
	}
	return &fakeNode{styles: styles, sels: sels, attrs: map[string]string{}}
}

func (n *fakeNode) add(children ...*fakeNode) *fakeNode {
	n.children = append(n.children, children...)
	return n
}

func (n *fakeNode) Children() []layout.Element {
	out := make([]layout.Element, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// fakeHost implements the host services over fakeNodes and counts every
// write so tests can assert elision.
type fakeHost struct {
	observed   map[*fakeNode]bool
	echo       []layout.AttrChange
	attrWrites int
	propWrites int
}

func newHost() *fakeHost {
	return &fakeHost{observed: map[*fakeNode]bool{}}
}

func (h *fakeHost) services() layout.Host {
	return layout.Host{Styles: h, Resizes: h, Writer: h, Match: h}
}

func (h *fakeHost) ComputedStyle(el layout.Element, property string) string {
	n := el.(*fakeNode)
	if v, ok := n.styles[property]; ok {
		return v
	}
	switch property {
	case "display":
		return "block"
	case "font-size":
		return "16px"
	case "writing-mode":
		return "horizontal-tb"
	case "box-sizing":
		return "content-box"
	}
	return ""
}

func (h *fakeHost) Observe(el layout.Element)   { h.observed[el.(*fakeNode)] = true }
func (h *fakeHost) Unobserve(el layout.Element) { delete(h.observed, el.(*fakeNode)) }

func (h *fakeHost) Attribute(el layout.Element, name string) string {
	return el.(*fakeNode).attrs[name]
}

func (h *fakeHost) SetAttribute(el layout.Element, name, value string) {
	n := el.(*fakeNode)
	old := n.attrs[name]
	n.attrs[name] = value
	h.attrWrites++
	h.echo = append(h.echo, layout.AttrChange{El: n, Name: name, Old: old, New: value})
}

func (h *fakeHost) RemoveAttribute(el layout.Element, name string) {
	n := el.(*fakeNode)
	old := n.attrs[name]
	delete(n.attrs, name)
	h.attrWrites++
	h.echo = append(h.echo, layout.AttrChange{El: n, Name: name, Old: old, New: ""})
}

func (h *fakeHost) SetCustomProperties(el layout.Element, props map[string]string) {
	el.(*fakeNode).props = props
	h.propWrites++
}

func (h *fakeHost) Matches(el layout.Element, selector string) bool {
	return slices.Contains(el.(*fakeNode).sels, selector)
}

func (h *fakeHost) drainEcho() []layout.AttrChange {
	out := h.echo
	h.echo = nil
	return out
}

// process registers descriptors for src through the rewrite pipeline, the
// only way descriptors are minted in production.
func process(t *testing.T, reg *transpile.Registry, src string) *transpile.Result {
	t.Helper()
	return transpile.New(reg, transpile.Options{}, nil).Process(src)
}

func newEngine(t *testing.T, root *fakeNode, h *fakeHost, reg *transpile.Registry) *layout.Engine {
	t.Helper()
	eng := layout.NewEngine(root, h.services(), reg, zaptest.NewLogger(t))
	t.Cleanup(eng.Close)
	return eng
}

func TestEngineAppliesMatchingDescriptor(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)
	uid := res.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	root := newNode(nil).add(container)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	if got := card.attrs[common.DataAttr]; got != uid {
		t.Errorf("card attribute = %q, want %q", got, uid)
	}
	if got := container.attrs[common.DataAttr]; got != "" {
		t.Errorf("container attribute = %q, want empty", got)
	}
	if !h.observed[container] {
		t.Error("container is not observed")
	}

	st, ok := eng.StateOf(container)
	if !ok {
		t.Fatal("no container state")
	}
	if st.Class != layout.ClassQueryContainer {
		t.Errorf("class = %v, want %v", st.Class, layout.ClassQueryContainer)
	}
	if st.Width != 400 {
		t.Errorf("width = %v, want 400 derived from styles", st.Width)
	}
	if cs := st.Conditions[uid]; !cs.Container || cs.Condition != query.True {
		t.Errorf("condition state = %+v, want held", cs)
	}

	wantProps := map[string]string{"--cq-cqi": "4px", "--cq-cqw": "4px"}
	if diff := cmp.Diff(wantProps, container.props); diff != "" {
		t.Errorf("container props mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineResizeFlipsAndElides(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)
	uid := res.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	root := newNode(nil).add(container)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// a delivered size below the threshold retracts the attribute
	eng.ResizeBatch([]layout.Resize{{El: container, Width: 250, Height: math.NaN()}})
	if got := card.attrs[common.DataAttr]; got != "" {
		t.Errorf("attribute = %q after shrink, want removed", got)
	}
	wantProps := map[string]string{"--cq-cqi": "2.5px", "--cq-cqw": "2.5px"}
	if diff := cmp.Diff(wantProps, container.props); diff != "" {
		t.Errorf("props after shrink mismatch (-want +got):\n%s", diff)
	}

	// re-delivering the identical size writes nothing
	attrs, props := h.attrWrites, h.propWrites
	eng.ResizeBatch([]layout.Resize{{El: container, Width: 250, Height: math.NaN()}})
	if h.attrWrites != attrs || h.propWrites != props {
		t.Errorf("identical resize produced %d attribute and %d property writes",
			h.attrWrites-attrs, h.propWrites-props)
	}

	// growing past the threshold restores the attribute
	eng.ResizeBatch([]layout.Resize{{El: container, Width: 360, Height: math.NaN()}})
	if got := card.attrs[common.DataAttr]; got != uid {
		t.Errorf("attribute = %q after growth, want %q", got, uid)
	}
}

func TestEngineResizeBatchChildListedFirst(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `
		@container panel (min-width: 400px) {
			.o { color: red; }
			@container toolbar (min-width: 100px) {
				.t { color: blue; }
			}
		}`)
	inner := res.Descriptors[1]

	leaf := newNode(nil, ".t")
	toolbar := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "toolbar",
		"width":                  "150px",
	}).add(leaf)
	panel := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "panel",
		"width":                  "300px",
	}).add(toolbar)
	root := newNode(nil).add(panel)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// the toolbar passes its own threshold but the enclosing panel does not,
	// so the nested query stays gated off
	if got := leaf.attrs[common.DataAttr]; got != "" {
		t.Errorf("leaf attribute = %q before growth, want empty", got)
	}

	// observers deliver in arbitrary order; a batch naming the descendant
	// before its ancestor must still settle against the ancestor's new size
	eng.ResizeBatch([]layout.Resize{
		{El: toolbar, Width: 180, Height: math.NaN()},
		{El: panel, Width: 500, Height: math.NaN()},
	})
	if got := leaf.attrs[common.DataAttr]; got != inner.UID {
		t.Errorf("leaf attribute = %q after batch, want %q", got, inner.UID)
	}
	st, ok := eng.StateOf(toolbar)
	if !ok {
		t.Fatal("no toolbar state")
	}
	if st.Width != 180 {
		t.Errorf("toolbar width = %v, want delivered 180", st.Width)
	}
}

func TestEngineNestedNamedContainers(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `
		@container sidebar (min-width: 400px) {
			.outer { color: red; }
			@container sidebar (min-width: 600px) {
				.inner { color: blue; }
			}
		}`)
	if len(res.Descriptors) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(res.Descriptors))
	}
	outer, inner := res.Descriptors[0], res.Descriptors[1]
	if inner.Parent != outer {
		t.Fatal("nested descriptor does not link its lexical parent")
	}

	// a sits directly under the wide container, b under the narrow one
	a := newNode(nil, ".outer", ".inner")
	b := newNode(nil, ".outer", ".inner")
	narrow := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "sidebar",
		"width":                  "500px",
	}).add(b)
	wide := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "sidebar",
		"width":                  "800px",
	}).add(a, narrow)
	root := newNode(nil).add(wide)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	if got, want := a.attrs[common.DataAttr], outer.UID+" "+inner.UID; got != want {
		t.Errorf("a attribute = %q, want %q", got, want)
	}
	// the narrow container passes the outer condition but fails the nested
	// one, so its descendants only see the outer uid
	if got := b.attrs[common.DataAttr]; got != outer.UID {
		t.Errorf("b attribute = %q, want %q", got, outer.UID)
	}
}

func TestEngineNameMismatchInheritsThrough(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container sidebar (min-width: 400px) { .t { color: red; } }`)
	uid := res.Descriptors[0].UID

	target := newNode(nil, ".t")
	other := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "main",
		"width":                  "100px",
	}).add(target)
	sidebar := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		common.PropContainerName: "sidebar",
		"width":                  "800px",
	}).add(other)
	root := newNode(nil).add(sidebar)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// the intervening differently-named container does not reset the query;
	// the result flows down from the matching ancestor
	if got := target.attrs[common.DataAttr]; got != uid {
		t.Errorf("target attribute = %q, want %q", got, uid)
	}
}

func TestEngineWritingModeRemapsAxes(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `
		@container (min-height: 450px) { .v { color: red; } }
		@container (min-width: 450px) { .v { color: blue; } }`)
	byHeight, byWidth := res.Descriptors[0], res.Descriptors[1]

	leaf := newNode(nil, ".v")
	vert := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"writing-mode":           "vertical-rl",
		"width":                  "100px",
		"height":                 "500px",
	}).add(leaf)
	root := newNode(nil).add(vert)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// vertical inline-size exposes the height axis only: the height query
	// holds, the width query is indeterminate and collapses to false
	if got := leaf.attrs[common.DataAttr]; got != byHeight.UID {
		t.Errorf("leaf attribute = %q, want %q", got, byHeight.UID)
	}
	st, _ := eng.StateOf(vert)
	if cs := st.Conditions[byWidth.UID]; cs.Condition != query.False || cs.Container {
		t.Errorf("width condition = %+v, want inherited false", cs)
	}

	wantProps := map[string]string{"--cq-cqi": "5px", "--cq-cqh": "5px"}
	if diff := cmp.Diff(wantProps, vert.props); diff != "" {
		t.Errorf("props mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineDisplayNoneDisablesSubtree(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 100px) { .card { color: red; } }`)
	uid := res.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	wrapper := newNode(map[string]string{"display": "none"}).add(container)
	root := newNode(nil).add(wrapper)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	st, ok := eng.StateOf(container)
	if !ok {
		t.Fatal("no container state")
	}
	if !st.Disabled {
		t.Error("container inside display:none is not disabled")
	}
	if st.Class == layout.ClassQueryContainer {
		t.Error("disabled element still classifies as a container")
	}
	if cs := st.Conditions[uid]; cs.Condition != query.False {
		t.Errorf("condition = %v, want false while disabled", cs.Condition)
	}
	if got := card.attrs[common.DataAttr]; got != "" {
		t.Errorf("card attribute = %q, want none while disabled", got)
	}
	if h.observed[container] {
		t.Error("disabled container is observed")
	}

	// revealing the wrapper re-enables the subtree on the next pass
	wrapper.styles["display"] = "block"
	eng.Refresh()

	if got := card.attrs[common.DataAttr]; got != uid {
		t.Errorf("card attribute = %q after reveal, want %q", got, uid)
	}
	if !h.observed[container] {
		t.Error("revealed container is not observed")
	}
}

func TestEngineMutationFilterConsumesOwnWrites(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)
	uid := res.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	root := newNode(nil).add(container)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// echoing the engine's own writes back must not cause new ones
	attrs := h.attrWrites
	eng.MutationBatch(layout.Mutations{Attrs: h.drainEcho()})
	if h.attrWrites != attrs {
		t.Errorf("echoed self writes produced %d new writes", h.attrWrites-attrs)
	}

	// an external change to the published attribute is healed
	card.attrs[common.DataAttr] = "zzz"
	eng.MutationBatch(layout.Mutations{Attrs: []layout.AttrChange{
		{El: card, Name: common.DataAttr, Old: uid, New: "zzz"},
	}})
	if got := card.attrs[common.DataAttr]; got != uid {
		t.Errorf("attribute = %q after tampering, want %q restored", got, uid)
	}
}

func TestEngineSheetLifecycle(t *testing.T) {
	reg := transpile.NewRegistry()
	first := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)
	second := process(t, reg, `@container (min-width: 350px) { .card { color: blue; } }`)
	uid1, uid2 := first.Descriptors[0].UID, second.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	root := newNode(nil).add(container)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	h1 := eng.AddSheet(first.Descriptors)
	eng.AddSheet(second.Descriptors)

	if got, want := card.attrs[common.DataAttr], uid1+" "+uid2; got != want {
		t.Errorf("attribute = %q, want %q", got, want)
	}

	// disposal removes exactly the first sheet's descriptors
	eng.RemoveSheet(h1)
	if got := card.attrs[common.DataAttr]; got != uid2 {
		t.Errorf("attribute = %q after disposal, want %q", got, uid2)
	}
	st, _ := eng.StateOf(container)
	if _, ok := st.Conditions[uid1]; ok {
		t.Error("disposed descriptor still has a condition entry")
	}

	// container units persist, the element is still a container
	if container.props["--cq-cqi"] != "4px" {
		t.Errorf("props after disposal = %v, want the units kept", container.props)
	}

	// unknown handles dispose as no-ops
	attrs := h.attrWrites
	eng.RemoveSheet("not-a-handle")
	if h.attrWrites != attrs {
		t.Error("disposing an unknown handle caused writes")
	}
}

func TestEngineUnknownSizeInheritsParentResult(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .t { color: red; } }`)
	uid := res.Descriptors[0].UID

	// inner is a container whose own size is unknown; its condition result
	// inherits the outer container's
	innerTarget := newNode(nil, ".t")
	inner := newNode(map[string]string{
		common.PropContainerType: "inline-size",
	}).add(innerTarget)
	outer := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(inner)

	// at the root there is nothing to inherit, unknown collapses to false
	orphanTarget := newNode(nil, ".t")
	orphan := newNode(map[string]string{
		common.PropContainerType: "inline-size",
	}).add(orphanTarget)

	root := newNode(nil).add(outer, orphan)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	st, _ := eng.StateOf(inner)
	if cs := st.Conditions[uid]; cs.Condition != query.True || !cs.Container {
		t.Errorf("inner condition = %+v, want inherited true", cs)
	}
	if got := innerTarget.attrs[common.DataAttr]; got != uid {
		t.Errorf("inner target attribute = %q, want %q", got, uid)
	}

	st, _ = eng.StateOf(orphan)
	if cs := st.Conditions[uid]; cs.Condition != query.False || cs.Container {
		t.Errorf("orphan condition = %+v, want false", cs)
	}
	if got := orphanTarget.attrs[common.DataAttr]; got != "" {
		t.Errorf("orphan target attribute = %q, want none", got)
	}
}

func TestEngineStructuralMutations(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)
	uid := res.Descriptors[0].UID

	card := newNode(nil, ".card")
	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(card)
	root := newNode(nil).add(container)

	h := newHost()
	eng := newEngine(t, root, h, reg)
	eng.AddSheet(res.Descriptors)

	// a newly attached element is classified on the reported pass
	extra := newNode(nil, ".card")
	container.add(extra)
	eng.MutationBatch(layout.Mutations{Added: []layout.Element{extra}})
	if got := extra.attrs[common.DataAttr]; got != uid {
		t.Errorf("added element attribute = %q, want %q", got, uid)
	}

	// detaching drops the subtree's state
	container.children = container.children[:1]
	eng.MutationBatch(layout.Mutations{Removed: []layout.Element{extra}})
	if _, ok := eng.StateOf(extra); ok {
		t.Error("removed element still has state")
	}
	if _, ok := eng.StateOf(card); !ok {
		t.Error("sibling of the removed element lost its state")
	}
}

func TestEngineCloseReleasesObservations(t *testing.T) {
	reg := transpile.NewRegistry()
	res := process(t, reg, `@container (min-width: 300px) { .card { color: red; } }`)

	container := newNode(map[string]string{
		common.PropContainerType: "inline-size",
		"width":                  "400px",
	}).add(newNode(nil, ".card"))
	root := newNode(nil).add(container)

	h := newHost()
	eng := layout.NewEngine(root, h.services(), reg, zaptest.NewLogger(t))
	eng.AddSheet(res.Descriptors)

	if !h.observed[container] {
		t.Fatal("container is not observed before Close")
	}
	eng.Close()
	if len(h.observed) != 0 {
		t.Errorf("%d observations survive Close", len(h.observed))
	}
	if _, ok := eng.StateOf(container); ok {
		t.Error("element state survives Close")
	}
}
