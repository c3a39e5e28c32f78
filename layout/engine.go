// Package layout is the per-element evaluation engine: it classifies
// elements against the registered container descriptors, evaluates
// conditions when sizes change, and publishes the results back to the tree
// as the data attribute and the container unit properties the rewritten
// stylesheets key on.
package layout

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/query"
	"github.com/devknoll/container-query-polyfill/transpile"
)

// Engine owns the layout state for one root. All methods must be called
// from one goroutine; recomputation runs synchronously inside the
// notification entry points and suspends only between passes.
type Engine struct {
	host Host
	reg  *transpile.Registry
	log  *zap.Logger

	root   Element
	states map[Element]*elementState
	sheets map[string][]*transpile.Descriptor

	// regRev tracks descriptor set changes; every element state depends on it.
	regRev uint64
	// descs is the pass-local descriptor snapshot, natural UID order.
	descs []*transpile.Descriptor

	attrOrder  []Element
	attrVals   map[Element]string
	propOrder  []Element
	propVals   map[Element]map[string]string
	selfWrites map[AttrChange]int
}

// elementState is the engine's mutable bookkeeping for one element. The
// published State snapshots hang off it and are themselves immutable.
type elementState struct {
	el     Element
	parent *elementState
	depth  int

	memo Memo[*State]
	cur  *State
	// rev bumps whenever cur changes by value; children depend on it.
	rev uint64

	observed      bool
	sized         bool
	width, height float64

	published map[string]string
}

// NewEngine builds an engine for the tree under root and runs the initial
// classification pass. The registry is shared with the transpiler that
// produced the descriptors.
func NewEngine(root Element, host Host, reg *transpile.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		host:       host,
		reg:        reg,
		log:        log.Named("layout"),
		root:       root,
		states:     map[Element]*elementState{},
		sheets:     map[string][]*transpile.Descriptor{},
		attrVals:   map[Element]string{},
		propVals:   map[Element]map[string]string{},
		selfWrites: map[AttrChange]int{},
	}
	e.Refresh()
	return e
}

// Close releases every observation and drops all element state.
func (e *Engine) Close() {
	for _, st := range e.states {
		if st.observed {
			e.host.Resizes.Unobserve(st.el)
		}
	}
	clear(e.states)
}

// AddSheet takes ownership of a processed stylesheet's descriptors (already
// registered by the transpiler) and returns the registration handle used to
// dispose them.
func (e *Engine) AddSheet(descriptors []*transpile.Descriptor) string {
	handle := uuid.NewString()
	e.sheets[handle] = descriptors
	e.regRev++
	e.log.Debug("stylesheet registered",
		zap.String("handle", handle),
		zap.Int("descriptors", len(descriptors)))
	e.Refresh()
	return handle
}

// RemoveSheet disposes one registration: exactly its own descriptors leave
// the registry, then one re-evaluation runs. Unknown handles are no-ops, so
// an abandoned fetch that never registered can be disposed blindly.
func (e *Engine) RemoveSheet(handle string) {
	descriptors, ok := e.sheets[handle]
	if !ok {
		return
	}
	delete(e.sheets, handle)
	e.reg.Remove(descriptors)
	e.regRev++
	e.log.Debug("stylesheet disposed",
		zap.String("handle", handle),
		zap.Int("descriptors", len(descriptors)))
	e.Refresh()
}

// StateOf returns the element's last computed snapshot.
func (e *Engine) StateOf(el Element) (*State, bool) {
	st := e.states[el]
	if st == nil || st.cur == nil {
		return nil, false
	}
	return st.cur, true
}

// Refresh runs one full pass over the tree: stale states recompute, fresh
// ones classify, and the resulting writes flush at the end.
func (e *Engine) Refresh() {
	e.beginPass()
	e.visit(e.stateOf(e.root, nil))
	e.flush()
}

// ResizeBatch ingests delivered content-box sizes. Events are processed in
// ascending tree-depth order so a parent's new state exists before any
// descendant recomputes; within one batch no element is evaluated before
// its parent.
func (e *Engine) ResizeBatch(events []Resize) {
	e.beginPass()
	events = slices.Clone(events)
	slices.SortStableFunc(events, func(a, b Resize) int {
		return cmp.Compare(e.depthOf(a.El), e.depthOf(b.El))
	})
	for _, ev := range events {
		st := e.states[ev.El]
		if st == nil {
			continue
		}
		st.sized, st.width, st.height = true, ev.Width, ev.Height
		e.visit(st)
	}
	e.flush()
}

// MutationBatch ingests observed tree mutations. Attribute changes matching
// a recorded engine write are consumed silently; anything external triggers
// one re-evaluation pass.
func (e *Engine) MutationBatch(m Mutations) {
	external := len(m.Added) > 0
	for _, ch := range m.Attrs {
		if n := e.selfWrites[ch]; n > 0 {
			if n == 1 {
				delete(e.selfWrites, ch)
			} else {
				e.selfWrites[ch] = n - 1
			}
			continue
		}
		external = true
	}
	for _, el := range m.Removed {
		e.removeSubtree(el)
		external = true
	}
	if external {
		e.Refresh()
	}
}

func (e *Engine) depthOf(el Element) int {
	if st := e.states[el]; st != nil {
		return st.depth
	}
	return math.MaxInt
}

func (e *Engine) stateOf(el Element, parent *elementState) *elementState {
	if st := e.states[el]; st != nil {
		return st
	}
	st := &elementState{el: el, parent: parent}
	if parent != nil {
		st.depth = parent.depth + 1
	}
	e.states[el] = st
	return st
}

func (e *Engine) removeSubtree(el Element) {
	target := e.states[el]
	if target == nil {
		return
	}
	for cand, st := range e.states {
		for s := st; s != nil; s = s.parent {
			if s != target {
				continue
			}
			if st.observed {
				e.host.Resizes.Unobserve(st.el)
			}
			delete(e.states, cand)
			delete(e.attrVals, cand)
			delete(e.propVals, cand)
			break
		}
	}
}

func (e *Engine) beginPass() {
	e.descs = e.reg.All()
}

// visit recomputes the subtree in document order: the element first, then
// each child. Stale checks keep untouched subtrees cheap.
func (e *Engine) visit(st *elementState) {
	e.recompute(st)
	e.publish(st)
	for _, child := range st.el.Children() {
		e.visit(e.stateOf(child, st))
	}
}

func (e *Engine) recompute(st *elementState) {
	next := st.memo.Get(func(read func(Thunk) any) *State {
		return e.computeState(st, read)
	})
	if !st.cur.equal(next) {
		st.cur = next
		st.rev++
		e.log.Debug("element state changed",
			zap.Stringer("class", next.Class),
			zap.Bool("disabled", next.Disabled),
			zap.Int("conditions", len(next.Conditions)))
	}
	e.syncObservation(st)
}

// computeState derives one element's snapshot, declaring every input it
// reads as a memo dependency.
func (e *Engine) computeState(st *elementState, read func(Thunk) any) *State {
	if st.parent != nil && st.parent.cur == nil {
		panic("layout: element state computed before its parent")
	}

	style := func(property string) string {
		return read(func() any { return e.readStyle(st.el, property) }).(string)
	}
	read(func() any { return e.regRev })
	if st.parent != nil {
		parent := st.parent
		read(func() any { return parent.rev })
	}

	display := style("display")
	axis := common.AxisFromWritingMode(style("writing-mode"))
	fontSize := pxValue(style("font-size"))
	rootFontSize := pxValue(read(func() any {
		return e.readStyle(e.root, "font-size")
	}).(string))
	ctype := containerTypeOf(style(common.PropContainerType))
	names := containerNamesOf(style(common.PropContainerName))

	disabled := strings.EqualFold(strings.TrimSpace(display), "none")
	if st.parent != nil && st.parent.cur.Disabled {
		disabled = true
	}

	class := ClassNormal
	if !disabled && ctype.IsContainer() && displayEligible(display) {
		class = ClassQueryContainer
	}

	width, height := math.NaN(), math.NaN()
	if class == ClassQueryContainer {
		if sized := read(func() any { return st.sizeSnapshot() }).(sizeSnapshot); sized.known {
			width, height = math.Float64frombits(sized.width), math.Float64frombits(sized.height)
		} else {
			width, height = styleSize(style)
		}
	}

	s := &State{
		Class:    class,
		Disabled: disabled,
		Axis:     axis,
		FontSize: fontSize,
		Type:     ctype,
		Names:    names,
		Width:    width,
		Height:   height,
	}
	s.Conditions = e.conditions(st, s, rootFontSize)
	return s
}

// conditions resolves every live descriptor for one element. Descriptors
// arrive in natural UID order, which puts every lexical parent before its
// children, so the chain lookup always finds a finished entry.
func (e *Engine) conditions(st *elementState, s *State, rootFontSize float64) map[string]CondState {
	conds := make(map[string]CondState, len(e.descs))
	if s.Disabled {
		for _, d := range e.descs {
			conds[d.UID] = CondState{Condition: query.False}
		}
		return conds
	}

	ctx := &query.Context{
		FontSize:     s.FontSize,
		RootFontSize: rootFontSize,
		WritingAxis:  s.Axis,
		Features:     exposedFeatures(s),
	}
	for _, d := range e.descs {
		if s.Class != ClassQueryContainer || !namesMatch(s.Names, d.Names) {
			conds[d.UID] = e.inheritedCond(st, d.UID)
			continue
		}
		t := d.Condition.Evaluate(ctx)
		if t == query.Unknown {
			t = e.inheritedCond(st, d.UID).Condition
		}
		held := t == query.True
		if held && d.Parent != nil && !conds[d.Parent.UID].Container {
			conds[d.UID] = CondState{Condition: t}
			continue
		}
		conds[d.UID] = CondState{Condition: t, Container: held}
	}
	return conds
}

// inheritedCond is the parent element's cached result for one uid; false at
// the root or for a descriptor the parent never saw.
func (e *Engine) inheritedCond(st *elementState, uid string) CondState {
	if st.parent == nil {
		return CondState{Condition: query.False}
	}
	if cs, ok := st.parent.cur.Conditions[uid]; ok {
		return cs
	}
	return CondState{Condition: query.False}
}

// exposedFeatures maps the declared container type onto the physical
// dimensions conditions may see. An inline-size container exposes only its
// inline axis; a size container exposes both.
func exposedFeatures(s *State) map[query.Feature]float64 {
	features := map[query.Feature]float64{}
	if s.Class != ClassQueryContainer {
		return features
	}
	expose := func(f query.Feature, v float64) {
		if !math.IsNaN(v) {
			features[f] = v
		}
	}
	switch s.Type {
	case common.ContainerTypeSize:
		expose(query.FeatureWidth, s.Width)
		expose(query.FeatureHeight, s.Height)
	case common.ContainerTypeInlineSize:
		if s.Axis == common.WritingAxisVertical {
			expose(query.FeatureHeight, s.Height)
		} else {
			expose(query.FeatureWidth, s.Width)
		}
	}
	return features
}

// styleSize derives the content-box size from computed styles, for
// containers that have not had a resize delivery yet.
func styleSize(style func(string) string) (w, h float64) {
	w, h = pxValue(style("width")), pxValue(style("height"))
	if !strings.EqualFold(strings.TrimSpace(style("box-sizing")), "border-box") {
		return w, h
	}
	w -= pxOrZero(style("padding-left")) + pxOrZero(style("padding-right")) +
		pxOrZero(style("border-left-width")) + pxOrZero(style("border-right-width"))
	h -= pxOrZero(style("padding-top")) + pxOrZero(style("padding-bottom")) +
		pxOrZero(style("border-top-width")) + pxOrZero(style("border-bottom-width"))
	return w, h
}

// sizeSnapshot is a memo-comparable view of the delivered size. Dimensions
// are kept as float bits so a NaN axis still reads as unchanged.
type sizeSnapshot struct {
	known         bool
	width, height uint64
}

func (st *elementState) sizeSnapshot() sizeSnapshot {
	return sizeSnapshot{known: st.sized, width: math.Float64bits(st.width), height: math.Float64bits(st.height)}
}

func (e *Engine) syncObservation(st *elementState) {
	want := st.cur.Type.IsContainer() && !st.cur.Disabled
	if want && !st.observed {
		st.observed = true
		e.host.Resizes.Observe(st.el)
	}
	if !want && st.observed {
		st.observed, st.sized = false, false
		e.host.Resizes.Unobserve(st.el)
	}
}

// publish queues the element's attribute (derived from its parent's state)
// and, for active containers, the unit properties.
func (e *Engine) publish(st *elementState) {
	e.queueAttr(st.el, e.attributeFor(st))
	e.queueProps(st, unitProps(st.cur))
}

// attributeFor lists the descriptor uids the element matches, gated by the
// parent's container flags, space-joined in natural order.
func (e *Engine) attributeFor(st *elementState) string {
	if st.parent == nil {
		return ""
	}
	var uids []string
	for _, d := range e.descs {
		if d.Selector == "" {
			continue
		}
		cs, ok := st.parent.cur.Conditions[d.UID]
		if !ok || !cs.Container {
			continue
		}
		if !e.host.Match.Matches(st.el, d.Selector) {
			continue
		}
		uids = append(uids, d.UID)
	}
	return strings.Join(uids, " ")
}

// unitProps is the engine-owned inline property set for one element: the
// published container units, in px per unit step. Only units on axes the
// declared type exposes resolve; the rest keep their viewport fallbacks.
func unitProps(s *State) map[string]string {
	if s.Class != ClassQueryContainer {
		return nil
	}
	inline, block := s.Width, s.Height
	if s.Axis == common.WritingAxisVertical {
		inline, block = s.Height, s.Width
	}
	props := map[string]string{}
	put := func(unit string, v float64) {
		if !math.IsNaN(v) {
			props[common.UnitVar(unit)] = formatPx(v / 100)
		}
	}
	switch s.Type {
	case common.ContainerTypeSize:
		put("cqw", s.Width)
		put("cqh", s.Height)
		put("cqi", inline)
		put("cqb", block)
		put("cqmin", min(inline, block))
		put("cqmax", max(inline, block))
	case common.ContainerTypeInlineSize:
		put("cqi", inline)
		if s.Axis == common.WritingAxisVertical {
			put("cqh", s.Height)
		} else {
			put("cqw", s.Width)
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "px"
}

// queueAttr records the desired attribute value for flush. Nothing is
// queued when the value already matches the tree, so an unchanged pass
// produces zero mutations.
func (e *Engine) queueAttr(el Element, want string) {
	if _, queued := e.attrVals[el]; queued {
		e.attrVals[el] = want
		return
	}
	if e.host.Writer.Attribute(el, common.DataAttr) == want {
		return
	}
	e.attrVals[el] = want
	e.attrOrder = append(e.attrOrder, el)
}

func (e *Engine) queueProps(st *elementState, props map[string]string) {
	if _, queued := e.propVals[st.el]; queued {
		e.propVals[st.el] = props
		return
	}
	if maps.Equal(st.published, props) {
		return
	}
	e.propVals[st.el] = props
	e.propOrder = append(e.propOrder, st.el)
}

// flush applies the queued writes in first-queued order. Every attribute
// write is recorded first so the mutation filter can recognize it when the
// host echoes it back.
func (e *Engine) flush() {
	attrs, props := 0, 0
	for _, el := range e.attrOrder {
		want, ok := e.attrVals[el]
		if !ok {
			continue
		}
		delete(e.attrVals, el)
		cur := e.host.Writer.Attribute(el, common.DataAttr)
		if cur == want {
			continue
		}
		e.selfWrites[AttrChange{El: el, Name: common.DataAttr, Old: cur, New: want}]++
		if want == "" {
			e.host.Writer.RemoveAttribute(el, common.DataAttr)
		} else {
			e.host.Writer.SetAttribute(el, common.DataAttr, want)
		}
		attrs++
	}
	e.attrOrder = e.attrOrder[:0]

	for _, el := range e.propOrder {
		want, ok := e.propVals[el]
		if !ok {
			continue
		}
		delete(e.propVals, el)
		st := e.states[el]
		if st == nil || maps.Equal(st.published, want) {
			continue
		}
		st.published = want
		e.host.Writer.SetCustomProperties(el, want)
		props++
	}
	e.propOrder = e.propOrder[:0]

	if attrs > 0 || props > 0 {
		e.log.Debug("pass flushed",
			zap.Int("attribute writes", attrs),
			zap.Int("property writes", props))
	}
}
