package layout

import (
	"fmt"

	"github.com/devknoll/container-query-polyfill/common"
)

// Element is the host's node handle. Implementations must be comparable
// (the engine keys per-element state on them) and stable for the node's
// lifetime; pointer receivers satisfy both.
type Element interface {
	// Children returns the element's child elements in document order.
	Children() []Element
}

// StyleReader resolves computed style values. The engine only ever asks for
// properties on the fixed allow-list below; hosts may rely on that.
type StyleReader interface {
	ComputedStyle(el Element, property string) string
}

// Resizer is the size observation service. Observing an element must
// guarantee one delivery even without an actual size change, so a fresh
// container picks up its initial size. Deliveries arrive through
// Engine.ResizeBatch.
type Resizer interface {
	Observe(el Element)
	Unobserve(el Element)
}

// TreeWriter applies engine outputs to the tree. Attribute reports the
// current value so writes can be elided when nothing changed.
// SetCustomProperties replaces the engine-owned inline property set on the
// element; a nil map clears it. Property injection must not surface through
// the host's mutation delivery.
type TreeWriter interface {
	Attribute(el Element, name string) string
	SetAttribute(el Element, name, value string)
	RemoveAttribute(el Element, name string)
	SetCustomProperties(el Element, props map[string]string)
}

// Matcher answers selector membership for attribute targeting.
type Matcher interface {
	Matches(el Element, selector string) bool
}

// Host bundles the platform services one engine instance runs against.
// Every field must be populated.
type Host struct {
	Styles  StyleReader
	Resizes Resizer
	Writer  TreeWriter
	Match   Matcher
}

// Resize is one delivered content-box size, in px.
type Resize struct {
	El            Element
	Width, Height float64
}

// AttrChange is one observed attribute mutation, with the old and new
// values so the engine can recognize its own writes.
type AttrChange struct {
	El       Element
	Name     string
	Old, New string
}

// Mutations is one delivered mutation batch for the observed subtree.
type Mutations struct {
	Added   []Element
	Removed []Element
	Attrs   []AttrChange
}

// Properties the engine is allowed to read through the style reader.
var allowedStyleProps = map[string]bool{
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

func (e *Engine) readStyle(el Element, property string) string {
	if !allowedStyleProps[property] {
		panic(fmt.Sprintf("layout: computed style read of %q is not allowed", property))
	}
	return e.host.Styles.ComputedStyle(el, property)
}
