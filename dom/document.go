// Package dom hosts the layout engine on a parsed HTML document. It adopts
// the element tree, resolves the computed styles the engine reads from the
// document's stylesheets, simulates size observation from those styles, and
// echoes attribute writes back as mutations the way a live platform would.
// Documents are processed statically: sizes derive from declared styles
// against a fixed viewport, not from real layout.
package dom

import (
	"errors"
	"io"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/layout"
)

// Simulation defaults when Options leaves a knob unset.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultRootFontSize   = 16
)

// Options configures document hosting.
type Options struct {
	// Viewport dimensions in px, the root element's default size.
	ViewportWidth  float64
	ViewportHeight float64
	// RootFontSize is the root's font-size in px.
	RootFontSize float64
	// Sheets are the processed stylesheets whose rules style the tree.
	Sheets []*css.Sheet
	Log    *zap.Logger
}

// Document is one adopted HTML document together with the host services the
// engine runs against. All methods must be called from one goroutine.
type Document struct {
	doc  *html.Node
	root *Node
	opts Options
	log  *zap.Logger

	nodes map[*html.Node]*Node

	rules    []*declaredRule
	byProp   map[string][]*declaredRule
	ruleSeq  int
	selCache map[string]cascadia.SelectorGroup

	engine *layout.Engine
	writes int

	// observed maps each observed element to its last delivered size.
	observed map[*Node]sizePair
	queued   map[*Node]bool
	resizeQ  []*Node
	mutQ     layout.Mutations
}

type sizePair struct{ w, h float64 }

// NewDocument adopts the element tree under doc and indexes the stylesheet
// rules for style resolution. doc is the parsed document node; the first
// element below it becomes the root.
func NewDocument(doc *html.Node, opts Options) (*Document, error) {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.RootFontSize <= 0 {
		opts.RootFontSize = DefaultRootFontSize
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	d := &Document{
		doc:      doc,
		opts:     opts,
		log:      log.Named("dom"),
		nodes:    map[*html.Node]*Node{},
		byProp:   map[string][]*declaredRule{},
		selCache: map[string]cascadia.SelectorGroup{},
		observed: map[*Node]sizePair{},
		queued:   map[*Node]bool{},
	}

	rootEl := findRootElement(doc)
	if rootEl == nil {
		return nil, errors.New("document has no root element")
	}
	d.root = d.adopt(rootEl, nil)
	for _, sheet := range opts.Sheets {
		d.addSheet(sheet)
	}

	d.log.Debug("document adopted",
		zap.Int("elements", len(d.nodes)),
		zap.Int("style rules", len(d.rules)))
	return d, nil
}

func (d *Document) adopt(n *html.Node, parent *Node) *Node {
	nd := &Node{doc: d, n: n, parent: parent, kind: classify(n, parent)}
	if parent != nil {
		nd.depth = parent.depth + 1
		parent.children = append(parent.children, nd)
	}
	nd.inline = parseInlineStyle(attrValue(n, "style"))
	d.nodes[n] = nd
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			d.adopt(c, nd)
		}
	}
	return nd
}

func findRootElement(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if el := findRootElement(c); el != nil {
			return el
		}
	}
	return nil
}

// Root returns the adopted root element.
func (d *Document) Root() *Node { return d.root }

// First returns the first adopted element matching selector in document
// order, nil when nothing matches.
func (d *Document) First(selector string) *Node {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return firstMatch(d.root, sel)
}

func firstMatch(nd *Node, sel cascadia.SelectorGroup) *Node {
	if sel.Match(nd.n) {
		return nd
	}
	for _, c := range nd.children {
		if hit := firstMatch(c, sel); hit != nil {
			return hit
		}
	}
	return nil
}

// Host bundles the document's engine-facing services.
func (d *Document) Host() layout.Host {
	return layout.Host{Styles: d, Resizes: d, Writer: d, Match: d}
}

// Writes reports the total number of tree writes performed through the
// document, engine publications included.
func (d *Document) Writes() int { return d.writes }

// Render serializes the document, doctype included.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.doc)
}
