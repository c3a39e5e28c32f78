package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/devknoll/container-query-polyfill/layout"
)

// NodeKind is the adoption-time classification of an element. The set is
// closed; anything unrecognized is Generic.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindHeadLike
	KindStylesheet
	KindGeneric
)

var nodeKindNames = []string{"root", "head-like", "stylesheet", "generic"}

func (k NodeKind) String() string {
	if k < KindRoot || k > KindGeneric {
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
	return nodeKindNames[k]
}

// Node is one adopted element. Nodes are comparable by identity and stable
// for the document's lifetime, which is what the engine's Element contract
// asks for.
type Node struct {
	doc      *Document
	n        *html.Node
	parent   *Node
	depth    int
	kind     NodeKind
	children []*Node

	// inline holds the parsed style attribute declarations.
	inline map[string]string
	// props is the engine-owned custom property set, kept off the style
	// attribute until Bake.
	props map[string]string
}

// Children returns the element children in document order.
func (nd *Node) Children() []layout.Element {
	out := make([]layout.Element, len(nd.children))
	for i, c := range nd.children {
		out[i] = c
	}
	return out
}

// Kind returns the adoption-time classification.
func (nd *Node) Kind() NodeKind { return nd.kind }

// Tag returns the element's lower-cased tag name.
func (nd *Node) Tag() string { return nd.n.Data }

// Attr returns the named attribute's value, empty when absent.
func (nd *Node) Attr(name string) string {
	return attrValue(nd.n, name)
}

func (nd *Node) setAttr(name, value string) {
	for i := range nd.n.Attr {
		if nd.n.Attr[i].Namespace == "" && nd.n.Attr[i].Key == name {
			nd.n.Attr[i].Val = value
			return
		}
	}
	nd.n.Attr = append(nd.n.Attr, html.Attribute{Key: name, Val: value})
}

func (nd *Node) removeAttr(name string) {
	for i := range nd.n.Attr {
		if nd.n.Attr[i].Namespace == "" && nd.n.Attr[i].Key == name {
			nd.n.Attr = append(nd.n.Attr[:i], nd.n.Attr[i+1:]...)
			return
		}
	}
}

func classify(n *html.Node, parent *Node) NodeKind {
	if parent == nil {
		return KindRoot
	}
	switch n.DataAtom {
	case atom.Style:
		return KindStylesheet
	case atom.Link:
		if relContains(n, "stylesheet") {
			return KindStylesheet
		}
		return KindHeadLike
	case atom.Head, atom.Base, atom.Meta, atom.Title, atom.Script, atom.Noscript, atom.Template:
		return KindHeadLike
	default:
		return KindGeneric
	}
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func relContains(n *html.Node, want string) bool {
	for _, f := range strings.Fields(attrValue(n, "rel")) {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
