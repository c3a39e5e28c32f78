package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StyleSource is one stylesheet reference found in a document: embedded
// <style> text or a <link rel="stylesheet"> target. Sources are located on
// the raw parsed tree, before any document is built around it.
type StyleSource struct {
	Node   *html.Node
	Inline string // embedded css text, empty for links
	Href   string // link target, empty for embedded styles
}

// FindStyleSources lists the document's stylesheet sources in document
// order.
func FindStyleSources(doc *html.Node) []StyleSource {
	var out []StyleSource
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style:
				out = append(out, StyleSource{Node: n, Inline: textContent(n)})
			case atom.Link:
				if relContains(n, "stylesheet") {
					if href := strings.TrimSpace(attrValue(n, "href")); href != "" {
						out = append(out, StyleSource{Node: n, Href: href})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// ReplaceWithStyle swaps the source's node for a <style> element holding
// cssText, so the rewritten text takes the original reference's place.
func ReplaceWithStyle(src StyleSource, cssText string) {
	parent := src.Node.Parent
	if parent == nil {
		return
	}
	style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: cssText})
	parent.InsertBefore(style, src.Node)
	parent.RemoveChild(src.Node)
}

// SetStyleText replaces the text content of a <style> source in place.
func SetStyleText(src StyleSource, cssText string) {
	for c := src.Node.FirstChild; c != nil; {
		next := c.NextSibling
		src.Node.RemoveChild(c)
		c = next
	}
	src.Node.AppendChild(&html.Node{Type: html.TextNode, Data: cssText})
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
