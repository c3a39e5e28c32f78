package convert

import (
	"strings"

	"github.com/devknoll/container-query-polyfill/transpile"
	"github.com/devknoll/container-query-polyfill/utils/debug"
)

// dumpDescriptors renders registered container descriptors as an indented
// tree, nested by lexical parent. Registration order puts every parent
// before its children.
func dumpDescriptors(ds []*transpile.Descriptor) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "containers: %d", len(ds))
	for _, d := range ds {
		depth := 1
		for p := d.Parent; p != nil; p = p.Parent {
			depth++
		}
		if len(d.Names) > 0 {
			tw.Line(depth, "%s (%s) %s", d.UID, strings.Join(d.Names, " "), d.Condition)
		} else {
			tw.Line(depth, "%s %s", d.UID, d.Condition)
		}
		if d.Selector != "" {
			tw.TextBlock(depth+1, "scopes", d.Selector)
		}
	}
	return tw.String()
}
