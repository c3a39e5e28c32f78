// Package query parses container query conditions into a small boolean AST
// and evaluates them against a concrete size context.
//
// The grammar is the size-query subset of css-contain-3:
//
//	<condition> ::= not <in-parens>
//	              | <in-parens> ( and <in-parens> )*
//	              | <in-parens> ( or <in-parens> )*
//
// Mixing and/or at one nesting level without parentheses does not parse.
// Parenthesized content that is neither a size feature nor a nested
// condition is kept as an opaque leaf that never satisfies the query.
package query

import (
	"strconv"
	"strings"

	"github.com/devknoll/container-query-polyfill/common"
)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpLt
	OpLe
	OpGt
	OpGe
)

var opNames = []string{"=", "<", "<=", ">", ">="}

func (o Op) String() string {
	if o < OpEq || o > OpGe {
		return "?"
	}
	return opNames[o]
}

// direction groups operators by which way they bound a range: -1 for upper
// bounds, +1 for lower bounds, 0 for equality.
func (o Op) direction() int {
	switch o {
	case OpLt, OpLe:
		return -1
	case OpGt, OpGe:
		return 1
	}
	return 0
}

// Feature identifies a queryable dimension of a container.
type Feature int

const (
	FeatureNone Feature = iota
	FeatureWidth
	FeatureHeight
	FeatureInlineSize
	FeatureBlockSize
	FeatureAspectRatio
	FeatureOrientation
)

var featureNames = []string{"", "width", "height", "inline-size", "block-size", "aspect-ratio", "orientation"}

func (f Feature) String() string {
	if f <= FeatureNone || f > FeatureOrientation {
		return "none"
	}
	return featureNames[f]
}

func parseFeature(name string) Feature {
	for i, n := range featureNames[1:] {
		if n == name {
			return Feature(i + 1)
		}
	}
	return FeatureNone
}

// ValueKind tags a Value.
type ValueKind int

const (
	ValueUnknown ValueKind = iota
	ValueNumber
	ValueDimension
	ValueRatio
	ValueOrientation
)

// Value is a literal operand. Unknown values never satisfy a comparison.
type Value struct {
	Kind        ValueKind
	Number      float64 // ValueNumber, ValueDimension
	Unit        string  // ValueDimension, lower case
	Num, Den    float64 // ValueRatio
	Orientation common.Orientation
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case ValueDimension:
		return strconv.FormatFloat(v.Number, 'g', -1, 64) + v.Unit
	case ValueRatio:
		return strconv.FormatFloat(v.Num, 'g', -1, 64) + "/" + strconv.FormatFloat(v.Den, 'g', -1, 64)
	case ValueOrientation:
		return v.Orientation.String()
	}
	return "<unknown>"
}

// Operand is one side of a comparison: a feature reference when Feature is
// set, a literal value otherwise.
type Operand struct {
	Feature Feature
	Value   Value
}

func (o Operand) String() string {
	if o.Feature != FeatureNone {
		return o.Feature.String()
	}
	return o.Value.String()
}

// Comparison relates two operands.
type Comparison struct {
	Op          Op
	Left, Right Operand
}

func (c *Comparison) String() string {
	return "(" + c.Left.String() + " " + c.Op.String() + " " + c.Right.String() + ")"
}

// Node is one condition AST node. Exactly one of the fields is set. Nodes
// are built once per prelude and never mutated afterwards.
type Node struct {
	Not     *Node
	All     []*Node // conjunction
	Any     []*Node // disjunction
	Compare *Comparison
	Literal *Value // opaque parenthesized content
}

func (n *Node) String() string {
	switch {
	case n == nil:
		return "<none>"
	case n.Not != nil:
		return "not " + n.Not.String()
	case n.All != nil:
		return joinParts(n.All, " and ")
	case n.Any != nil:
		return joinParts(n.Any, " or ")
	case n.Compare != nil:
		return n.Compare.String()
	}
	return "(<opaque>)"
}

func joinParts(parts []*Node, sep string) string {
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = p.String()
	}
	return strings.Join(ss, sep)
}
