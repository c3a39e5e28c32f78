package query

import (
	"strings"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
)

// ParseCondition parses the condition part of a @container prelude from
// component values. It returns nil when the components do not form a valid
// condition; the caller is expected to leave the source untransformed then.
func ParseCondition(cs []css.Component) *Node {
	cur := &cursor{cs: stripSpace(cs)}
	n := parseCondition(cur)
	if n == nil || !cur.done() {
		return nil
	}
	return n
}

// cursor walks a whitespace-stripped component list. Reads past the end
// return the zero component, whose token kind is EOF.
type cursor struct {
	cs  []css.Component
	pos int
}

func stripSpace(cs []css.Component) []css.Component {
	out := make([]css.Component, 0, len(cs))
	for _, c := range cs {
		if !c.IsWhitespace() {
			out = append(out, c)
		}
	}
	return out
}

func (c *cursor) peek() css.Component {
	if c.pos < len(c.cs) {
		return c.cs[c.pos]
	}
	return css.Component{}
}

func (c *cursor) take() css.Component {
	t := c.peek()
	if c.pos < len(c.cs) {
		c.pos++
	}
	return t
}

func (c *cursor) done() bool {
	return c.pos >= len(c.cs)
}

func parseCondition(cur *cursor) *Node {
	if cur.peek().Token.IsIdent("not") {
		cur.take()
		operand := parseInParens(cur)
		if operand == nil {
			return nil
		}
		return &Node{Not: operand}
	}

	first := parseInParens(cur)
	if first == nil {
		return nil
	}
	parts := []*Node{first}
	connector := ""
	for cur.peek().Token.Kind == css.KindIdent {
		word := strings.ToLower(cur.peek().Token.Name())
		if word != "and" && word != "or" {
			break
		}
		if connector == "" {
			connector = word
		} else if connector != word {
			// and/or mixed at one level binds nothing
			return nil
		}
		cur.take()
		next := parseInParens(cur)
		if next == nil {
			return nil
		}
		parts = append(parts, next)
	}
	if len(parts) == 1 {
		return first
	}
	if connector == "and" {
		return &Node{All: parts}
	}
	return &Node{Any: parts}
}

// parseInParens handles one parenthesized term. Content that parses as
// neither a size feature nor a nested condition (style queries, vendor
// functions, plain garbage) becomes an opaque leaf instead of failing, so
// the enclosing condition still registers and simply never matches there.
func parseInParens(cur *cursor) *Node {
	c := cur.peek()
	switch c.Token.Kind {
	case css.KindOpenParen:
		cur.take()
		if n := parseSizeFeature(stripSpace(c.Children)); n != nil {
			return n
		}
		if n := ParseCondition(c.Children); n != nil {
			return n
		}
		return &Node{Literal: &Value{Kind: ValueUnknown}}
	case css.KindFunction:
		cur.take()
		return &Node{Literal: &Value{Kind: ValueUnknown}}
	}
	return nil
}

func parseSizeFeature(cs []css.Component) *Node {
	for _, c := range cs {
		if c.Token.Kind == css.KindColon {
			return parsePlainFeature(cs)
		}
	}
	if len(cs) == 1 && cs[0].Token.Kind == css.KindIdent {
		return parseBareFeature(cs[0])
	}
	return parseRangeFeature(cs)
}

// parsePlainFeature handles (width: 300px) and the min-/max- prefixed forms.
func parsePlainFeature(cs []css.Component) *Node {
	cur := &cursor{cs: cs}
	name := cur.peek()
	if name.Token.Kind != css.KindIdent {
		return nil
	}
	cur.take()

	op := OpEq
	base := strings.ToLower(name.Token.Name())
	switch {
	case strings.HasPrefix(base, "min-"):
		op, base = OpGe, base[4:]
	case strings.HasPrefix(base, "max-"):
		op, base = OpLe, base[4:]
	}
	feature := parseFeature(base)
	if feature == FeatureNone {
		return nil
	}
	if op != OpEq && feature == FeatureOrientation {
		return nil
	}

	if cur.take().Token.Kind != css.KindColon {
		return nil
	}
	value := parseValue(cur)
	if value == nil || !cur.done() {
		return nil
	}
	return &Node{Compare: &Comparison{
		Op:    op,
		Left:  Operand{Feature: feature},
		Right: Operand{Value: *value},
	}}
}

// parseBareFeature handles the boolean context form (width), which holds
// when the feature is known and positive.
func parseBareFeature(c css.Component) *Node {
	feature := parseFeature(strings.ToLower(c.Token.Name()))
	if feature == FeatureNone || feature == FeatureOrientation {
		return nil
	}
	return &Node{Compare: &Comparison{
		Op:    OpGt,
		Left:  Operand{Feature: feature},
		Right: Operand{Value: Value{Kind: ValueNumber}},
	}}
}

// parseRangeFeature handles (width < 500px), (500px > width) and the
// double-bounded (300px <= width < 500px), which becomes a conjunction.
func parseRangeFeature(cs []css.Component) *Node {
	cur := &cursor{cs: cs}
	left := parseOperand(cur)
	op1, ok := parseOp(cur)
	if left == nil || !ok {
		return nil
	}
	mid := parseOperand(cur)
	if mid == nil {
		return nil
	}

	if cur.done() {
		// exactly one side names the feature
		if (left.Feature != FeatureNone) == (mid.Feature != FeatureNone) {
			return nil
		}
		return &Node{Compare: &Comparison{Op: op1, Left: *left, Right: *mid}}
	}

	op2, ok := parseOp(cur)
	if !ok {
		return nil
	}
	right := parseOperand(cur)
	if right == nil || !cur.done() {
		return nil
	}
	// value op feature op value, both bounds pointing the same way
	if left.Feature != FeatureNone || mid.Feature == FeatureNone || right.Feature != FeatureNone {
		return nil
	}
	if op1.direction() == 0 || op1.direction() != op2.direction() {
		return nil
	}
	return &Node{All: []*Node{
		{Compare: &Comparison{Op: op1, Left: *left, Right: *mid}},
		{Compare: &Comparison{Op: op2, Left: *mid, Right: *right}},
	}}
}

func parseOperand(cur *cursor) *Operand {
	c := cur.peek()
	if c.Token.Kind == css.KindIdent {
		if f := parseFeature(strings.ToLower(c.Token.Name())); f != FeatureNone {
			cur.take()
			return &Operand{Feature: f}
		}
	}
	if v := parseValue(cur); v != nil {
		return &Operand{Value: *v}
	}
	return nil
}

func parseValue(cur *cursor) *Value {
	c := cur.peek()
	switch c.Token.Kind {
	case css.KindNumber:
		cur.take()
		if cur.peek().Token.IsDelim('/') {
			cur.take()
			d := cur.peek()
			if d.Token.Kind != css.KindNumber {
				return nil
			}
			cur.take()
			return &Value{Kind: ValueRatio, Num: c.Token.Value, Den: d.Token.Value}
		}
		return &Value{Kind: ValueNumber, Number: c.Token.Value}
	case css.KindDimension:
		cur.take()
		return &Value{Kind: ValueDimension, Number: c.Token.Value, Unit: strings.ToLower(c.Token.Unit)}
	case css.KindIdent:
		switch {
		case c.Token.IsIdent("portrait"):
			cur.take()
			return &Value{Kind: ValueOrientation, Orientation: common.OrientationPortrait}
		case c.Token.IsIdent("landscape"):
			cur.take()
			return &Value{Kind: ValueOrientation, Orientation: common.OrientationLandscape}
		}
	}
	return nil
}

func parseOp(cur *cursor) (Op, bool) {
	c := cur.peek()
	switch {
	case c.Token.IsDelim('<'):
		cur.take()
		if cur.peek().Token.IsDelim('=') {
			cur.take()
			return OpLe, true
		}
		return OpLt, true
	case c.Token.IsDelim('>'):
		cur.take()
		if cur.peek().Token.IsDelim('=') {
			cur.take()
			return OpGe, true
		}
		return OpGt, true
	case c.Token.IsDelim('='):
		cur.take()
		return OpEq, true
	}
	return OpEq, false
}
